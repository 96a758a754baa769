package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateTimeJSON(t *testing.T) {
	moment := time.Date(2024, 3, 15, 10, 20, 30, 125000000, time.UTC)
	data, err := json.Marshal(NewDateTime(moment))
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-15T10:20:30.125Z"`, string(data))

	var parsed DateTime
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.True(t, moment.Equal(parsed.Time))
}

func TestDateTimeWithoutFraction(t *testing.T) {
	var parsed DateTime
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-15T10:20:30+02:00"`), &parsed))
	assert.Equal(t, 8, parsed.UTC().Hour())
}

func TestDateTimeNull(t *testing.T) {
	var parsed DateTime
	require.NoError(t, json.Unmarshal([]byte(`null`), &parsed))
	assert.True(t, parsed.IsZero())
}
