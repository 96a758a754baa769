package chargepoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMeter(t *testing.T) {
	meter := NewMeter(1000)
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, meter.Read(start))
	assert.Equal(t, 0, meter.Start(start))
	assert.Equal(t, 500, meter.Read(start.Add(30*time.Minute)))
	assert.Equal(t, 1000, meter.Stop(start.Add(time.Hour)))
	assert.Equal(t, 1000, meter.Read(start.Add(2*time.Hour)))

	next := start.Add(3 * time.Hour)
	assert.Equal(t, 1000, meter.Start(next))
	assert.Equal(t, 1250, meter.Stop(next.Add(15*time.Minute)))
}
