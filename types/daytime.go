package types

import (
	"encoding/json"
	"strings"
	"time"
)

const ISO8601 = "2006-01-02T15:04:05.000Z07:00"

// DateTime wraps a time.Time struct, allowing for improved dateTime JSON compatibility.
type DateTime struct {
	time.Time
}

// NewDateTime Creates a new DateTime struct, embedding a time.Time struct.
func NewDateTime(time time.Time) *DateTime {
	return &DateTime{Time: time}
}

func (dt *DateTime) MarshalJSON() ([]byte, error) {
	if dt.Time.IsZero() {
		return json.Marshal(nil)
	}
	return json.Marshal(dt.UTC().Format(ISO8601))
}

// UnmarshalJSON accepts RFC3339 with or without fractional seconds; charge points differ on that.
func (dt *DateTime) UnmarshalJSON(input []byte) error {
	text := strings.Trim(string(input), "\"")
	if text == "null" || text == "" {
		dt.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, text)
	if err != nil {
		return err
	}
	dt.Time = parsed
	return nil
}
