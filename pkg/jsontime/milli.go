// Package jsontime provides time types for persisted records: JSON carries
// compact numbers or duration strings, YAML (CLI output) carries readable
// text.
package jsontime

import (
	"encoding/json"
	"time"
)

// Milli is a time.Time that serializes to Unix milliseconds in JSON and to
// RFC 3339 in YAML.
type Milli time.Time

// NowEpochMilli returns the current time as Milli.
func NowEpochMilli() Milli {
	return Milli(time.Now())
}

// Time returns the underlying time.Time value.
func (ep Milli) Time() time.Time {
	return time.Time(ep)
}

// Before reports whether ep is before t.
func (ep Milli) Before(t Milli) bool {
	return time.Time(ep).Before(time.Time(t))
}

// Equal reports whether ep and t represent the same time instant.
func (ep Milli) Equal(t Milli) bool {
	return time.Time(ep).Equal(time.Time(t))
}

// IsZero reports whether ep represents the zero time instant.
func (ep Milli) IsZero() bool {
	return time.Time(ep).IsZero()
}

// String returns the time in RFC 3339 with millisecond precision.
func (ep Milli) String() string {
	return time.Time(ep).Format("2006-01-02T15:04:05.000Z07:00")
}

// UnmarshalJSON implements json.Unmarshaler.
func (ep *Milli) UnmarshalJSON(b []byte) error {
	var t int64
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	*ep = Milli(time.UnixMilli(t))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (ep Milli) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(ep).UnixMilli())
}

// MarshalYAML renders the time as text for goccy/go-yaml.
func (ep Milli) MarshalYAML() (any, error) {
	return ep.String(), nil
}
