package model

import (
	"strings"
	"time"
)

// sixDigitLayout is the canonical on-disk timestamp format: RFC 3339 with
// an explicit timezone offset and exactly six fractional-second digits.
const sixDigitLayout = "2006-01-02T15:04:05.000000Z07:00"

// Time wraps time.Time so issue and event records always marshal
// timestamps with a fixed six-digit fractional-second width, regardless
// of how many digits (1-9, or none) the source value carried.
type Time struct {
	time.Time
}

// NewTime wraps t, rounding to microsecond precision.
func NewTime(t time.Time) Time {
	return Time{t.Round(time.Microsecond)}
}

// MarshalJSON writes t in the canonical six-digit RFC 3339 form.
func (t Time) MarshalJSON() ([]byte, error) {
	s := t.Time.UTC().Format(sixDigitLayout)
	return []byte(`"` + s + `"`), nil
}

// UnmarshalJSON accepts RFC 3339 timestamps with 0-9 fractional digits
// and normalizes them to microsecond precision on load.
func (t *Time) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := parseFlexibleRFC3339(s)
	if err != nil {
		return err
	}
	t.Time = parsed.Round(time.Microsecond)
	return nil
}

// parseFlexibleRFC3339 parses an RFC 3339 timestamp whose fractional
// seconds may have any number of digits (including none), always
// requiring an explicit timezone offset.
func parseFlexibleRFC3339(s string) (time.Time, error) {
	// time.RFC3339Nano's ".999999999" fractional spec accepts any number
	// of trailing digits from 0 to 9, trimming trailing zeros on output
	// but tolerating any width on input.
	return time.Parse(time.RFC3339Nano, s)
}

// Format renders t in the canonical six-digit form used for filenames
// and display.
func (t Time) Format() string {
	return t.Time.UTC().Format(sixDigitLayout)
}

// FormatMillis renders t with millisecond precision, used for event
// filenames per the spec's occurred_at convention.
func (t Time) FormatMillis() string {
	return t.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// IsZero reports whether the wrapped time is the zero value.
func (t Time) IsZero() bool {
	return t.Time.IsZero()
}
