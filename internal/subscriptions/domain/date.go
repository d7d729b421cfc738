package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day. Values are held at midnight
// UTC so that comparisons and day arithmetic never see a time component.
type Date struct {
	t time.Time
}

// NewDate returns the given calendar date. Out-of-range values normalize the
// way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD date. Full RFC 3339 timestamps are accepted
// and truncated to their date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339Nano, s)
		if tsErr != nil {
			return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		return DateOf(ts), nil
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time { return d.t }

func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) Equal(o Date) bool  { return d.t.Equal(o.t) }
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }

func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }
func (d Date) AddYears(n int) Date  { return Date{t: d.t.AddDate(n, 0, 0)} }

// DaysUntil returns the number of calendar days from d to o; negative when o
// is earlier.
func (d Date) DaysUntil(o Date) int {
	return int(o.t.Sub(d.t).Hours() / 24)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, data)
	}
	return d.UnmarshalText([]byte(s))
}

// Clock supplies the current calendar date.
type Clock interface {
	Today() Date
}

// SystemClock reads the wall clock in a billing time zone.
type SystemClock struct {
	Location *time.Location
}

// Today returns the current date in the clock's location (UTC when unset).
func (c SystemClock) Today() Date {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(time.Now().In(loc))
}

// FixedClock always reports the same date.
type FixedClock Date

func (c FixedClock) Today() Date { return Date(c) }
