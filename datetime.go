package flashfat

import (
	"time"
)

// Datetime is a calendar timestamp as delivered by a real-time clock.
// The volume copies it into descriptors but never interprets it.
//
// The layout equals the 8 byte record stored on flash:
//
//	Year     int16, e.g. 2024
//	Month    int8,  1–12
//	Day      int8,  1–31
//	Weekday  int8,  0–6, 0 is Sunday
//	Hour     int8,  0–23
//	Minute   int8,  0–59
//	Second   int8,  0–59
//
// The zero value means "never set".
type Datetime struct {
	Year    int16
	Month   int8
	Day     int8
	Weekday int8
	Hour    int8
	Minute  int8
	Second  int8
}

// NewDatetime converts t, in its own location, into a Datetime.
// Years which do not fit into an int16 are clamped.
func NewDatetime(t time.Time) Datetime {
	year := t.Year()
	if year > 1<<15-1 {
		year = 1<<15 - 1
	} else if year < -1<<15 {
		year = -1 << 15
	}

	return Datetime{
		Year:    int16(year),
		Month:   int8(t.Month()),
		Day:     int8(t.Day()),
		Weekday: int8(t.Weekday()),
		Hour:    int8(t.Hour()),
		Minute:  int8(t.Minute()),
		Second:  int8(t.Second()),
	}
}

// IsZero reports whether the Datetime was never set.
func (d Datetime) IsZero() bool {
	return d == Datetime{}
}

// Time returns the Datetime as a time.Time in UTC.
// time.Time{} is returned for the zero value and for values with a month or
// day of 0, so that time.Time.IsZero() can be used on the result.
//
// Out of range values are normalized the same way time.Date does it.
func (d Datetime) Time() time.Time {
	if d.Month == 0 || d.Day == 0 {
		return time.Time{}
	}

	return time.Date(int(d.Year), time.Month(d.Month), int(d.Day), int(d.Hour), int(d.Minute), int(d.Second), 0, time.UTC)
}

// Clock provides the current time for stamping descriptors.
type Clock interface {
	Now() Datetime
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() Datetime

func (f ClockFunc) Now() Datetime {
	return f()
}

// SystemClock stamps descriptors with the local system time.
func SystemClock() Clock {
	return ClockFunc(func() Datetime {
		return NewDatetime(time.Now())
	})
}

// FixedClock always returns the same time. Useful for reproducible images.
func FixedClock(t time.Time) Clock {
	d := NewDatetime(t)
	return ClockFunc(func() Datetime {
		return d
	})
}
