package timeutil

import "time"

// HostDateTimeLayout is the datetime format the host CRM API reads and writes.
const HostDateTimeLayout = "2006-01-02 15:04:05"

// HostDateLayout is used for date-only host fields
const HostDateLayout = "2006-01-02"

// Now returns the current time in UTC
// Always use this instead of time.Now() to ensure timezone consistency
func Now() time.Time {
	return time.Now().UTC()
}

// FormatHostDateTime renders t in the host datetime layout, in UTC
func FormatHostDateTime(t time.Time) string {
	return t.UTC().Format(HostDateTimeLayout)
}

// ParseHostDateTime accepts a host datetime or a bare date. Empty input yields
// the zero time.
func ParseHostDateTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(HostDateTimeLayout, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(HostDateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// StartOfDay returns the start of the day (midnight) in UTC
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the end of the day (23:59:59) in UTC, at host precision.
func EndOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 23, 59, 59, 0, time.UTC)
}
