package timeutil

import "time"

// Layouts used by the PayPal REST API.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02T15:04:05Z"
)

// Now returns the current time in UTC
// Always use this instead of time.Now() to ensure timezone consistency
func Now() time.Time {
	return time.Now().UTC()
}

// StartOfDay returns the start of the day (midnight) in UTC
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// PreviousDay returns the closed window covering the calendar day before now:
// midnight through one microsecond before the next midnight.
func PreviousDay(now time.Time) (time.Time, time.Time) {
	start := StartOfDay(now).AddDate(0, 0, -1)
	return start, start.AddDate(0, 0, 1).Add(-time.Microsecond)
}

// MonthPeriod returns the first and last calendar day of the month containing t.
func MonthPeriod(t time.Time) (time.Time, time.Time) {
	year, month, _ := t.UTC().Date()
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

// FormatDate renders t as YYYY-MM-DD in UTC
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// FormatTimestamp renders t as YYYY-MM-DDTHH:MM:SSZ in UTC
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
