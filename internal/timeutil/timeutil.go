// Package timeutil provides the UTC day and minute bucketing used by the
// time series and stats stores. All calculations are done in UTC so that
// partition boundaries are stable regardless of server locale.
package timeutil

import "time"

// MinuteOfDay returns the minute of the UTC day for the given UNIX
// timestamp in seconds, e.g. 00:01 = 1, 01:02 = 62.
func MinuteOfDay(timestamp int64) int {
	t := time.Unix(timestamp, 0).UTC()

	return t.Hour()*60 + t.Minute()
}

// TimestampForMinuteOfDay returns the UNIX timestamp in seconds for the
// given minute of the UTC day that timestamp falls on.
func TimestampForMinuteOfDay(timestamp int64, minute int) int64 {
	dayStart := DayStart(timestamp)

	return dayStart + int64(minute)*60
}

// DayStart returns the UNIX timestamp in seconds for midnight UTC of the
// day that timestamp falls on.
func DayStart(timestamp int64) int64 {
	t := time.Unix(timestamp, 0).UTC()

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()
}

// DateString formats a UNIX timestamp in seconds as a YYYY-MM-DD string
// in UTC.
func DateString(timestamp int64) string {
	return time.Unix(timestamp, 0).UTC().Format("2006-01-02")
}

// CurrentTimestamp returns the current UNIX timestamp in seconds.
func CurrentTimestamp() int64 {
	return time.Now().Unix()
}

// CurrentTimestampMillis returns the current UNIX timestamp in
// milliseconds.
func CurrentTimestampMillis() int64 {
	return time.Now().UnixMilli()
}
