// Package timeutil provides sub-second truncation helpers used when
// reporting elapsed times.
package timeutil

import "time"

// TruncateToSecond drops the sub-second component of t.
func TruncateToSecond(t time.Time) time.Time {
	return t.Truncate(time.Second)
}

// TruncateDuration drops the sub-second component of d.
func TruncateDuration(d time.Duration) time.Duration {
	return d.Truncate(time.Second)
}
