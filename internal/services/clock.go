package services

import "time"

// dayKey buckets a timestamp into its UTC calendar day, the scope key
// for journeys, stop completions and attendance.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
