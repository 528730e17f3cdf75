// Package analytics aggregates ledger events for reporting.
package analytics

import (
	"sort"
	"time"

	"tripweave/internal/model"
)

// HourlyActivity buckets trip events into per-hour counts by event type.
func HourlyActivity(events []model.TripEvent) map[time.Time]map[string]int {
	buckets := make(map[time.Time]map[string]int)
	for _, e := range events {
		ts := e.Timestamp
		key := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, time.UTC)
		if _, ok := buckets[key]; !ok {
			buckets[key] = make(map[string]int)
		}
		buckets[key][e.EventType]++
	}
	return buckets
}

// SortedBucketKeys returns sorted hour keys.
func SortedBucketKeys(m map[time.Time]map[string]int) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

// NudgeLatencies extracts display-to-action latencies from correlated events.
func NudgeLatencies(events []model.TripEvent) []time.Duration {
	var out []time.Duration
	for _, e := range events {
		if e.EventType == "correlated_action" && e.RefLatencyMs > 0 {
			out = append(out, time.Duration(e.RefLatencyMs)*time.Millisecond)
		}
	}
	return out
}
