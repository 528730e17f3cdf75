package analytics

import (
	"testing"
	"time"

	"tripweave/internal/model"
)

func TestHourlyActivity(t *testing.T) {
	ts := func(h, m int) time.Time { return time.Date(2025, 3, 1, h, m, 0, 0, time.UTC) }
	events := []model.TripEvent{
		{EventType: "window_added", Timestamp: ts(10, 5)},
		{EventType: "window_added", Timestamp: ts(10, 40)},
		{EventType: "reaction_added", Timestamp: ts(10, 50)},
		{EventType: "window_added", Timestamp: ts(12, 0)},
	}
	b := HourlyActivity(events)
	if len(b) != 2 {
		t.Fatalf("got %d buckets, want 2", len(b))
	}
	if b[ts(10, 0)]["window_added"] != 2 || b[ts(10, 0)]["reaction_added"] != 1 {
		t.Fatalf("10:00 bucket = %v", b[ts(10, 0)])
	}
	keys := SortedBucketKeys(b)
	if len(keys) != 2 || !keys[0].Before(keys[1]) {
		t.Fatalf("keys not sorted: %v", keys)
	}
}

func TestNudgeLatencies(t *testing.T) {
	events := []model.TripEvent{
		{EventType: "correlated_action", RefLatencyMs: 90000},
		{EventType: "window_added"},
	}
	lat := NudgeLatencies(events)
	if len(lat) != 1 || lat[0] != 90*time.Second {
		t.Fatalf("latencies = %v", lat)
	}
}
