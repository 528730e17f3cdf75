package ledger

import (
	"context"
	"testing"
	"time"

	"tripweave/internal/model"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{"sqlite": sq, "memory": NewMemoryStore()}
}

func at(h int) time.Time { return time.Date(2025, 3, 1, h, 0, 0, 0, time.UTC) }

func TestAppendEventIdempotency(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ev := model.TripEvent{
				ID: "e1", TripID: "t1", EventType: "trip_created",
				ActorID: "u1", ActorRole: "leader", Timestamp: at(10),
				IdempotencyKey: "trip_created:t1",
				Payload:        map[string]any{"name": "ski trip"},
			}
			inserted, err := store.AppendEvent(ctx, ev)
			if err != nil || !inserted {
				t.Fatalf("first write: inserted=%v err=%v", inserted, err)
			}
			// Retry with a different row id but the same logical key.
			ev.ID = "e2"
			inserted, err = store.AppendEvent(ctx, ev)
			if err != nil {
				t.Fatalf("retry errored: %v", err)
			}
			if inserted {
				t.Fatal("duplicate idempotency key was inserted twice")
			}
			events, err := store.EventsByTrip(ctx, "t1")
			if err != nil {
				t.Fatal(err)
			}
			if len(events) != 1 {
				t.Fatalf("got %d events, want 1", len(events))
			}
			if events[0].Payload["name"] != "ski trip" {
				t.Fatalf("payload lost: %+v", events[0].Payload)
			}
		})
	}
}

func TestEventsWithoutKeyAlwaysAppend(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				ev := model.TripEvent{
					ID: string(rune('a' + i)), TripID: "t1",
					EventType: "window_added", Timestamp: at(10 + i),
				}
				if inserted, err := store.AppendEvent(ctx, ev); err != nil || !inserted {
					t.Fatalf("write %d: inserted=%v err=%v", i, inserted, err)
				}
			}
			events, _ := store.EventsByTrip(ctx, "t1")
			if len(events) != 3 {
				t.Fatalf("got %d events, want 3", len(events))
			}
			if !events[0].Timestamp.Before(events[2].Timestamp) {
				t.Fatal("events not ordered by timestamp")
			}
		})
	}
}

func TestUpsertNudgeEvent(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := model.NudgeEventRecord{
				TripID: "t1", UserID: "u1", DedupeKey: "ready_to_lock:t1:w1",
				NudgeType: model.NudgeReadyToLock, Status: model.NudgeShown, CreatedAt: at(10),
			}
			inserted, err := store.UpsertNudgeEvent(ctx, rec)
			if err != nil || !inserted {
				t.Fatalf("first upsert: inserted=%v err=%v", inserted, err)
			}
			rec.CreatedAt = at(12)
			inserted, err = store.UpsertNudgeEvent(ctx, rec)
			if err != nil {
				t.Fatal(err)
			}
			if inserted {
				t.Fatal("second upsert reported a fresh insert")
			}
			ts, ok, err := store.LatestNudgeEvent(ctx, "t1", "u1", rec.DedupeKey, []model.NudgeStatus{model.NudgeShown})
			if err != nil || !ok {
				t.Fatalf("lookup: ok=%v err=%v", ok, err)
			}
			if !ts.Equal(at(12)) {
				t.Fatalf("timestamp = %v, want the refreshed one", ts)
			}
		})
	}
}

func TestLatestShownAndPrune(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			old := model.NudgeEventRecord{
				TripID: "t1", UserID: "u1", DedupeKey: "k_old",
				NudgeType: model.NudgeHalfSubmitted, Status: model.NudgeShown, CreatedAt: at(8),
			}
			recent := model.NudgeEventRecord{
				TripID: "t1", UserID: "u1", DedupeKey: "k_recent",
				NudgeType: model.NudgeReadyToLock, Status: model.NudgeShown, CreatedAt: at(11),
			}
			dismissed := model.NudgeEventRecord{
				TripID: "t1", UserID: "u1", DedupeKey: "k_dismissed",
				NudgeType: model.NudgeReadyToPropose, Status: model.NudgeDismissed, CreatedAt: at(12),
			}
			for _, r := range []model.NudgeEventRecord{old, recent, dismissed} {
				if _, err := store.UpsertNudgeEvent(ctx, r); err != nil {
					t.Fatal(err)
				}
			}

			got, ok, err := store.LatestShown(ctx, "t1", "u1", at(10))
			if err != nil || !ok {
				t.Fatalf("lookup: ok=%v err=%v", ok, err)
			}
			if got.DedupeKey != "k_recent" {
				t.Fatalf("latest shown = %s, want k_recent (dismissed records excluded)", got.DedupeKey)
			}

			// Nothing shown since a later cutoff.
			if _, ok, _ := store.LatestShown(ctx, "t1", "u1", at(12)); ok {
				t.Fatal("found a shown record past the cutoff")
			}

			n, err := store.PruneShown(ctx, at(10))
			if err != nil {
				t.Fatal(err)
			}
			if n != 1 {
				t.Fatalf("pruned %d records, want 1 (the old shown)", n)
			}
			if _, ok, _ := store.LatestNudgeEvent(ctx, "t1", "u1", "k_dismissed", []model.NudgeStatus{model.NudgeDismissed}); !ok {
				t.Fatal("prune removed a dismissed record")
			}
		})
	}
}
