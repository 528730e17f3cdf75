package ledger

import (
	"context"
	"testing"
	"time"

	"tripweave/internal/model"
)

func newEmitter(t *testing.T) (*Emitter, Store) {
	t.Helper()
	store, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewEmitter(store, nil), store
}

func TestCriticalEmitIsIdempotent(t *testing.T) {
	em, store := newEmitter(t)
	ctx := context.Background()
	ev := model.TripEvent{
		TripID: "t1", EventType: "dates_locked", ActorID: "leader",
		Timestamp: at(10), IdempotencyKey: "dates_locked:t1",
	}
	if err := em.EmitCritical(ctx, ev); err != nil {
		t.Fatal(err)
	}
	// Retried call is a silent no-op, not an error.
	if err := em.EmitCritical(ctx, ev); err != nil {
		t.Fatalf("retry surfaced an error: %v", err)
	}
	events, _ := store.EventsByTrip(ctx, "t1")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
}

func TestBackgroundEmit(t *testing.T) {
	em, store := newEmitter(t)
	em.Emit(model.TripEvent{TripID: "t1", EventType: "window_added", Timestamp: at(10)})
	em.Emit(model.TripEvent{TripID: "t1", EventType: "reaction_added", Timestamp: at(11)})
	em.Flush()
	events, _ := store.EventsByTrip(context.Background(), "t1")
	if len(events) != 2 {
		t.Fatalf("got %d events after flush, want 2", len(events))
	}
}

func TestSuppressionWithinCooldown(t *testing.T) {
	em, _ := newEmitter(t)
	ctx := context.Background()
	shownAt := at(10)
	rec := model.NudgeEventRecord{
		TripID: "t1", UserID: "u1", DedupeKey: "K",
		NudgeType: model.NudgeReadyToLock, Status: model.NudgeShown, CreatedAt: shownAt,
	}
	if err := em.RecordNudge(ctx, rec); err != nil {
		t.Fatal(err)
	}

	// One hour into a 72-hour cooldown: suppressed.
	hit, err := em.Suppressed(ctx, "t1", "u1", "K", 72, shownAt.Add(time.Hour))
	if err != nil || !hit {
		t.Fatalf("1h into cooldown: suppressed=%v err=%v", hit, err)
	}
	// Past the cooldown: eligible again.
	hit, err = em.Suppressed(ctx, "t1", "u1", "K", 72, shownAt.Add(73*time.Hour))
	if err != nil || hit {
		t.Fatalf("after cooldown: suppressed=%v err=%v", hit, err)
	}
	// A different key is unaffected.
	hit, _ = em.Suppressed(ctx, "t1", "u1", "other", 72, shownAt.Add(time.Hour))
	if hit {
		t.Fatal("unrelated dedupe key suppressed")
	}
}

func TestDismissalAlsoSuppresses(t *testing.T) {
	em, _ := newEmitter(t)
	ctx := context.Background()
	rec := model.NudgeEventRecord{
		TripID: "t1", UserID: "u1", DedupeKey: "K",
		NudgeType: model.NudgeHalfSubmitted, Status: model.NudgeDismissed, CreatedAt: at(10),
	}
	if err := em.RecordNudge(ctx, rec); err != nil {
		t.Fatal(err)
	}
	hit, err := em.Suppressed(ctx, "t1", "u1", "K", 72, at(11))
	if err != nil || !hit {
		t.Fatalf("dismissed record should suppress: suppressed=%v err=%v", hit, err)
	}
}

func TestCorrelationWithinWindow(t *testing.T) {
	em, store := newEmitter(t)
	ctx := context.Background()
	shownAt := at(10)
	rec := model.NudgeEventRecord{
		TripID: "t1", UserID: "u1", DedupeKey: "ready_to_propose:t1:r",
		NudgeType: model.NudgeReadyToPropose, Status: model.NudgeShown, CreatedAt: shownAt,
	}
	if err := em.RecordNudge(ctx, rec); err != nil {
		t.Fatal(err)
	}

	actionAt := shownAt.Add(12 * time.Minute)
	if err := em.RecordAction(ctx, "t1", "u1", "leader", "proposal_created", actionAt); err != nil {
		t.Fatal(err)
	}
	events, _ := store.EventsByTrip(ctx, "t1")
	var correlated *model.TripEvent
	for i := range events {
		if events[i].EventType == EventCorrelatedAction {
			correlated = &events[i]
		}
	}
	if correlated == nil {
		t.Fatal("no correlated_action event emitted")
	}
	if correlated.RefLatencyMs != (12 * time.Minute).Milliseconds() {
		t.Fatalf("latency = %dms, want 720000", correlated.RefLatencyMs)
	}
	if correlated.RefEventID != "nudge:t1:u1:ready_to_propose:t1:r:shown" {
		t.Fatalf("back-reference = %q", correlated.RefEventID)
	}
}

func TestNoCorrelationBeyondWindow(t *testing.T) {
	em, store := newEmitter(t)
	ctx := context.Background()
	shownAt := at(10)
	rec := model.NudgeEventRecord{
		TripID: "t1", UserID: "u1", DedupeKey: "K",
		NudgeType: model.NudgeReadyToPropose, Status: model.NudgeShown, CreatedAt: shownAt,
	}
	if err := em.RecordNudge(ctx, rec); err != nil {
		t.Fatal(err)
	}
	// 31 minutes later is outside the trailing window.
	if err := em.RecordAction(ctx, "t1", "u1", "leader", "proposal_created", shownAt.Add(31*time.Minute)); err != nil {
		t.Fatal(err)
	}
	events, _ := store.EventsByTrip(ctx, "t1")
	for _, e := range events {
		if e.EventType == EventCorrelatedAction {
			t.Fatal("correlated an action past the 30-minute window")
		}
	}
}

func TestFirstActionOnce(t *testing.T) {
	em, store := newEmitter(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := em.RecordAction(ctx, "t1", "u1", "traveler", "window_added", at(10+i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := em.RecordAction(ctx, "t1", "u2", "traveler", "window_added", at(10)); err != nil {
		t.Fatal(err)
	}
	events, _ := store.EventsByTrip(ctx, "t1")
	count := map[string]int{}
	for _, e := range events {
		if e.EventType == EventFirstAction {
			count[e.ActorID]++
		}
	}
	if count["u1"] != 1 || count["u2"] != 1 {
		t.Fatalf("first-action counts = %v, want exactly one per user", count)
	}
}

func TestTrackActionDetached(t *testing.T) {
	em, store := newEmitter(t)
	em.TrackAction("t1", "u1", "traveler", "reaction_added", at(10))
	em.Flush()
	events, _ := store.EventsByTrip(context.Background(), "t1")
	if len(events) != 1 || events[0].EventType != EventFirstAction {
		t.Fatalf("got %+v, want one first_action event", events)
	}
}

func TestPruneShownRetention(t *testing.T) {
	em, store := newEmitter(t)
	ctx := context.Background()
	now := at(12)
	stale := model.NudgeEventRecord{
		TripID: "t1", UserID: "u1", DedupeKey: "stale",
		NudgeType: model.NudgeHalfSubmitted, Status: model.NudgeShown,
		CreatedAt: now.Add(-ShownRetention - time.Hour),
	}
	fresh := model.NudgeEventRecord{
		TripID: "t1", UserID: "u1", DedupeKey: "fresh",
		NudgeType: model.NudgeHalfSubmitted, Status: model.NudgeShown,
		CreatedAt: now.Add(-time.Hour),
	}
	_ = em.RecordNudge(ctx, stale)
	_ = em.RecordNudge(ctx, fresh)
	n, err := em.PruneShown(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("pruned %d err=%v, want 1", n, err)
	}
	if _, ok, _ := store.LatestNudgeEvent(ctx, "t1", "u1", "fresh", []model.NudgeStatus{model.NudgeShown}); !ok {
		t.Fatal("fresh record pruned")
	}
}
