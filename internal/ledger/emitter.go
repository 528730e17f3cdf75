package ledger

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tripweave/internal/metrics"
	"tripweave/internal/model"
)

// backgroundTimeout bounds each detached write so a stuck store cannot leak
// goroutines forever.
const backgroundTimeout = 10 * time.Second

// Emitter is the single write path into the ledger. Critical emissions block
// the caller until the write is durable; non-critical emissions are detached
// background work whose failures are logged and swallowed.
type Emitter struct {
	store   Store
	log     *zap.Logger
	limiter *rate.Limiter
	wg      sync.WaitGroup
}

func NewEmitter(store Store, log *zap.Logger) *Emitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Emitter{store: store, log: log, limiter: newWriteLimiter()}
}

// newWriteLimiter paces the non-critical tier, with env overrides.
func newWriteLimiter() *rate.Limiter {
	rps := 50.0
	burst := 100
	if v := os.Getenv("LEDGER_WRITE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	if v := os.Getenv("LEDGER_WRITE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// EmitCritical records an event and does not return until the write is
// durable. Use for irreversible milestones (creation, cancellation,
// dates-locked): the caller's response must not be observable first. A
// duplicate idempotency key is a successful no-op.
func (e *Emitter) EmitCritical(ctx context.Context, ev model.TripEvent) error {
	start := time.Now()
	defer func() { metrics.EmitDuration.Observe(time.Since(start).Seconds()) }()
	if err := e.write(ctx, ev); err != nil {
		metrics.LedgerWriteErrors.WithLabelValues("critical").Inc()
		return err
	}
	return nil
}

// Emit dispatches an event without blocking the triggering action. Failures
// never surface to the caller.
func (e *Emitter) Emit(ev model.TripEvent) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := e.limiter.Wait(ctx); err != nil {
			metrics.LedgerWriteErrors.WithLabelValues("background").Inc()
			e.log.Error("ledger emit dropped", zap.String("event_type", ev.EventType), zap.Error(err))
			return
		}
		if err := e.write(ctx, ev); err != nil {
			metrics.LedgerWriteErrors.WithLabelValues("background").Inc()
			e.log.Error("ledger emit failed", zap.String("event_type", ev.EventType), zap.Error(err))
		}
	}()
}

// Flush waits for all in-flight background writes.
func (e *Emitter) Flush() { e.wg.Wait() }

func (e *Emitter) write(ctx context.Context, ev model.TripEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	inserted, err := e.store.AppendEvent(ctx, ev)
	if err != nil {
		return fmt.Errorf("ledger write %s: %w", ev.EventType, err)
	}
	if !inserted {
		metrics.EventsDeduped.Inc()
		return nil
	}
	metrics.EventsRecorded.WithLabelValues(ev.EventType).Inc()
	return nil
}

// RecordNudge persists a nudge lifecycle record (shown, clicked, dismissed).
func (e *Emitter) RecordNudge(ctx context.Context, rec model.NudgeEventRecord) error {
	if _, err := e.store.UpsertNudgeEvent(ctx, rec); err != nil {
		return err
	}
	metrics.NudgesRecorded.WithLabelValues(string(rec.Status)).Inc()
	return nil
}

// Suppressed reports whether a nudge with this dedupe key was shown or
// dismissed to the viewer within its cooldown. Implements nudge.Suppressor.
func (e *Emitter) Suppressed(ctx context.Context, tripID, userID, dedupeKey string, cooldownHours int, now time.Time) (bool, error) {
	ts, ok, err := e.store.LatestNudgeEvent(ctx, tripID, userID, dedupeKey,
		[]model.NudgeStatus{model.NudgeShown, model.NudgeDismissed})
	if err != nil || !ok {
		return false, err
	}
	if now.Sub(ts) < time.Duration(cooldownHours)*time.Hour {
		metrics.NudgesSuppressed.Inc()
		return true, nil
	}
	return false, nil
}

// RecordAction correlates a tracked user action with the most recent nudge
// shown to the same viewer within the trailing correlation window, and emits
// the one-time first-action entry for the (trip, user) pair. Synchronous;
// most callers want TrackAction instead.
func (e *Emitter) RecordAction(ctx context.Context, tripID, userID, actorRole, action string, now time.Time) error {
	shown, ok, err := e.store.LatestShown(ctx, tripID, userID, now.Add(-CorrelationWindow))
	if err != nil {
		return err
	}
	if ok {
		latency := now.Sub(shown.CreatedAt).Milliseconds()
		err := e.write(ctx, model.TripEvent{
			TripID:       tripID,
			EventType:    EventCorrelatedAction,
			ActorID:      userID,
			ActorRole:    actorRole,
			Timestamp:    now,
			RefEventID:   shownRef(shown),
			RefLatencyMs: latency,
			Payload: map[string]any{
				"action":    action,
				"nudgeType": string(shown.NudgeType),
				"dedupeKey": shown.DedupeKey,
			},
		})
		if err != nil {
			return err
		}
		metrics.CorrelationsMatched.Inc()
	}

	// One first-action entry per (trip, user), ever. The deterministic
	// idempotency key makes racing writers converge on a single record.
	return e.write(ctx, model.TripEvent{
		TripID:         tripID,
		EventType:      EventFirstAction,
		ActorID:        userID,
		ActorRole:      actorRole,
		Timestamp:      now,
		IdempotencyKey: fmt.Sprintf("first_action:%s:%s", tripID, userID),
		Payload:        map[string]any{"action": action},
	})
}

// TrackAction is the fire-and-forget form of RecordAction for callers whose
// response must not wait on analytics.
func (e *Emitter) TrackAction(tripID, userID, actorRole, action string, now time.Time) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := e.RecordAction(ctx, tripID, userID, actorRole, action, now); err != nil {
			metrics.LedgerWriteErrors.WithLabelValues("background").Inc()
			e.log.Error("action tracking failed", zap.String("trip_id", tripID), zap.Error(err))
		}
	}()
}

// PruneShown applies the shown-cache retention policy.
func (e *Emitter) PruneShown(ctx context.Context, now time.Time) (int64, error) {
	return e.store.PruneShown(ctx, now.Add(-ShownRetention))
}

// shownRef is the stable back-reference to a shown record, which has no row
// id of its own.
func shownRef(rec model.NudgeEventRecord) string {
	return fmt.Sprintf("nudge:%s:%s:%s:shown", rec.TripID, rec.UserID, rec.DedupeKey)
}
