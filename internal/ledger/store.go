// Package ledger is the append-only record of logical trip events plus the
// nudge show/dismiss cache used for suppression and correlation. It is the
// only shared mutable state in the scheduling core; everything else is pure.
package ledger

import (
	"context"
	"time"

	"tripweave/internal/model"
)

// CorrelationWindow is how far back a user action looks for the nudge that
// prompted it. Nothing older is ever correlated.
const CorrelationWindow = 30 * time.Minute

// ShownRetention bounds the shown-record cache backing correlation.
const ShownRetention = 7 * 24 * time.Hour

// Ledger event types emitted by this package itself.
const (
	EventCorrelatedAction = "correlated_action"
	EventFirstAction      = "first_action"
)

// Store is the persistence contract for the ledger. Implementations must make
// AppendEvent and UpsertNudgeEvent atomic insert-if-absent operations: when
// two writers race on the same idempotency key, the loser is dropped
// silently, and that is the intended resolution, not an error.
type Store interface {
	// AppendEvent records one event. inserted is false when an event with
	// the same non-empty IdempotencyKey already exists; that is a success.
	AppendEvent(ctx context.Context, e model.TripEvent) (inserted bool, err error)

	// EventsByTrip returns a trip's events ordered by timestamp ascending.
	EventsByTrip(ctx context.Context, tripID string) ([]model.TripEvent, error)

	// UpsertNudgeEvent writes or refreshes the record keyed by
	// (TripID, UserID, DedupeKey, Status), keeping the latest CreatedAt.
	// inserted is false when the key already existed.
	UpsertNudgeEvent(ctx context.Context, rec model.NudgeEventRecord) (inserted bool, err error)

	// LatestNudgeEvent returns the newest CreatedAt among the given statuses
	// for one dedupe key, ok=false when none exists.
	LatestNudgeEvent(ctx context.Context, tripID, userID, dedupeKey string, statuses []model.NudgeStatus) (ts time.Time, ok bool, err error)

	// LatestShown returns the most recent shown record for (trip, user) at or
	// after since, ok=false when none qualifies.
	LatestShown(ctx context.Context, tripID, userID string, since time.Time) (rec model.NudgeEventRecord, ok bool, err error)

	// PruneShown deletes shown records older than before and reports how many
	// went away.
	PruneShown(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
