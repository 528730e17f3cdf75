package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"tripweave/internal/model"
)

type nudgeKey struct {
	tripID, userID, dedupeKey string
	status                    model.NudgeStatus
}

// MemoryStore is an in-process ledger for tests and ephemeral runs.
type MemoryStore struct {
	mu     sync.RWMutex
	events []model.TripEvent
	idem   map[string]bool
	nudges map[nudgeKey]model.NudgeEventRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		idem:   make(map[string]bool),
		nudges: make(map[nudgeKey]model.NudgeEventRecord),
	}
}

func (s *MemoryStore) AppendEvent(_ context.Context, e model.TripEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.IdempotencyKey != "" {
		if s.idem[e.IdempotencyKey] {
			return false, nil
		}
		s.idem[e.IdempotencyKey] = true
	}
	s.events = append(s.events, e)
	return true, nil
}

func (s *MemoryStore) EventsByTrip(_ context.Context, tripID string) ([]model.TripEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TripEvent
	for _, e := range s.events {
		if e.TripID == tripID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) UpsertNudgeEvent(_ context.Context, rec model.NudgeEventRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := nudgeKey{rec.TripID, rec.UserID, rec.DedupeKey, rec.Status}
	_, existed := s.nudges[k]
	s.nudges[k] = rec
	return !existed, nil
}

func (s *MemoryStore) LatestNudgeEvent(_ context.Context, tripID, userID, dedupeKey string, statuses []model.NudgeStatus) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest time.Time
	found := false
	for _, st := range statuses {
		if rec, ok := s.nudges[nudgeKey{tripID, userID, dedupeKey, st}]; ok {
			if !found || rec.CreatedAt.After(latest) {
				latest = rec.CreatedAt
				found = true
			}
		}
	}
	return latest, found, nil
}

func (s *MemoryStore) LatestShown(_ context.Context, tripID, userID string, since time.Time) (model.NudgeEventRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best model.NudgeEventRecord
	found := false
	for k, rec := range s.nudges {
		if k.tripID != tripID || k.userID != userID || k.status != model.NudgeShown {
			continue
		}
		if rec.CreatedAt.Before(since) {
			continue
		}
		if !found || rec.CreatedAt.After(best.CreatedAt) {
			best = rec
			found = true
		}
	}
	return best, found, nil
}

func (s *MemoryStore) PruneShown(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, rec := range s.nudges {
		if k.status == model.NudgeShown && rec.CreatedAt.Before(before) {
			delete(s.nudges, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
