package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tripweave/internal/model"
)

// SQLiteStore persists the ledger in a single SQLite file. Good for local
// runs and tests (":memory:").
type SQLiteStore struct{ sql *sql.DB }

func OpenSQLite(path string) (*SQLiteStore, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		return nil, err
	}
	s := &SQLiteStore{sql: d}
	if err := s.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.sql.Close() }

func (s *SQLiteStore) migrate() error {
	_, err := s.sql.Exec(`
	CREATE TABLE IF NOT EXISTS trip_events (
	  id TEXT PRIMARY KEY,
	  trip_id TEXT NOT NULL,
	  event_type TEXT NOT NULL,
	  actor_id TEXT NOT NULL DEFAULT '',
	  actor_role TEXT NOT NULL DEFAULT '',
	  ts INTEGER NOT NULL,
	  trip_age_ms INTEGER NOT NULL DEFAULT 0,
	  idempotency_key TEXT NOT NULL DEFAULT '',
	  payload TEXT,
	  ref_event_id TEXT NOT NULL DEFAULT '',
	  ref_latency_ms INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_te_trip ON trip_events(trip_id, ts);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_te_idem ON trip_events(idempotency_key) WHERE idempotency_key != '';
	CREATE TABLE IF NOT EXISTS nudge_events (
	  trip_id TEXT NOT NULL,
	  user_id TEXT NOT NULL,
	  dedupe_key TEXT NOT NULL,
	  status TEXT NOT NULL,
	  nudge_type TEXT NOT NULL,
	  created_at INTEGER NOT NULL,
	  PRIMARY KEY (trip_id, user_id, dedupe_key, status)
	);
	CREATE INDEX IF NOT EXISTS idx_ne_shown ON nudge_events(trip_id, user_id, status, created_at);
	`)
	return err
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, e model.TripEvent) (bool, error) {
	var payload *string
	if e.Payload != nil {
		pb, _ := json.Marshal(e.Payload)
		ps := string(pb)
		payload = &ps
	}
	res, err := s.sql.ExecContext(ctx, `
		INSERT OR IGNORE INTO trip_events
		  (id, trip_id, event_type, actor_id, actor_role, ts, trip_age_ms, idempotency_key, payload, ref_event_id, ref_latency_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.TripID, e.EventType, e.ActorID, e.ActorRole, e.Timestamp.UnixMilli(),
		e.TripAgeMs, e.IdempotencyKey, payload, e.RefEventID, e.RefLatencyMs)
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) EventsByTrip(ctx context.Context, tripID string) ([]model.TripEvent, error) {
	rows, err := s.sql.QueryContext(ctx, `
		SELECT id, trip_id, event_type, actor_id, actor_role, ts, trip_age_ms, idempotency_key, payload, ref_event_id, ref_latency_ms
		FROM trip_events WHERE trip_id=? ORDER BY ts`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TripEvent
	for rows.Next() {
		var e model.TripEvent
		var ts int64
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TripID, &e.EventType, &e.ActorID, &e.ActorRole, &ts,
			&e.TripAgeMs, &e.IdempotencyKey, &payload, &e.RefEventID, &e.RefLatencyMs); err != nil {
			return nil, err
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		if payload.Valid {
			_ = json.Unmarshal([]byte(payload.String), &e.Payload)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertNudgeEvent(ctx context.Context, rec model.NudgeEventRecord) (bool, error) {
	var exists int
	err := s.sql.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM nudge_events WHERE trip_id=? AND user_id=? AND dedupe_key=? AND status=?`,
		rec.TripID, rec.UserID, rec.DedupeKey, string(rec.Status)).Scan(&exists)
	if err != nil {
		return false, err
	}
	_, err = s.sql.ExecContext(ctx, `
		INSERT INTO nudge_events (trip_id, user_id, dedupe_key, status, nudge_type, created_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(trip_id, user_id, dedupe_key, status)
		DO UPDATE SET created_at=excluded.created_at, nudge_type=excluded.nudge_type`,
		rec.TripID, rec.UserID, rec.DedupeKey, string(rec.Status), string(rec.NudgeType), rec.CreatedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("upsert nudge event: %w", err)
	}
	return exists == 0, nil
}

func (s *SQLiteStore) LatestNudgeEvent(ctx context.Context, tripID, userID, dedupeKey string, statuses []model.NudgeStatus) (time.Time, bool, error) {
	if len(statuses) == 0 {
		return time.Time{}, false, nil
	}
	args := []any{tripID, userID, dedupeKey}
	ph := make([]string, len(statuses))
	for i, st := range statuses {
		ph[i] = "?"
		args = append(args, string(st))
	}
	var ts sql.NullInt64
	err := s.sql.QueryRowContext(ctx, `
		SELECT MAX(created_at) FROM nudge_events
		WHERE trip_id=? AND user_id=? AND dedupe_key=? AND status IN (`+strings.Join(ph, ",")+`)`,
		args...).Scan(&ts)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ts.Int64).UTC(), true, nil
}

func (s *SQLiteStore) LatestShown(ctx context.Context, tripID, userID string, since time.Time) (model.NudgeEventRecord, bool, error) {
	var rec model.NudgeEventRecord
	var ts int64
	var status, nudgeType string
	err := s.sql.QueryRowContext(ctx, `
		SELECT dedupe_key, status, nudge_type, created_at FROM nudge_events
		WHERE trip_id=? AND user_id=? AND status=? AND created_at>=?
		ORDER BY created_at DESC LIMIT 1`,
		tripID, userID, string(model.NudgeShown), since.UnixMilli()).Scan(&rec.DedupeKey, &status, &nudgeType, &ts)
	if err == sql.ErrNoRows {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	rec.TripID, rec.UserID = tripID, userID
	rec.Status = model.NudgeStatus(status)
	rec.NudgeType = model.NudgeType(nudgeType)
	rec.CreatedAt = time.UnixMilli(ts).UTC()
	return rec, true, nil
}

func (s *SQLiteStore) PruneShown(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sql.ExecContext(ctx, `
		DELETE FROM nudge_events WHERE status=? AND created_at<?`,
		string(model.NudgeShown), before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
