package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"tripweave/internal/model"
)

// PostgresConfig carries connection settings for the Postgres backend.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresStore persists the ledger in PostgreSQL, the deployment backend.
type PostgresStore struct {
	db  *sql.DB
	log *zap.Logger
}

func OpenPostgres(cfg PostgresConfig, log *zap.Logger) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &PostgresStore{db: db, log: log}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}
	log.Info("postgres ledger ready", zap.String("host", cfg.Host), zap.String("dbname", cfg.DBName))
	return s, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS trip_events (
	  id TEXT PRIMARY KEY,
	  trip_id TEXT NOT NULL,
	  event_type TEXT NOT NULL,
	  actor_id TEXT NOT NULL DEFAULT '',
	  actor_role TEXT NOT NULL DEFAULT '',
	  ts BIGINT NOT NULL,
	  trip_age_ms BIGINT NOT NULL DEFAULT 0,
	  idempotency_key TEXT NOT NULL DEFAULT '',
	  payload JSONB,
	  ref_event_id TEXT NOT NULL DEFAULT '',
	  ref_latency_ms BIGINT NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_te_trip ON trip_events(trip_id, ts);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_te_idem ON trip_events(idempotency_key) WHERE idempotency_key != '';
	CREATE TABLE IF NOT EXISTS nudge_events (
	  trip_id TEXT NOT NULL,
	  user_id TEXT NOT NULL,
	  dedupe_key TEXT NOT NULL,
	  status TEXT NOT NULL,
	  nudge_type TEXT NOT NULL,
	  created_at BIGINT NOT NULL,
	  PRIMARY KEY (trip_id, user_id, dedupe_key, status)
	);
	CREATE INDEX IF NOT EXISTS idx_ne_shown ON nudge_events(trip_id, user_id, status, created_at);
	`)
	return err
}

func (s *PostgresStore) AppendEvent(ctx context.Context, e model.TripEvent) (bool, error) {
	var payload any
	if e.Payload != nil {
		pb, _ := json.Marshal(e.Payload)
		payload = string(pb)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trip_events
		  (id, trip_id, event_type, actor_id, actor_role, ts, trip_age_ms, idempotency_key, payload, ref_event_id, ref_latency_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT DO NOTHING`,
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

func (s *PostgresStore) EventsByTrip(ctx context.Context, tripID string) ([]model.TripEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trip_id, event_type, actor_id, actor_role, ts, trip_age_ms, idempotency_key, payload, ref_event_id, ref_latency_ms
		FROM trip_events WHERE trip_id=$1 ORDER BY ts`, tripID)
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

func (s *PostgresStore) UpsertNudgeEvent(ctx context.Context, rec model.NudgeEventRecord) (bool, error) {
	// xmax = 0 only for freshly inserted rows.
	var inserted bool
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO nudge_events (trip_id, user_id, dedupe_key, status, nudge_type, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (trip_id, user_id, dedupe_key, status)
		DO UPDATE SET created_at=EXCLUDED.created_at, nudge_type=EXCLUDED.nudge_type
		RETURNING (xmax = 0)`,
		rec.TripID, rec.UserID, rec.DedupeKey, string(rec.Status), string(rec.NudgeType), rec.CreatedAt.UnixMilli()).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert nudge event: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) LatestNudgeEvent(ctx context.Context, tripID, userID, dedupeKey string, statuses []model.NudgeStatus) (time.Time, bool, error) {
	if len(statuses) == 0 {
		return time.Time{}, false, nil
	}
	args := []any{tripID, userID, dedupeKey}
	ph := make([]string, len(statuses))
	for i, st := range statuses {
		ph[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, string(st))
	}
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(created_at) FROM nudge_events
		WHERE trip_id=$1 AND user_id=$2 AND dedupe_key=$3 AND status IN (`+strings.Join(ph, ",")+`)`,
		args...).Scan(&ts)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ts.Int64).UTC(), true, nil
}

func (s *PostgresStore) LatestShown(ctx context.Context, tripID, userID string, since time.Time) (model.NudgeEventRecord, bool, error) {
	var rec model.NudgeEventRecord
	var ts int64
	var status, nudgeType string
	err := s.db.QueryRowContext(ctx, `
		SELECT dedupe_key, status, nudge_type, created_at FROM nudge_events
		WHERE trip_id=$1 AND user_id=$2 AND status=$3 AND created_at>=$4
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

func (s *PostgresStore) PruneShown(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM nudge_events WHERE status=$1 AND created_at<$2`,
		string(model.NudgeShown), before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
