// Package history keeps every observation in PostgreSQL so trends can be
// queried after the single-entry log has been overwritten.
package history

import (
	"context"
	"fmt"
	"time"

	"applimon/internal/classify"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Observation is one classified patch from one run.
type Observation struct {
	RunID      uuid.UUID
	ObservedAt time.Time
	MarkerID   int
	Status     classify.Status
	Ratio      float64
	Notified   bool
}

// Recorder is the part of Store the pipeline uses.
type Recorder interface {
	Record(ctx context.Context, obs Observation) error
}

// Store manages the PostgreSQL connection.
type Store struct {
	conn *pgx.Conn
}

// New connects and creates the schema when it is missing.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS observations (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL,
			marker_id INT NOT NULL,
			status TEXT NOT NULL,
			ratio DOUBLE PRECISION NOT NULL,
			notified BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS observations_observed_at_idx ON observations (observed_at DESC);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

func (s *Store) Record(ctx context.Context, obs Observation) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO observations (run_id, observed_at, marker_id, status, ratio, notified)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, obs.RunID.String(), obs.ObservedAt, obs.MarkerID, obs.Status.String(), obs.Ratio, obs.Notified)
	return err
}

// Recent returns up to limit observations, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Observation, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT run_id, observed_at, marker_id, status, ratio, notified
		FROM observations
		ORDER BY observed_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var (
			o      Observation
			runID  string
			status string
		)
		if err := rows.Scan(&runID, &o.ObservedAt, &o.MarkerID, &status, &o.Ratio, &o.Notified); err != nil {
			return nil, err
		}
		if o.RunID, err = uuid.Parse(runID); err != nil {
			return nil, fmt.Errorf("bad run_id %q: %w", runID, err)
		}
		if err := o.Status.UnmarshalText([]byte(status)); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
