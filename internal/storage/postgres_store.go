package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/fare-finder/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// Migrate applies a schema script, used when MIGRATE=true.
func (p *PostgresStore) Migrate(ctx context.Context, script string) error {
	_, err := p.db.ExecContext(ctx, script)
	return err
}

func (p *PostgresStore) SaveOutcome(ctx context.Context, o models.Outcome) error {
	req, err := json.Marshal(o.Request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO prediction_outcomes(id, session_id, request, phase, fare, message, duration_ms, created_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		o.ID, o.SessionID, string(req), o.Phase, o.Fare, o.Message, o.DurationMs, o.CreatedAt)
	return err
}

func (p *PostgresStore) RecentOutcomes(ctx context.Context, limit int) ([]models.Outcome, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, session_id, request, phase, fare, message, duration_ms, created_at FROM prediction_outcomes ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Outcome
	for rows.Next() {
		var (
			o    models.Outcome
			req  []byte
			fare sql.NullFloat64
		)
		if err := rows.Scan(&o.ID, &o.SessionID, &req, &o.Phase, &fare, &o.Message, &o.DurationMs, &o.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(req, &o.Request); err != nil {
			return nil, fmt.Errorf("decode request of %s: %w", o.ID, err)
		}
		if fare.Valid {
			v := fare.Float64
			o.Fare = &v
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Close() error { return p.db.Close() }
