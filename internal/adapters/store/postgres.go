// Package store implements core.RelationshipStore.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CallRelay/internal/core"
	"github.com/dkeye/CallRelay/internal/domain"
)

// PostgresStore reads relationship rows of the form
// (doctor_id, patient_id, status) from a single table.
type PostgresStore struct {
	db    *sql.DB
	query string
}

// OpenPostgres opens a pool for dsn. An unreachable database is logged but
// not fatal: every query fails until it comes back and the gate denies
// calls meanwhile.
func OpenPostgres(ctx context.Context, dsn, table string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Error().Err(err).Str("module", "adapters.store").Msg("relationship store unreachable, calls will be denied until it recovers")
	}
	return NewPostgresStore(db, table), nil
}

func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	return &PostgresStore{db: db, query: relationshipQuery(table)}
}

func relationshipQuery(table string) string {
	return fmt.Sprintf(
		`SELECT status FROM %s WHERE doctor_id = $1 AND patient_id = $2 LIMIT 1`,
		pq.QuoteIdentifier(table),
	)
}

func (s *PostgresStore) RelationshipStatus(ctx context.Context, caller, callee domain.UserID) (core.RelationshipStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx, s.query, string(caller), string(callee)).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return core.StatusNone, nil
	}
	if err != nil {
		return core.StatusNone, fmt.Errorf("query relationship: %w", err)
	}
	return core.RelationshipStatus(status), nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
