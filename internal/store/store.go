// Package store is the data access layer for stagehop: venues, events
// and the deployment audit trail, persisted through bun on SQLite or
// PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // Pure Go SQLite driver
)

// Store wraps the bun handle for one database backend.
type Store struct {
	db *bun.DB
}

// New opens the database named by driver ("sqlite" or "postgres") and dsn.
func New(driver, dsn string) (*Store, error) {
	var (
		sqldb *sql.DB
		err   error
		db    *bun.DB
	)

	switch driver {
	case "", "sqlite":
		sqldb, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case "postgres":
		sqldb, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	return &Store{db: db}, nil
}

// Init creates the tables if they don't exist.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*Venue)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create venues table: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*Event)(nil)).IfNotExists().WithForeignKeys().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*Deployment)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create deployments table: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Venues returns every venue, ordered by name.
func (s *Store) Venues(ctx context.Context) ([]Venue, error) {
	var venues []Venue
	if err := s.db.NewSelect().Model(&venues).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to query venues: %w", err)
	}
	return venues, nil
}

// AddVenue inserts a venue and fills in its ID.
func (s *Store) AddVenue(ctx context.Context, v *Venue) error {
	if _, err := s.db.NewInsert().Model(v).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert venue: %w", err)
	}
	return nil
}

// AddEvent inserts an event and fills in its ID.
func (s *Store) AddEvent(ctx context.Context, e *Event) error {
	if _, err := s.db.NewInsert().Model(e).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// EventsBetween returns events with their venue in the [from, to] window,
// ordered by date.
func (s *Store) EventsBetween(ctx context.Context, from, to time.Time) ([]Event, error) {
	var events []Event
	err := s.db.NewSelect().
		Model(&events).
		Relation("Venue").
		Where("e.date >= ?", from).
		Where("e.date <= ?", to).
		Order("e.date ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return events, nil
}

// EventFilter narrows an Events query. Nil time bounds are open.
type EventFilter struct {
	From      *time.Time
	To        *time.Time
	VenueName string // case-insensitive substring match
	Limit     int
	Offset    int
}

// Events returns events with their venue matching the filter, ordered by
// date, paginated.
func (s *Store) Events(ctx context.Context, f EventFilter) ([]Event, error) {
	var events []Event

	q := s.db.NewSelect().Model(&events).Relation("Venue")

	if f.From != nil {
		q = q.Where("e.date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("e.date <= ?", *f.To)
	}
	if f.VenueName != "" {
		q = q.Where("lower(venue.name) LIKE ?", "%"+strings.ToLower(f.VenueName)+"%")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	q = q.Order("e.date ASC").Limit(limit)
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return events, nil
}

// RecordDeployment appends a deploy report to the audit trail.
func (s *Store) RecordDeployment(ctx context.Context, d *Deployment) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if _, err := s.db.NewInsert().Model(d).Exec(ctx); err != nil {
		return fmt.Errorf("failed to record deployment: %w", err)
	}
	return nil
}

// Deployments returns up to limit deploy records, newest first.
func (s *Store) Deployments(ctx context.Context, limit int) ([]Deployment, error) {
	if limit <= 0 {
		limit = 20
	}

	var deployments []Deployment
	err := s.db.NewSelect().
		Model(&deployments).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query deployments: %w", err)
	}
	return deployments, nil
}
