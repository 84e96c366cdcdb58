// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/harvestlink/traceledger/internal/model"
	"github.com/harvestlink/traceledger/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateVTI(ctx context.Context, vti *model.VTI) error {
	return queryCreateVTI(ctx, s.db, vti)
}

func (s *PostgresStore) GetVTI(ctx context.Context, id string) (*model.VTI, error) {
	return queryGetVTI(ctx, s.db, id)
}

func (s *PostgresStore) ListPublicVTIs(ctx context.Context, limit int) ([]*model.VTI, error) {
	return queryListPublicVTIs(ctx, s.db, limit)
}

func (s *PostgresStore) UpdateVTIStatus(ctx context.Context, id string, status model.VTIStatus) error {
	return queryUpdateVTIStatus(ctx, s.db, id, status)
}

func (s *PostgresStore) AddLink(ctx context.Context, vtiID, linkedID string) error {
	return queryAddLink(ctx, s.db, vtiID, linkedID)
}

func (s *PostgresStore) GetLinks(ctx context.Context, vtiID string) ([]string, error) {
	return queryGetLinks(ctx, s.db, vtiID)
}

func (s *PostgresStore) AppendEvent(ctx context.Context, event *model.TraceEvent) error {
	return queryAppendEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvent(ctx context.Context, id int64) (*model.TraceEvent, error) {
	return queryGetEvent(ctx, s.db, id)
}

func (s *PostgresStore) ListEventsByPlot(ctx context.Context, plotID string, preHarvestOnly bool) ([]*model.TraceEvent, error) {
	return queryListEventsByPlot(ctx, s.db, plotID, preHarvestOnly)
}

func (s *PostgresStore) ListEventsByVTI(ctx context.Context, vtiID string) ([]*model.TraceEvent, error) {
	return queryListEventsByVTI(ctx, s.db, vtiID)
}

func (s *PostgresStore) AddAnnotation(ctx context.Context, a *model.Annotation) error {
	return queryAddAnnotation(ctx, s.db, a)
}

func (s *PostgresStore) ListAnnotationsByVTI(ctx context.Context, vtiID string) ([]*model.Annotation, error) {
	return queryListAnnotationsByVTI(ctx, s.db, vtiID)
}

func (s *PostgresStore) ListAllVTIs(ctx context.Context) ([]*model.VTI, error) {
	return queryListAllVTIs(ctx, s.db)
}

func (s *PostgresStore) ListAllEvents(ctx context.Context) ([]*model.TraceEvent, error) {
	return queryListAllEvents(ctx, s.db)
}

func (s *PostgresStore) ListAllAnnotations(ctx context.Context) ([]*model.Annotation, error) {
	return queryListAllAnnotations(ctx, s.db)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateVTI(ctx context.Context, vti *model.VTI) error {
	return queryCreateVTI(ctx, s.tx, vti)
}

func (s *txStore) GetVTI(ctx context.Context, id string) (*model.VTI, error) {
	return queryGetVTI(ctx, s.tx, id)
}

func (s *txStore) ListPublicVTIs(ctx context.Context, limit int) ([]*model.VTI, error) {
	return queryListPublicVTIs(ctx, s.tx, limit)
}

func (s *txStore) UpdateVTIStatus(ctx context.Context, id string, status model.VTIStatus) error {
	return queryUpdateVTIStatus(ctx, s.tx, id, status)
}

func (s *txStore) AddLink(ctx context.Context, vtiID, linkedID string) error {
	return queryAddLink(ctx, s.tx, vtiID, linkedID)
}

func (s *txStore) GetLinks(ctx context.Context, vtiID string) ([]string, error) {
	return queryGetLinks(ctx, s.tx, vtiID)
}

func (s *txStore) AppendEvent(ctx context.Context, event *model.TraceEvent) error {
	return queryAppendEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvent(ctx context.Context, id int64) (*model.TraceEvent, error) {
	return queryGetEvent(ctx, s.tx, id)
}

func (s *txStore) ListEventsByPlot(ctx context.Context, plotID string, preHarvestOnly bool) ([]*model.TraceEvent, error) {
	return queryListEventsByPlot(ctx, s.tx, plotID, preHarvestOnly)
}

func (s *txStore) ListEventsByVTI(ctx context.Context, vtiID string) ([]*model.TraceEvent, error) {
	return queryListEventsByVTI(ctx, s.tx, vtiID)
}

func (s *txStore) AddAnnotation(ctx context.Context, a *model.Annotation) error {
	return queryAddAnnotation(ctx, s.tx, a)
}

func (s *txStore) ListAnnotationsByVTI(ctx context.Context, vtiID string) ([]*model.Annotation, error) {
	return queryListAnnotationsByVTI(ctx, s.tx, vtiID)
}

func (s *txStore) ListAllVTIs(ctx context.Context) ([]*model.VTI, error) {
	return queryListAllVTIs(ctx, s.tx)
}

func (s *txStore) ListAllEvents(ctx context.Context) ([]*model.TraceEvent, error) {
	return queryListAllEvents(ctx, s.tx)
}

func (s *txStore) ListAllAnnotations(ctx context.Context) ([]*model.Annotation, error) {
	return queryListAllAnnotations(ctx, s.tx)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
