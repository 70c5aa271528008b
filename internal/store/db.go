package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/baxromumarov/econ-indicators/internal/indicator"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed schema.sql
var embeddedSchema string

type Store struct {
	db     *sql.DB
	driver string
}

// NewStore opens dsn with driver. An empty driver is inferred from the DSN:
// postgres:// URLs use lib/pq, anything else is a SQLite path.
func NewStore(driver, dsn string) (*Store, error) {
	driver = resolveDriver(driver, dsn)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if driver == DriverSQLite {
		// One writer keeps SQLite from returning SQLITE_BUSY under the refresh loop.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

func resolveDriver(driver, dsn string) string {
	switch strings.ToLower(driver) {
	case DriverPostgres, "postgresql", "pq":
		return DriverPostgres
	case DriverSQLite, "sqlite3":
		return DriverSQLite
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RunMigrations executes the schema at schemaPath, or the embedded schema when the path is empty.
func (s *Store) RunMigrations(schemaPath string) error {
	content := embeddedSchema
	if schemaPath != "" {
		raw, err := os.ReadFile(schemaPath)
		if err != nil {
			return fmt.Errorf("failed to read schema file: %w", err)
		}
		content = string(raw)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, content); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func clampLimit(limit int, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

type Snapshot struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Entity    string    `json:"entity"`
	Indicator string    `json:"indicator"`
	From      int       `json:"from,omitempty"`
	To        int       `json:"to,omitempty"`
	Status    string    `json:"status"`
	Rows      int       `json:"rows"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveTable upserts every observation of tbl under source and returns how many were written.
func (s *Store) SaveTable(ctx context.Context, source string, tbl indicator.Table) (int, error) {
	if tbl.IsEmpty() {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
INSERT INTO observations (source, entity, indicator, year, value, entity_label, indicator_label, fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (source, entity, indicator, year) DO UPDATE SET
    value = EXCLUDED.value,
    entity_label = EXCLUDED.entity_label,
    indicator_label = EXCLUDED.indicator_label,
    fetched_at = EXCLUDED.fetched_at
`))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, o := range tbl.Observations {
		var value any
		if o.Value != nil {
			value = *o.Value
		}
		if _, err := stmt.ExecContext(ctx, source, o.Entity, o.Indicator, o.Year, value, o.EntityLabel, o.IndicatorLabel, now); err != nil {
			return 0, fmt.Errorf("failed to save %s/%s/%d: %w", o.Entity, o.Indicator, o.Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return tbl.Len(), nil
}

// LoadTable returns the persisted rows matching req, years ascending.
func (s *Store) LoadTable(ctx context.Context, source string, req indicator.Request) (indicator.Table, error) {
	if req.EmptyRange() {
		return indicator.Table{}, nil
	}

	query := `
SELECT entity, indicator, year, value, entity_label, indicator_label
FROM observations
WHERE source = ? AND entity = ? AND indicator = ?`
	args := []any{source, req.Entity, req.Indicator}
	if req.From != 0 {
		query += " AND year >= ?"
		args = append(args, req.From)
	}
	if req.To != 0 {
		query += " AND year <= ?"
		args = append(args, req.To)
	}
	query += " ORDER BY year ASC"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return indicator.Table{}, err
	}
	defer rows.Close()

	var obs []indicator.Observation
	for rows.Next() {
		var (
			o     indicator.Observation
			value sql.NullFloat64
		)
		if err := rows.Scan(&o.Entity, &o.Indicator, &o.Year, &value, &o.EntityLabel, &o.IndicatorLabel); err != nil {
			return indicator.Table{}, err
		}
		if value.Valid {
			o.Value = indicator.Float(value.Float64)
		}
		obs = append(obs, o)
	}
	return indicator.NewTable(obs...), rows.Err()
}

func (s *Store) RecordSnapshot(ctx context.Context, snap Snapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
INSERT INTO snapshots (id, source, entity, indicator, from_year, to_year, status, row_count, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`), snap.ID, snap.Source, snap.Entity, snap.Indicator, snap.From, snap.To, snap.Status, snap.Rows, snap.Error, snap.CreatedAt.Unix())
	return err
}

// ListSnapshots returns the most recent snapshots first, with the total count.
func (s *Store) ListSnapshots(ctx context.Context, limit, offset int) ([]Snapshot, int, error) {
	limit = clampLimit(limit, 20, 200)
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT id, source, entity, indicator, from_year, to_year, status, row_count, error, created_at
FROM snapshots
ORDER BY created_at DESC, id ASC
LIMIT ? OFFSET ?
`), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var (
			snap      Snapshot
			createdAt int64
		)
		if err := rows.Scan(
			&snap.ID,
			&snap.Source,
			&snap.Entity,
			&snap.Indicator,
			&snap.From,
			&snap.To,
			&snap.Status,
			&snap.Rows,
			&snap.Error,
			&createdAt,
		); err != nil {
			return nil, 0, err
		}
		snap.CreatedAt = time.Unix(createdAt, 0).UTC()
		snaps = append(snaps, snap)
	}
	return snaps, total, rows.Err()
}

func (s *Store) DeleteOldObservations(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	res, err := s.db.ExecContext(ctx, s.rebind(`
DELETE FROM observations
WHERE fetched_at < ?
`), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
