// Package store persists fit history in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver.
	_ "modernc.org/sqlite" // SQLite driver.

	"github.com/verte-zerg/tuifit/internal/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// timeLayout is fixed width so created_at text sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps database access for fit records.
type Store struct {
	db     *sql.DB
	driver string
}

// Open opens or creates the history database and applies migrations. For
// SQLite the dsn is a file path whose directory is created as needed.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, err
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	store := &Store{db: db, driver: driver}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the database driver name.
func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) migrate() error {
	for _, stmt := range migrations(s.driver) {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

func migrations(driver string) []string {
	idColumn := "id INTEGER PRIMARY KEY"
	if driver == DriverPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS fits (
			` + idColumn + `,
			session_id TEXT NOT NULL,
			source TEXT NOT NULL,
			trigger_kind TEXT NOT NULL,
			created_at TEXT NOT NULL,
			x0 DOUBLE PRECISION NOT NULL,
			x1 DOUBLE PRECISION NOT NULL,
			y0 DOUBLE PRECISION NOT NULL,
			y1 DOUBLE PRECISION NOT NULL,
			points INTEGER NOT NULL,
			amplitude DOUBLE PRECISION NOT NULL,
			tau DOUBLE PRECISION NOT NULL,
			offset_value DOUBLE PRECISION NOT NULL,
			has_offset INTEGER NOT NULL,
			status TEXT NOT NULL,
			converged INTEGER NOT NULL,
			ssr DOUBLE PRECISION NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_fits_created_at ON fits(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_fits_source ON fits(source);`,
	}
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// InsertFit stores a fit record and returns its id.
func (s *Store) InsertFit(ctx context.Context, rec model.FitRecord) (int64, error) {
	query := s.rebind(`INSERT INTO fits (session_id, source, trigger_kind, created_at, x0, x1, y0, y1, points, amplitude, tau, offset_value, has_offset, status, converged, ssr)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		rec.SessionID,
		rec.Source,
		string(rec.Trigger),
		rec.CreatedAt.UTC().Format(timeLayout),
		rec.Rect.X0,
		rec.Rect.X1,
		rec.Rect.Y0,
		rec.Rect.Y1,
		rec.Points,
		rec.Amplitude,
		rec.Tau,
		rec.Offset,
		boolInt(rec.HasOffset),
		rec.Status,
		boolInt(rec.Converged),
		rec.SSR,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert fit: %w", err)
	}
	return id, nil
}

// ListFits returns records matching filter in chronological order. Last
// keeps only the most recent N.
func (s *Store) ListFits(ctx context.Context, filter model.HistoryFilter) ([]model.FitRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	query := fmt.Sprintf(`SELECT id, session_id, source, trigger_kind, created_at, x0, x1, y0, y1, points, amplitude, tau, offset_value, has_offset, status, converged, ssr
		FROM fits
		WHERE %s
		ORDER BY created_at DESC, id DESC`, strings.Join(clauses, " AND "))
	if filter.Last > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Last)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fits: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var records []model.FitRecord
	for rows.Next() {
		var rec model.FitRecord
		var trigger, createdAt string
		var hasOffset, converged int
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Source, &trigger, &createdAt,
			&rec.Rect.X0, &rec.Rect.X1, &rec.Rect.Y0, &rec.Rect.Y1, &rec.Points,
			&rec.Amplitude, &rec.Tau, &rec.Offset, &hasOffset, &rec.Status, &converged, &rec.SSR); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, err
		}
		rec.Trigger = model.Trigger(trigger)
		rec.CreatedAt = parsed
		rec.HasOffset = hasOffset != 0
		rec.Converged = converged != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
