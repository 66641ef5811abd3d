// Package store keeps an audit log of localizations in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"go.viam.com/sphereloc/localize"
	"go.viam.com/sphereloc/logging"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timestamps are stored in UTC at fixed width so they sort as text
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Record is one stored localization.
type Record struct {
	ID                string                  `json:"id"`
	CreatedAt         time.Time               `json:"created_at"`
	Request           localize.Request        `json:"request"`
	Point             localize.LocalizedPoint `json:"point"`
	Units             string                  `json:"units"`
	CalibrationSource string                  `json:"calibration_source,omitempty"`
}

// Store is a SQLite backed localization log. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger logging.Logger
	clock  clock.Clock
}

// Open opens (creating if needed) the database at path and migrates it to the latest schema.
func Open(ctx context.Context, path string, logger logging.Logger) (*Store, error) {
	// writers wait for each other instead of failing with SQLITE_BUSY
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open store %q", path)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "cannot open store %q", path), db.Close())
	}
	s := &Store{db: db, logger: logger, clock: clock.New()}
	if err := s.migrateUp(); err != nil {
		return nil, multierr.Combine(err, db.Close())
	}
	return s, nil
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "cannot read embedded migrations")
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "cannot create sqlite migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create migrate instance")
	}
	m.Log = &migrateLogger{logger: s.logger}
	return m, nil
}

// migrateUp runs all pending migrations. The migrate instance is not closed since that would
// close the shared database handle.
func (s *Store) migrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migration up failed")
	}
	return nil
}

// Version returns the schema version and whether a migration was left half applied.
func (s *Store) Version() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

type migrateLogger struct {
	logger logging.Logger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Debugf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// Record stores rec, assigning its ID and creation time when unset, and returns the ID.
func (s *Store) Record(ctx context.Context, rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO localizations (
			id, created_at, center_x, center_y, diameter_px, image_width, image_height,
			x, y, z, units, calibration_source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UTC().Format(timeFormat),
		rec.Request.CenterX, rec.Request.CenterY, rec.Request.Diameter,
		rec.Request.ImageWidth, rec.Request.ImageHeight,
		rec.Point.X, rec.Point.Y, rec.Point.Z, rec.Units, rec.CalibrationSource,
	)
	if err != nil {
		return "", errors.Wrap(err, "cannot store localization")
	}
	return rec.ID, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, errors.Errorf("limit must be positive, got %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, center_x, center_y, diameter_px, image_width, image_height,
			x, y, z, units, calibration_source
		FROM localizations
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query localizations")
	}
	defer func() {
		// read errors surface through rows.Err
		_ = rows.Close()
	}()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var createdAt string
		if err := rows.Scan(
			&rec.ID, &createdAt,
			&rec.Request.CenterX, &rec.Request.CenterY, &rec.Request.Diameter,
			&rec.Request.ImageWidth, &rec.Request.ImageHeight,
			&rec.Point.X, &rec.Point.Y, &rec.Point.Z, &rec.Units, &rec.CalibrationSource,
		); err != nil {
			return nil, errors.Wrap(err, "cannot read localization")
		}
		if rec.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, errors.Wrapf(err, "localization %s has a malformed timestamp", rec.ID)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "cannot read localizations")
	}
	return records, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM localizations`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "cannot count localizations")
	}
	return n, nil
}

// Prune deletes records created before cutoff and returns how many were deleted.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM localizations WHERE created_at < ?`, cutoff.UTC().Format(timeFormat))
	if err != nil {
		return 0, errors.Wrap(err, "cannot prune localizations")
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
