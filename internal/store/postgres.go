package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/i474232898/weather-poller/internal/weather"
)

const schema = `
CREATE TABLE IF NOT EXISTS weather_records (
	id           UUID PRIMARY KEY,
	country      VARCHAR(100) NOT NULL,
	city         TEXT NOT NULL,
	min_temp     DOUBLE PRECISION NOT NULL,
	max_temp     DOUBLE PRECISION NOT NULL,
	current_temp DOUBLE PRECISION NOT NULL,
	humidity     INTEGER NOT NULL,
	recorded_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS weather_records_recorded_at_idx
	ON weather_records (recorded_at DESC, id DESC);`

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

var _ weather.Store = (*PostgresStore)(nil)

// PostgresStore persists weather records in Postgres through the pgx driver.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres opens and pings a connection pool for dsn.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an existing database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the records table and its timestamp index if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("weather store: nil db")
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate weather_records: %w", err)
	}
	return nil
}

// Append inserts rec in a single statement.
func (s *PostgresStore) Append(ctx context.Context, rec weather.Record) error {
	if s == nil || s.db == nil {
		return &weather.StorageError{Op: "append", Err: errors.New("nil db")}
	}
	if err := rec.Validate(); err != nil {
		return &weather.StorageError{Op: "append", Err: err}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO weather_records (
	id, country, city, min_temp, max_temp, current_temp, humidity, recorded_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID.String(), rec.Country, rec.City, rec.MinTemp, rec.MaxTemp,
		rec.CurrentTemp, rec.Humidity, rec.Timestamp.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			err = ErrDuplicateID
		}
		return &weather.StorageError{Op: "append", Err: err}
	}
	return nil
}

// LatestN returns up to n records ordered by recorded_at descending, ties by id.
func (s *PostgresStore) LatestN(ctx context.Context, n int) ([]weather.Record, error) {
	if s == nil || s.db == nil {
		return nil, &weather.StorageError{Op: "latest", Err: errors.New("nil db")}
	}
	if n <= 0 {
		return []weather.Record{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, country, city, min_temp, max_temp, current_temp, humidity, recorded_at
FROM weather_records
ORDER BY recorded_at DESC, id DESC
LIMIT $1`, n)
	if err != nil {
		return nil, &weather.StorageError{Op: "latest", Err: err}
	}
	defer rows.Close()

	result := make([]weather.Record, 0, n)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &weather.StorageError{Op: "latest", Err: err}
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &weather.StorageError{Op: "latest", Err: err}
	}
	return result, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (weather.Record, error) {
	var (
		rec weather.Record
		id  string
	)
	if err := row.Scan(&id, &rec.Country, &rec.City, &rec.MinTemp, &rec.MaxTemp,
		&rec.CurrentTemp, &rec.Humidity, &rec.Timestamp); err != nil {
		return weather.Record{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return weather.Record{}, fmt.Errorf("parse record id %q: %w", id, err)
	}
	rec.ID = parsed
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}
