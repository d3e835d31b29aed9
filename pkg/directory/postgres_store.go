package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/1F47E/qr-navigator/pkg/models"
	_ "github.com/lib/pq"
)

// PostgresStore is a Store over a destinations table
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a Postgres connection
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{db: db}, nil
}

// InitSchema creates the destinations table if it does not exist
func (p *PostgresStore) InitSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS destinations (
		name TEXT PRIMARY KEY,
		x DOUBLE PRECISION NOT NULL,
		y DOUBLE PRECISION NOT NULL,
		z DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create destinations table: %w", err)
	}
	return nil
}

// Upsert inserts or updates destinations in one transaction
func (p *PostgresStore) Upsert(ctx context.Context, destinations []Destination) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO destinations (name, x, y, z)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET x = EXCLUDED.x, y = EXCLUDED.y, z = EXCLUDED.z
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range destinations {
		if _, err := stmt.ExecContext(ctx, d.Name, d.Position.X, d.Position.Y, d.Position.Z); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to upsert destination %s: %w", d.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Search implements Store. Results are ordered by insertion time, then name.
func (p *PostgresStore) Search(ctx context.Context, text string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT name FROM destinations
		WHERE name ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at, name
	`, escapeLike(text))
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return names, nil
}

// Lookup implements Store
func (p *PostgresStore) Lookup(ctx context.Context, name string) (models.Vec3, error) {
	var v models.Vec3
	err := p.db.QueryRowContext(ctx,
		`SELECT x, y, z FROM destinations WHERE name = $1`, name,
	).Scan(&v.X, &v.Y, &v.Z)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Vec3{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if err != nil {
		return models.Vec3{}, fmt.Errorf("failed to look up %q: %w", name, err)
	}
	return v, nil
}

// Count returns the number of destinations in the database
func (p *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM destinations").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count destinations: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

// escapeLike escapes LIKE wildcards so text matches literally
func escapeLike(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(text)
}
