package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-image/pkg/simpleimage"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Catalog implements simpleimage.Catalog using PostgreSQL. Records live in
// one table; the formats mapping is a JSONB column.
type Catalog struct {
	db    DBTX
	table string
}

// New creates a new PostgreSQL catalog using the image table of schema
// ("public" when empty)
func New(db DBTX, schema string) *Catalog {
	if schema == "" {
		schema = "public"
	}
	return &Catalog{
		db:    db,
		table: pgx.Identifier{schema, "image"}.Sanitize(),
	}
}

// NewWithPool creates a new PostgreSQL catalog with connection pool
func NewWithPool(pool *pgxpool.Pool, schema string) *Catalog {
	return New(pool, schema)
}

// Migrate creates the schema and table when missing
func (c *Catalog) Migrate(ctx context.Context, schema string) error {
	if schema == "" {
		schema = "public"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgx.Identifier{schema}.Sanitize()),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			original_format VARCHAR(16) NOT NULL,
			formats_mapping JSONB NOT NULL DEFAULT '{}'::jsonb,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, c.table),
	}
	for _, stmt := range stmts {
		if _, err := c.db.Exec(ctx, stmt); err != nil {
			return c.handlePostgresError("migrate", err)
		}
	}
	return nil
}

// Error handling helper
func (c *Catalog) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return simpleimage.ErrImageNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("image already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (c *Catalog) Create(ctx context.Context, img *simpleimage.Image) (string, error) {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if img.CreatedAt.IsZero() {
		img.CreatedAt = now
	}
	img.UpdatedAt = now
	mapping := img.FormatsMapping
	if mapping == nil {
		mapping = map[string]string{}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, original_format, formats_mapping, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $6)`, c.table)

	if _, err := c.db.Exec(ctx, query,
		img.ID, img.Name, img.OriginalFormat, mapping, img.CreatedAt, img.UpdatedAt); err != nil {
		return "", c.handlePostgresError("create image", err)
	}

	img.Version = 1
	return img.ID, nil
}

func (c *Catalog) Read(ctx context.Context, id string) (*simpleimage.Image, error) {
	query := fmt.Sprintf(`
		SELECT id, name, original_format, formats_mapping, version, created_at, updated_at
		FROM %s WHERE id = $1`, c.table)

	var img simpleimage.Image
	err := c.db.QueryRow(ctx, query, id).Scan(
		&img.ID, &img.Name, &img.OriginalFormat, &img.FormatsMapping,
		&img.Version, &img.CreatedAt, &img.UpdatedAt)
	if err != nil {
		return nil, c.handlePostgresError("read image", err)
	}
	if img.FormatsMapping == nil {
		img.FormatsMapping = map[string]string{}
	}
	return &img, nil
}

// Update overwrites the record only while its version still matches
func (c *Catalog) Update(ctx context.Context, img *simpleimage.Image) error {
	now := time.Now().UTC()
	query := fmt.Sprintf(`
		UPDATE %s SET
			name = $2, original_format = $3, formats_mapping = $4,
			version = version + 1, updated_at = $5
		WHERE id = $1 AND version = $6
		RETURNING version`, c.table)

	var version int64
	err := c.db.QueryRow(ctx, query,
		img.ID, img.Name, img.OriginalFormat, img.FormatsMapping, now, img.Version).Scan(&version)
	if err == nil {
		img.Version = version
		img.UpdatedAt = now
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return c.handlePostgresError("update image", err)
	}

	// No row matched: either the record is gone or another writer bumped the version.
	var exists bool
	existsQuery := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, c.table)
	if err := c.db.QueryRow(ctx, existsQuery, img.ID).Scan(&exists); err != nil {
		return c.handlePostgresError("update image", err)
	}
	if !exists {
		return simpleimage.ErrImageNotFound
	}
	return simpleimage.ErrVersionConflict
}

func (c *Catalog) Delete(ctx context.Context, img *simpleimage.Image) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, c.table)
	tag, err := c.db.Exec(ctx, query, img.ID)
	if err != nil {
		return c.handlePostgresError("delete image", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleimage.ErrImageNotFound
	}
	return nil
}
