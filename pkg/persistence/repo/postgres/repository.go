package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-persist/pkg/persistence"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements persistence.Repository using PostgreSQL
type Repository struct {
	db    DBTX
	close func()
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, close: pool.Close}
}

// Close releases the pool passed to NewWithPool. Repositories created with
// New leave the connection to the caller.
func (r *Repository) Close() error {
	if r.close != nil {
		r.close()
		r.close = nil
	}
	return nil
}

// EnsureSchema creates the catalog table when it does not exist yet
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return r.handlePostgresError("ensure schema", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "engine_namespace_name") {
				return fmt.Errorf("%s: %w", operation, persistence.ErrAlreadyExists)
			}
			return fmt.Errorf("duplicate entry")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrRecordNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const recordColumns = `id, engine, namespace, name, object_type, uri, size, created_at, updated_at`

func scanRecord(row pgx.Row) (*persistence.Record, error) {
	var record persistence.Record
	err := row.Scan(
		&record.ID, &record.Engine, &record.Namespace, &record.Name,
		&record.ObjectType, &record.URI, &record.Size,
		&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Repository) SaveRecord(ctx context.Context, record *persistence.Record) error {
	query := `
		INSERT INTO persisted_object (
			id, engine, namespace, name, object_type, uri, size, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			engine = EXCLUDED.engine,
			namespace = EXCLUDED.namespace,
			name = EXCLUDED.name,
			object_type = EXCLUDED.object_type,
			uri = EXCLUDED.uri,
			size = EXCLUDED.size,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		record.ID, record.Engine, record.Namespace, record.Name,
		record.ObjectType, record.URI, record.Size,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("save record", err)
	}

	return nil
}

func (r *Repository) GetRecord(ctx context.Context, id uuid.UUID) (*persistence.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM persisted_object WHERE id = $1`

	record, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get record", err)
	}
	return record, nil
}

func (r *Repository) GetRecordByName(ctx context.Context, engine, namespace, name string) (*persistence.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM persisted_object
		WHERE engine = $1 AND namespace = $2 AND name = $3`

	record, err := scanRecord(r.db.QueryRow(ctx, query, engine, namespace, name))
	if err != nil {
		return nil, r.handlePostgresError("get record by name", err)
	}
	return record, nil
}

func (r *Repository) ListRecords(ctx context.Context, namespace string) ([]*persistence.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM persisted_object
		WHERE ($1::text = '' OR namespace = $1)
		ORDER BY namespace, name`

	rows, err := r.db.Query(ctx, query, namespace)
	if err != nil {
		return nil, r.handlePostgresError("list records", err)
	}
	defer rows.Close()

	var records []*persistence.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan record", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list records", err)
	}

	return records, nil
}

func (r *Repository) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM persisted_object WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete record", err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrRecordNotFound
	}
	return nil
}
