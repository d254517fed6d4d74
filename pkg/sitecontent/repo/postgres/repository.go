package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements sitecontent.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) sitecontent.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) sitecontent.Repository {
	return &Repository{db: pool}
}

const slotColumns = `id, page, "key", title_1, title_2, image_1, image_2, description,
	link_title_1, link_1, link_title_2, link_2, created_at, updated_at`

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("duplicate slot in %s: %w", operation, err)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing: %w", pgErr.ColumnName, err)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required: %w", err)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s): %w", operation, pgErr.Message, pgErr.Code, err)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func scanSlot(row pgx.Row) (*sitecontent.Slot, error) {
	var slot sitecontent.Slot
	err := row.Scan(
		&slot.ID, &slot.Page, &slot.Key,
		&slot.Title1, &slot.Title2, &slot.Image1, &slot.Image2, &slot.Description,
		&slot.LinkTitle1, &slot.Link1, &slot.LinkTitle2, &slot.Link2,
		&slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		return nil, err
	}
	slot.CreatedAt = slot.CreatedAt.UTC()
	slot.UpdatedAt = slot.UpdatedAt.UTC()
	return &slot, nil
}

func (r *Repository) Find(ctx context.Context, page, key string) (*sitecontent.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM dynamic_parts WHERE page = $1 AND "key" = $2`

	slot, err := scanSlot(r.db.QueryRow(ctx, query, page, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, r.handlePostgresError("find slot", err)
	}

	return slot, nil
}

// buildUpsert renders a single INSERT ... ON CONFLICT statement. Only the
// patched columns are listed in DO UPDATE, so unmentioned columns keep
// their stored values.
func buildUpsert(page, key string, patch sitecontent.Patch, now time.Time) (string, []interface{}) {
	columns := []string{"page", `"key"`, "created_at", "updated_at"}
	args := []interface{}{page, key, now, now}
	var updates []string

	for _, f := range patch.Fields() {
		columns = append(columns, string(f))
		args = append(args, patch[f])
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", f, f))
	}
	updates = append(updates, "updated_at = GREATEST(EXCLUDED.updated_at, dynamic_parts.updated_at)")

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`
		INSERT INTO dynamic_parts (%s) VALUES (%s)
		ON CONFLICT (page, "key") DO UPDATE SET
			%s
		RETURNING %s`,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ",\n\t\t\t"),
		slotColumns)

	return query, args
}

func (r *Repository) Upsert(ctx context.Context, page, key string, patch sitecontent.Patch, now time.Time) (*sitecontent.Slot, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	query, args := buildUpsert(page, key, patch, now)
	slot, err := scanSlot(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, r.handlePostgresError("upsert slot", err)
	}

	return slot, nil
}

func (r *Repository) ListPage(ctx context.Context, page string) ([]*sitecontent.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM dynamic_parts WHERE page = $1 ORDER BY "key"`

	rows, err := r.db.Query(ctx, query, page)
	if err != nil {
		return nil, r.handlePostgresError("list slots", err)
	}
	defer rows.Close()

	var slots []*sitecontent.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, r.handlePostgresError("list slots", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list slots", err)
	}

	return slots, nil
}
