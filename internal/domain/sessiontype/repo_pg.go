package sessiontype

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/icompcare/icompcare/internal/platform/apperror"
	"github.com/icompcare/icompcare/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const typeCols = `id, name, description, duration_minutes, active, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, t *SessionType) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO session_types (id, name, description, duration_minutes, active)
		VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Name, t.Description, t.DurationMinutes, t.Active,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*SessionType, error) {
	var t SessionType
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+typeCols+` FROM session_types WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Description, &t.DurationMinutes, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("session_type.not_found", "session type not found")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repoPG) Update(ctx context.Context, t *SessionType) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE session_types SET name=$2, description=$3, duration_minutes=$4, active=$5, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Name, t.Description, t.DurationMinutes, t.Active,
	)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE session_types SET active=false, updated_at=NOW() WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*SessionType, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM session_types`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+typeCols+` FROM session_types ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var types []*SessionType
	for rows.Next() {
		var t SessionType
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.DurationMinutes, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		types = append(types, &t)
	}
	return types, total, rows.Err()
}
