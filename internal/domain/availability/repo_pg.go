package availability

import (
	"context"
	"errors"
	"time"

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

const availCols = `id, professional_id, start_time, end_time, status, created_at, updated_at`

// SQLSTATE 23P01 is raised by the exclusion constraint when two window
// writes race past the application-level overlap check.
func overlapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
		return apperror.Conflict("availability.overlap", "availability overlaps an existing window")
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, a *Availability) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO availabilities (id, professional_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.ProfessionalID, a.StartTime, a.EndTime, a.Status,
	)
	return overlapConflict(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Availability, error) {
	return scanAvailability(r.conn(ctx).QueryRow(ctx,
		`SELECT `+availCols+` FROM availabilities WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Availability) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE availabilities SET start_time=$2, end_time=$3, status=$4, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.StartTime, a.EndTime, a.Status,
	)
	return overlapConflict(err)
}

// Delete soft-deletes by marking the window inactive.
func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE availabilities SET status=$2, updated_at=NOW() WHERE id = $1`, id, StatusInactive)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Availability, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM availabilities`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+availCols+` FROM availabilities ORDER BY start_time LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectAvailabilities(rows, total)
}

func (r *repoPG) ListByProfessional(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]*Availability, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM availabilities WHERE professional_id = $1`, professionalID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+availCols+` FROM availabilities WHERE professional_id = $1 ORDER BY start_time LIMIT $2 OFFSET $3`,
		professionalID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectAvailabilities(rows, total)
}

func (r *repoPG) ListActiveEndingAfter(ctx context.Context, professionalID uuid.UUID, after time.Time) ([]*Availability, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+availCols+` FROM availabilities
		WHERE professional_id = $1 AND status = $2 AND end_time > $3
		ORDER BY start_time`,
		professionalID, StatusActive, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	avs, _, err := collectAvailabilities(rows, 0)
	return avs, err
}

func (r *repoPG) HasOverlap(ctx context.Context, professionalID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM availabilities
			WHERE professional_id = $1
			  AND status = $2
			  AND start_time < $4
			  AND end_time > $3
			  AND ($5::uuid IS NULL OR id <> $5)
		)`,
		professionalID, StatusActive, start, end, excludeID,
	).Scan(&exists)
	return exists, err
}

func (r *repoPG) HasCoverage(ctx context.Context, professionalID uuid.UUID, start, end time.Time) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM availabilities
			WHERE professional_id = $1
			  AND status = $2
			  AND start_time <= $3
			  AND end_time >= $4
		)`,
		professionalID, StatusActive, start, end,
	).Scan(&exists)
	return exists, err
}

func scanAvailability(row pgx.Row) (*Availability, error) {
	var a Availability
	err := row.Scan(&a.ID, &a.ProfessionalID, &a.StartTime, &a.EndTime, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("availability.not_found", "availability not found")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAvailabilities(rows pgx.Rows, total int) ([]*Availability, int, error) {
	var avs []*Availability
	for rows.Next() {
		var a Availability
		if err := rows.Scan(&a.ID, &a.ProfessionalID, &a.StartTime, &a.EndTime, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		avs = append(avs, &a)
	}
	return avs, total, rows.Err()
}
