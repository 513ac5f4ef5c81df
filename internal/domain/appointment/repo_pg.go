package appointment

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

const apptCols = `id, professional_id, student_id, student_email, student_registration, student_full_name, session_type_id, start_time, end_time, status, reason_for_visit, notes, created_at, updated_at`

// SQLSTATE 23P01 is raised by the appointments_no_overlap exclusion
// constraint when two bookings race past the application-level check.
func overlapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
		return apperror.Conflict("appointment.overlap", "appointment overlaps an existing booking")
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (id, professional_id, student_id, student_email, student_registration, student_full_name,
			session_type_id, start_time, end_time, status, reason_for_visit, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.ProfessionalID, a.StudentID, a.StudentEmail, a.StudentRegistration, a.StudentFullName,
		a.SessionTypeID, a.StartTime, a.EndTime, a.Status, a.ReasonForVisit, a.Notes,
	)
	return overlapConflict(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET
			student_id=$2, student_email=$3, student_registration=$4, student_full_name=$5,
			session_type_id=$6, start_time=$7, end_time=$8, status=$9, reason_for_visit=$10, notes=$11, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.StudentID, a.StudentEmail, a.StudentRegistration, a.StudentFullName,
		a.SessionTypeID, a.StartTime, a.EndTime, a.Status, a.ReasonForVisit, a.Notes,
	)
	return overlapConflict(err)
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+apptCols+` FROM appointments ORDER BY start_time DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectAppointments(rows, total)
}

func (r *repoPG) ListByProfessional(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE professional_id = $1`, professionalID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE professional_id = $1 ORDER BY start_time DESC LIMIT $2 OFFSET $3`,
		professionalID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectAppointments(rows, total)
}

func (r *repoPG) ListByStudent(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE student_id = $1`, studentID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE student_id = $1 ORDER BY start_time DESC LIMIT $2 OFFSET $3`,
		studentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectAppointments(rows, total)
}

func (r *repoPG) ListActiveByProfessional(ctx context.Context, professionalID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE professional_id = $1 AND status <> $2 ORDER BY start_time`,
		professionalID, StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appts, _, err := collectAppointments(rows, 0)
	return appts, err
}

func (r *repoPG) HasOverlap(ctx context.Context, professionalID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE professional_id = $1
			  AND status <> $2
			  AND start_time < $4
			  AND COALESCE(end_time, start_time + interval '30 minutes') > $3
			  AND ($5::uuid IS NULL OR id <> $5)
		)`,
		professionalID, StatusCancelled, start, end, excludeID,
	).Scan(&exists)
	return exists, err
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.ProfessionalID, &a.StudentID, &a.StudentEmail, &a.StudentRegistration,
		&a.StudentFullName, &a.SessionTypeID, &a.StartTime, &a.EndTime, &a.Status,
		&a.ReasonForVisit, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("appointment.not_found", "appointment not found")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows, total int) ([]*Appointment, int, error) {
	var appts []*Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.ProfessionalID, &a.StudentID, &a.StudentEmail, &a.StudentRegistration,
			&a.StudentFullName, &a.SessionTypeID, &a.StartTime, &a.EndTime, &a.Status,
			&a.ReasonForVisit, &a.Notes, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		appts = append(appts, &a)
	}
	return appts, total, rows.Err()
}
