package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/icompcare/icompcare/internal/platform/apperror"
)

// ApptInfo is the slice of an appointment the session lifecycle needs.
type ApptInfo struct {
	ID             uuid.UUID
	ProfessionalID uuid.UUID
	StudentID      *uuid.UUID
	Status         string
}

// Appointments links sessions back to the appointment lifecycle. Implemented
// by the appointment service.
type Appointments interface {
	Get(ctx context.Context, id uuid.UUID) (ApptInfo, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Directory verifies session participants. Implemented by the identity
// service.
type Directory interface {
	EnsureProfessional(ctx context.Context, id uuid.UUID) error
}

// TxRunner executes fn atomically so the session row and the appointment
// status move together.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo         Repository
	directory    Directory
	appointments Appointments
	tx           TxRunner

	now func() time.Time
}

func NewService(repo Repository, directory Directory, appointments Appointments, tx TxRunner) *Service {
	if tx == nil {
		tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Service{
		repo:         repo,
		directory:    directory,
		appointments: appointments,
		tx:           tx,
		now:          time.Now,
	}
}

// Start opens a session for an appointment. Checks run in a fixed order so
// callers get a stable error for a given state: unknown professional, then an
// already open session, then unknown appointment, then a duplicate session,
// then a missing student link.
func (s *Service) Start(ctx context.Context, professionalID, appointmentID uuid.UUID, notes *string) (*Session, error) {
	if err := s.directory.EnsureProfessional(ctx, professionalID); err != nil {
		return nil, err
	}

	open, err := s.repo.GetOpenByProfessional(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, apperror.Conflict("session.professional_has_open_session",
			"professional already has a session in progress")
	}

	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.ProfessionalID != professionalID {
		return nil, apperror.Forbidden("session.not_appointment_professional",
			"appointment belongs to another professional")
	}

	existing, err := s.repo.GetByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Conflict("session.already_exists_for_appointment",
			"a session already exists for this appointment")
	}

	if appt.StudentID == nil {
		return nil, apperror.Validation("session.student_not_linked",
			"appointment has no student linked")
	}

	sess := &Session{
		AppointmentID:  appointmentID,
		ProfessionalID: professionalID,
		StudentID:      *appt.StudentID,
		Status:         StatusInProgress,
		StartedAt:      s.now().UTC(),
		Notes:          notes,
	}
	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, sess); err != nil {
			return err
		}
		return s.appointments.SetStatus(ctx, appointmentID, "in-session")
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Create records a session directly, for back-filling past work. Unlike
// Start it does not enforce the single-open-session rule or move the
// appointment.
func (s *Service) Create(ctx context.Context, sess *Session) error {
	appt, err := s.appointments.Get(ctx, sess.AppointmentID)
	if err != nil {
		return err
	}

	existing, err := s.repo.GetByAppointment(ctx, sess.AppointmentID)
	if err != nil {
		return err
	}
	if existing != nil {
		return apperror.Conflict("session.already_exists_for_appointment",
			"a session already exists for this appointment")
	}
	if appt.StudentID == nil {
		return apperror.Validation("session.student_not_linked",
			"appointment has no student linked")
	}

	sess.ProfessionalID = appt.ProfessionalID
	sess.StudentID = *appt.StudentID
	if sess.Status == "" {
		sess.Status = StatusInProgress
	} else {
		st, err := ParseStatus(string(sess.Status))
		if err != nil {
			return err
		}
		sess.Status = st
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = s.now().UTC()
	}
	return s.repo.Create(ctx, sess)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Session, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByProfessional(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	return s.repo.ListByProfessional(ctx, professionalID, limit, offset)
}

// GetOpenByProfessional returns the professional's session in progress.
func (s *Service) GetOpenByProfessional(ctx context.Context, professionalID uuid.UUID) (*Session, error) {
	sess, err := s.repo.GetOpenByProfessional(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperror.NotFound("session.no_open_session", "professional has no session in progress")
	}
	return sess, nil
}

// GetByAppointment returns the live session linked to an appointment.
func (s *Service) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Session, error) {
	sess, err := s.repo.GetByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperror.NotFound("session.not_found", "session not found")
	}
	return sess, nil
}

// UpdateParams carries the fields an update may change. Nil fields are left
// untouched.
type UpdateParams struct {
	Status  *string    `json:"status"`
	Notes   *string    `json:"notes"`
	EndedAt *time.Time `json:"ended_at"`
}

// Update applies a partial update. Closing the session as completed or
// cancelled stamps the end time and moves the appointment to the matching
// state. An explicit EndedAt wins over the stamp, so back-filled sessions
// can record when the work actually ended.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*Session, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Notes != nil {
		sess.Notes = p.Notes
	}
	if p.EndedAt != nil {
		sess.EndedAt = p.EndedAt
	}

	var propagate string
	if p.Status != nil {
		newStatus, err := ParseStatus(*p.Status)
		if err != nil {
			return nil, err
		}
		if newStatus != sess.Status {
			if !sess.Status.IsOpen() {
				return nil, apperror.Validation("session.invalid_transition",
					"cannot change status of a "+string(sess.Status)+" session")
			}
			sess.Status = newStatus
			if sess.EndedAt == nil {
				ended := s.now().UTC()
				sess.EndedAt = &ended
			}
			propagate = string(newStatus)
		}
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, sess); err != nil {
			return err
		}
		if propagate != "" {
			return s.appointments.SetStatus(ctx, sess.AppointmentID, propagate)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Cancel soft-deletes a session without touching its appointment. Cancelling
// an already closed session is a no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !sess.Status.IsOpen() {
		return nil
	}
	return s.close(ctx, sess)
}

// CancelOpenForAppointment cancels the open session linked to an appointment,
// if any. Called by the appointment lifecycle on cancellation.
func (s *Service) CancelOpenForAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	sess, err := s.repo.GetByAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	if sess == nil || !sess.Status.IsOpen() {
		return nil
	}
	return s.close(ctx, sess)
}

func (s *Service) close(ctx context.Context, sess *Session) error {
	sess.Status = StatusCancelled
	ended := s.now().UTC()
	sess.EndedAt = &ended
	return s.repo.Update(ctx, sess)
}
