package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/icompcare/icompcare/internal/platform/apperror"
	"github.com/icompcare/icompcare/internal/platform/auth"
	"github.com/icompcare/icompcare/internal/platform/interval"
)

// Contact is the slice of a user the appointment lifecycle needs.
type Contact struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// Directory resolves scheduling participants. Implemented by the identity
// service.
type Directory interface {
	Professional(ctx context.Context, id uuid.UUID) (Contact, error)
	Student(ctx context.Context, id uuid.UUID) (Contact, error)
}

// SessionTypes resolves the duration of a session type.
type SessionTypes interface {
	Duration(ctx context.Context, id uuid.UUID) (time.Duration, error)
}

// CoverageChecker reports whether an active availability window fully covers
// a span. Implemented by the availability repository.
type CoverageChecker interface {
	HasCoverage(ctx context.Context, professionalID uuid.UUID, start, end time.Time) (bool, error)
}

// Notifier delivers appointment lifecycle emails. Delivery is best-effort;
// implementations must not block scheduling on provider failures.
type Notifier interface {
	AppointmentRequested(ctx context.Context, to, professionalName string, start time.Time, end *time.Time)
	AppointmentConfirmed(ctx context.Context, to, professionalName string, start time.Time, end *time.Time)
	AppointmentCancelled(ctx context.Context, to, professionalName string, start time.Time, end *time.Time)
	AppointmentRescheduled(ctx context.Context, to, professionalName string, oldStart, start time.Time, end *time.Time)
}

// SessionCloser cancels any open session linked to an appointment.
// Implemented by the session service.
type SessionCloser interface {
	CancelOpenForAppointment(ctx context.Context, appointmentID uuid.UUID) error
}

// TxRunner executes fn atomically. Overlap checks and the writes that depend
// on them run inside it so concurrent bookings cannot interleave.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	ID    uuid.UUID
	Roles []string
}

type Service struct {
	repo      Repository
	directory Directory
	types     SessionTypes
	coverage  CoverageChecker
	notifier  Notifier
	sessions  SessionCloser
	tx        TxRunner
}

func NewService(repo Repository, directory Directory, types SessionTypes, coverage CoverageChecker, tx TxRunner) *Service {
	if tx == nil {
		tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Service{
		repo:      repo,
		directory: directory,
		types:     types,
		coverage:  coverage,
		tx:        tx,
	}
}

// SetNotifier attaches an optional lifecycle notifier.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetSessionCloser attaches the session lifecycle hook used on cancellation.
func (s *Service) SetSessionCloser(sc SessionCloser) {
	s.sessions = sc
}

// Create requests a new appointment. It starts pending and must not overlap
// any non-cancelled appointment of the professional.
func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if a.ProfessionalID == uuid.Nil {
		return apperror.Validation("appointment.professional_required", "professional_id is required")
	}
	if a.StartTime.IsZero() {
		return apperror.Validation("appointment.invalid_time_range", "start_time is required")
	}

	prof, err := s.directory.Professional(ctx, a.ProfessionalID)
	if err != nil {
		return err
	}
	if a.StudentID != nil {
		if _, err := s.directory.Student(ctx, *a.StudentID); err != nil {
			return err
		}
	}
	if a.SessionTypeID != nil {
		d, err := s.types.Duration(ctx, *a.SessionTypeID)
		if err != nil {
			return err
		}
		end := a.StartTime.Add(d)
		a.EndTime = &end
	}
	if a.EndTime != nil && !a.EndTime.After(a.StartTime) {
		return apperror.Validation("appointment.invalid_time_range", "end_time must be after start_time")
	}

	a.Status = StatusPending

	err = s.tx(ctx, func(ctx context.Context) error {
		overlap, err := s.repo.HasOverlap(ctx, a.ProfessionalID, a.StartTime, a.EffectiveEnd(), nil)
		if err != nil {
			return err
		}
		if overlap {
			return apperror.Conflict("appointment.overlap", "appointment overlaps an existing booking")
		}
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		if to, _, ok := s.studentRecipient(ctx, a); ok {
			s.notifier.AppointmentRequested(ctx, to, prof.Name, a.StartTime, a.EndTime)
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByProfessional(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByProfessional(ctx, professionalID, limit, offset)
}

func (s *Service) ListByStudent(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByStudent(ctx, studentID, limit, offset)
}

// UpdateParams carries the fields an update may change. Nil fields are left
// untouched.
type UpdateParams struct {
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	SessionTypeID *uuid.UUID `json:"session_type_id"`
	StudentID     *uuid.UUID `json:"student_id"`
	Status        *string    `json:"status"`
	Notes         *string    `json:"notes"`
}

func ensureCanModify(a *Appointment, actor Actor) error {
	if auth.IsAdmin(actor.Roles) || !auth.HasRole(actor.Roles, "student") {
		return nil
	}
	if a.StudentID == nil || *a.StudentID != actor.ID {
		return apperror.Forbidden("appointment.not_owner", "appointment belongs to another student")
	}
	return nil
}

// Update applies a partial update. Moving the start preserves the existing
// duration. Attaching a session type recomputes the end from its duration.
// A transition to confirmed additionally requires a covering active
// availability window and re-checks overlap.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p UpdateParams, actor Actor) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ensureCanModify(a, actor); err != nil {
		return nil, err
	}

	prev := *a
	timeChanged := false

	if p.StudentID != nil {
		if _, err := s.directory.Student(ctx, *p.StudentID); err != nil {
			return nil, err
		}
		a.StudentID = p.StudentID
	}
	if p.StartTime != nil && !p.StartTime.Equal(a.StartTime) {
		// Moving the start keeps the booked duration.
		if a.EndTime != nil {
			end := p.StartTime.Add(a.EndTime.Sub(a.StartTime))
			a.EndTime = &end
		}
		a.StartTime = *p.StartTime
		timeChanged = true
	}
	if p.SessionTypeID != nil {
		d, err := s.types.Duration(ctx, *p.SessionTypeID)
		if err != nil {
			return nil, err
		}
		a.SessionTypeID = p.SessionTypeID
		end := a.StartTime.Add(d)
		a.EndTime = &end
	}
	if p.EndTime != nil {
		a.EndTime = p.EndTime
		timeChanged = true
	}
	if a.EndTime != nil && !a.EndTime.After(a.StartTime) {
		return nil, apperror.Validation("appointment.invalid_time_range", "end_time must be after start_time")
	}
	if p.Notes != nil {
		a.Notes = p.Notes
	}

	statusChanged := false
	if p.Status != nil {
		newStatus, err := ParseStatus(*p.Status)
		if err != nil {
			return nil, err
		}
		if newStatus != prev.Status {
			if prev.Status.IsTerminal() {
				return nil, apperror.Validation("appointment.invalid_transition",
					"cannot change status of a "+string(prev.Status)+" appointment")
			}
			a.Status = newStatus
			statusChanged = true
		}
	}

	confirming := statusChanged && a.Status == StatusConfirmed

	cancelling := statusChanged && a.Status == StatusCancelled

	err = s.tx(ctx, func(ctx context.Context) error {
		if timeChanged || confirming {
			overlap, err := s.repo.HasOverlap(ctx, a.ProfessionalID, a.StartTime, a.EffectiveEnd(), &a.ID)
			if err != nil {
				return err
			}
			if overlap {
				return apperror.Conflict("appointment.overlap", "appointment overlaps an existing booking")
			}
		}
		if confirming {
			covered, err := s.coverage.HasCoverage(ctx, a.ProfessionalID, a.StartTime, a.EffectiveEnd())
			if err != nil {
				return err
			}
			if !covered {
				return apperror.Validation("appointment.no_availability",
					"no active availability covers the appointment time")
			}
		}
		return s.repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	// Cancelling through a status update closes sessions the same way Cancel
	// does, so the two paths cannot diverge on cleanup.
	if cancelling && s.sessions != nil {
		_ = s.sessions.CancelOpenForAppointment(ctx, a.ID)
	}

	s.notifyUpdate(ctx, &prev, a, timeChanged, statusChanged)
	return a, nil
}

// Cancel soft-deletes an appointment. Cancelling an already cancelled
// appointment is a no-op. Any open session linked to it is cancelled as well.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := ensureCanModify(a, actor); err != nil {
		return err
	}
	if a.Status == StatusCancelled {
		return nil
	}
	if a.Status == StatusCompleted {
		return apperror.Validation("appointment.invalid_transition", "cannot cancel a completed appointment")
	}

	a.Status = StatusCancelled
	if err := s.repo.Update(ctx, a); err != nil {
		return err
	}

	if s.sessions != nil {
		_ = s.sessions.CancelOpenForAppointment(ctx, a.ID)
	}
	s.notifyStatus(ctx, a, StatusCancelled)
	return nil
}

// SetStatus moves an appointment without lifecycle checks. It backs the
// session lifecycle, which owns its own ordering rules.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	a.Status = status
	return s.repo.Update(ctx, a)
}

// BusyIntervals returns the calendar spans occupied by the professional's
// non-cancelled appointments.
func (s *Service) BusyIntervals(ctx context.Context, professionalID uuid.UUID) ([]interval.Span, error) {
	appts, err := s.repo.ListActiveByProfessional(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	spans := make([]interval.Span, 0, len(appts))
	for _, a := range appts {
		spans = append(spans, a.BusySpan())
	}
	return spans, nil
}

func (s *Service) notifyUpdate(ctx context.Context, prev, a *Appointment, timeChanged, statusChanged bool) {
	if s.notifier == nil {
		return
	}
	if statusChanged {
		switch a.Status {
		case StatusConfirmed:
			if to, name, ok := s.studentRecipient(ctx, a); ok {
				s.notifier.AppointmentConfirmed(ctx, to, name, a.StartTime, a.EndTime)
			}
			return
		case StatusCancelled:
			s.notifyStatus(ctx, a, StatusCancelled)
			return
		}
	}
	if timeChanged {
		if to, name, ok := s.studentRecipient(ctx, a); ok {
			s.notifier.AppointmentRescheduled(ctx, to, name, prev.StartTime, a.StartTime, a.EndTime)
		}
	}
}

func (s *Service) notifyStatus(ctx context.Context, a *Appointment, status Status) {
	if s.notifier == nil {
		return
	}
	to, name, ok := s.studentRecipient(ctx, a)
	if !ok {
		return
	}
	if status == StatusCancelled {
		s.notifier.AppointmentCancelled(ctx, to, name, a.StartTime, a.EndTime)
	}
}

// studentRecipient resolves the student's email plus the professional's
// display name for the message body. Bookings without a linked account fall
// back to the inline contact email.
func (s *Service) studentRecipient(ctx context.Context, a *Appointment) (to, professionalName string, ok bool) {
	switch {
	case a.StudentID != nil:
		student, err := s.directory.Student(ctx, *a.StudentID)
		if err != nil {
			return "", "", false
		}
		to = student.Email
	case a.StudentEmail != nil:
		to = *a.StudentEmail
	}
	if to == "" {
		return "", "", false
	}
	prof, err := s.directory.Professional(ctx, a.ProfessionalID)
	if err != nil {
		return to, "", true
	}
	return to, prof.Name, true
}
