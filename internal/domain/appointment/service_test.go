package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/icompcare/icompcare/internal/platform/apperror"
	"github.com/icompcare/icompcare/internal/platform/interval"
)

type mockRepo struct {
	appts map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, apperror.NotFound("appointment.not_found", "appointment not found")
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.appts {
		cp := *a
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByProfessional(_ context.Context, professionalID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.appts {
		if a.ProfessionalID == professionalID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByStudent(_ context.Context, studentID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.appts {
		if a.StudentID != nil && *a.StudentID == studentID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListActiveByProfessional(_ context.Context, professionalID uuid.UUID) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.appts {
		if a.ProfessionalID == professionalID && a.Status != StatusCancelled {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) HasOverlap(_ context.Context, professionalID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	for _, a := range m.appts {
		if a.ProfessionalID != professionalID || a.Status == StatusCancelled {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if interval.Overlaps(a.StartTime, a.EffectiveEnd(), start, end) {
			return true, nil
		}
	}
	return false, nil
}

type mockDirectory struct {
	professionals map[uuid.UUID]Contact
	students      map[uuid.UUID]Contact
}

func (m *mockDirectory) Professional(_ context.Context, id uuid.UUID) (Contact, error) {
	c, ok := m.professionals[id]
	if !ok {
		return Contact{}, apperror.NotFound("user.professional_not_found", "professional not found")
	}
	return c, nil
}

func (m *mockDirectory) Student(_ context.Context, id uuid.UUID) (Contact, error) {
	c, ok := m.students[id]
	if !ok {
		return Contact{}, apperror.NotFound("user.student_not_found", "student not found")
	}
	return c, nil
}

type mockTypes struct {
	durations map[uuid.UUID]time.Duration
}

func (m *mockTypes) Duration(_ context.Context, id uuid.UUID) (time.Duration, error) {
	d, ok := m.durations[id]
	if !ok {
		return 0, apperror.NotFound("session_type.not_found", "session type not found")
	}
	return d, nil
}

type mockCoverage struct {
	covered bool
}

func (m *mockCoverage) HasCoverage(_ context.Context, _ uuid.UUID, _, _ time.Time) (bool, error) {
	return m.covered, nil
}

type sentMail struct {
	kind string
	to   string
}

type mockNotifier struct {
	sent []sentMail
}

func (m *mockNotifier) AppointmentRequested(_ context.Context, to, _ string, _ time.Time, _ *time.Time) {
	m.sent = append(m.sent, sentMail{kind: "requested", to: to})
}

func (m *mockNotifier) AppointmentConfirmed(_ context.Context, to, _ string, _ time.Time, _ *time.Time) {
	m.sent = append(m.sent, sentMail{kind: "confirmed", to: to})
}

func (m *mockNotifier) AppointmentCancelled(_ context.Context, to, _ string, _ time.Time, _ *time.Time) {
	m.sent = append(m.sent, sentMail{kind: "cancelled", to: to})
}

func (m *mockNotifier) AppointmentRescheduled(_ context.Context, to, _ string, _, _ time.Time, _ *time.Time) {
	m.sent = append(m.sent, sentMail{kind: "rescheduled", to: to})
}

type mockSessions struct {
	cancelled []uuid.UUID
}

func (m *mockSessions) CancelOpenForAppointment(_ context.Context, appointmentID uuid.UUID) error {
	m.cancelled = append(m.cancelled, appointmentID)
	return nil
}

type fixture struct {
	repo     *mockRepo
	svc      *Service
	notifier *mockNotifier
	coverage *mockCoverage
	sessions *mockSessions

	profID    uuid.UUID
	studentID uuid.UUID
	typeID    uuid.UUID
	admin     Actor
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMockRepo(),
		notifier: &mockNotifier{},
		coverage: &mockCoverage{covered: true},
		sessions: &mockSessions{},

		profID:    uuid.New(),
		studentID: uuid.New(),
		typeID:    uuid.New(),
	}
	f.admin = Actor{ID: uuid.New(), Roles: []string{"admin"}}

	dir := &mockDirectory{
		professionals: map[uuid.UUID]Contact{
			f.profID: {ID: f.profID, Name: "Dr. Souza", Email: "souza@clinic.test"},
		},
		students: map[uuid.UUID]Contact{
			f.studentID: {ID: f.studentID, Name: "Ana", Email: "ana@school.test"},
		},
	}
	types := &mockTypes{durations: map[uuid.UUID]time.Duration{f.typeID: 50 * time.Minute}}

	f.svc = NewService(f.repo, dir, types, f.coverage, nil)
	f.svc.SetNotifier(f.notifier)
	f.svc.SetSessionCloser(f.sessions)
	return f
}

func at(hour, min int) time.Time {
	return time.Date(2025, 4, 7, hour, min, 0, 0, time.UTC)
}

func (f *fixture) book(t *testing.T, start time.Time, end *time.Time) *Appointment {
	t.Helper()
	a := &Appointment{
		ProfessionalID: f.profID,
		StudentID:      &f.studentID,
		StartTime:      start,
		EndTime:        end,
	}
	if err := f.svc.Create(context.Background(), a); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	return a
}

func (f *fixture) lastMail() sentMail {
	if len(f.notifier.sent) == 0 {
		return sentMail{}
	}
	return f.notifier.sent[len(f.notifier.sent)-1]
}

func TestCreate_StartsPendingAndNotifiesStudent(t *testing.T) {
	f := newFixture()

	end := at(10, 0)
	a := f.book(t, at(9, 0), &end)

	if a.Status != StatusPending {
		t.Errorf("expected pending, got %s", a.Status)
	}
	if m := f.lastMail(); m.kind != "requested" || m.to != "ana@school.test" {
		t.Errorf("expected requested mail to student, got %+v", m)
	}
}

func TestCreate_InlineContactReceivesRequestMail(t *testing.T) {
	f := newFixture()

	email := "walkin@school.test"
	name := "Bruno"
	reg := "2025-0042"
	a := &Appointment{
		ProfessionalID:      f.profID,
		StudentEmail:        &email,
		StudentFullName:     &name,
		StudentRegistration: &reg,
		StartTime:           at(9, 0),
	}
	if err := f.svc.Create(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m := f.lastMail(); m.kind != "requested" || m.to != "walkin@school.test" {
		t.Errorf("expected requested mail to inline contact, got %+v", m)
	}
}

func TestCreate_SessionTypeComputesEnd(t *testing.T) {
	f := newFixture()

	a := &Appointment{
		ProfessionalID: f.profID,
		SessionTypeID:  &f.typeID,
		StartTime:      at(9, 0),
	}
	if err := f.svc.Create(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.EndTime == nil || !a.EndTime.Equal(at(9, 50)) {
		t.Errorf("expected end at 09:50, got %v", a.EndTime)
	}
}

func TestCreate_RejectsInvalidRange(t *testing.T) {
	f := newFixture()

	end := at(9, 0)
	a := &Appointment{ProfessionalID: f.profID, StartTime: at(10, 0), EndTime: &end}
	err := f.svc.Create(context.Background(), a)
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreate_RejectsUnknownProfessional(t *testing.T) {
	f := newFixture()

	a := &Appointment{ProfessionalID: uuid.New(), StartTime: at(9, 0)}
	err := f.svc.Create(context.Background(), a)
	if apperror.KindOf(err) != apperror.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreate_RejectsOverlap(t *testing.T) {
	f := newFixture()

	end := at(10, 0)
	f.book(t, at(9, 0), &end)

	second := &Appointment{ProfessionalID: f.profID, StartTime: at(9, 30)}
	err := f.svc.Create(context.Background(), second)
	if apperror.KindOf(err) != apperror.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	// Back-to-back bookings are fine under half-open semantics.
	adjacent := &Appointment{ProfessionalID: f.profID, StartTime: at(10, 0)}
	if err := f.svc.Create(context.Background(), adjacent); err != nil {
		t.Errorf("unexpected error for adjacent booking: %v", err)
	}
}

func TestCreate_OpenEndedOccupiesDefaultDuration(t *testing.T) {
	f := newFixture()

	f.book(t, at(9, 0), nil)

	// 09:15 falls inside the default 30 minute block.
	inside := &Appointment{ProfessionalID: f.profID, StartTime: at(9, 15)}
	err := f.svc.Create(context.Background(), inside)
	if apperror.KindOf(err) != apperror.KindConflict {
		t.Fatalf("expected conflict inside default block, got %v", err)
	}

	after := &Appointment{ProfessionalID: f.profID, StartTime: at(9, 30)}
	if err := f.svc.Create(context.Background(), after); err != nil {
		t.Errorf("unexpected error after default block: %v", err)
	}
}

func TestUpdate_MoveStartPreservesDuration(t *testing.T) {
	f := newFixture()

	end := at(10, 0)
	a := f.book(t, at(9, 0), &end)

	newStart := at(14, 0)
	got, err := f.svc.Update(context.Background(), a.ID, UpdateParams{StartTime: &newStart}, f.admin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.StartTime.Equal(at(14, 0)) || got.EndTime == nil || !got.EndTime.Equal(at(15, 0)) {
		t.Errorf("expected 14:00-15:00, got %v-%v", got.StartTime, got.EndTime)
	}
	if m := f.lastMail(); m.kind != "rescheduled" || m.to != "ana@school.test" {
		t.Errorf("expected rescheduled mail to student, got %+v", m)
	}
}

func TestUpdate_MoveIntoBookedSlotRejected(t *testing.T) {
	f := newFixture()

	end1 := at(10, 0)
	f.book(t, at(9, 0), &end1)
	end2 := at(12, 0)
	a := f.book(t, at(11, 0), &end2)

	newStart := at(9, 30)
	_, err := f.svc.Update(context.Background(), a.ID, UpdateParams{StartTime: &newStart}, f.admin)
	if apperror.KindOf(err) != apperror.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	// Moving within its own slot only collides with itself.
	shifted := at(11, 15)
	if _, err := f.svc.Update(context.Background(), a.ID, UpdateParams{StartTime: &shifted}, f.admin); err != nil {
		t.Errorf("unexpected error for self-overlapping move: %v", err)
	}
}

func TestUpdate_ConfirmRequiresCoverage(t *testing.T) {
	f := newFixture()
	f.coverage.covered = false

	end := at(10, 0)
	a := f.book(t, at(9, 0), &end)

	status := "confirmed"
	_, err := f.svc.Update(context.Background(), a.ID, UpdateParams{Status: &status}, f.admin)
	var appErr *apperror.Error
	if !errors.As(err, &appErr) || appErr.Code != "appointment.no_availability" {
		t.Fatalf("expected no_availability, got %v", err)
	}

	f.coverage.covered = true
	got, err := f.svc.Update(context.Background(), a.ID, UpdateParams{Status: &status}, f.admin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", got.Status)
	}
	if m := f.lastMail(); m.kind != "confirmed" || m.to != "ana@school.test" {
		t.Errorf("expected confirmed mail to student, got %+v", m)
	}
}

func TestUpdate_RejectsUnknownStatus(t *testing.T) {
	f := newFixture()

	a := f.book(t, at(9, 0), nil)

	status := "approved"
	_, err := f.svc.Update(context.Background(), a.ID, UpdateParams{Status: &status}, f.admin)
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdate_AcceptsStatusSpellingVariants(t *testing.T) {
	f := newFixture()

	a := f.book(t, at(9, 0), nil)

	status := "In_Session"
	got, err := f.svc.Update(context.Background(), a.ID, UpdateParams{Status: &status}, f.admin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusInSession {
		t.Errorf("expected in-session, got %s", got.Status)
	}
}

func TestUpdate_StudentCannotTouchOthersAppointment(t *testing.T) {
	f := newFixture()

	a := f.book(t, at(9, 0), nil)

	other := Actor{ID: uuid.New(), Roles: []string{"student"}}
	notes := "mine now"
	_, err := f.svc.Update(context.Background(), a.ID, UpdateParams{Notes: &notes}, other)
	if apperror.KindOf(err) != apperror.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	owner := Actor{ID: f.studentID, Roles: []string{"student"}}
	if _, err := f.svc.Update(context.Background(), a.ID, UpdateParams{Notes: &notes}, owner); err != nil {
		t.Errorf("unexpected error for owning student: %v", err)
	}
}

func TestUpdate_TerminalStatusIsFrozen(t *testing.T) {
	f := newFixture()

	a := f.book(t, at(9, 0), nil)
	if err := f.svc.SetStatus(context.Background(), a.ID, StatusCompleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status := "pending"
	_, err := f.svc.Update(context.Background(), a.ID, UpdateParams{Status: &status}, f.admin)
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdate_CancelStatusClosesSessions(t *testing.T) {
	f := newFixture()

	a := f.book(t, at(9, 0), nil)

	status := "cancelled"
	got, err := f.svc.Update(context.Background(), a.ID, UpdateParams{Status: &status}, f.admin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if len(f.sessions.cancelled) != 1 || f.sessions.cancelled[0] != a.ID {
		t.Errorf("expected open session cancelled for %s, got %v", a.ID, f.sessions.cancelled)
	}
	if m := f.lastMail(); m.kind != "cancelled" || m.to != "ana@school.test" {
		t.Errorf("expected cancelled mail to student, got %+v", m)
	}
}

func TestCancel_IsIdempotentAndClosesSessions(t *testing.T) {
	f := newFixture()

	a := f.book(t, at(9, 0), nil)

	if err := f.svc.Cancel(context.Background(), a.ID, f.admin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := f.svc.Get(context.Background(), a.ID)
	if got.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if len(f.sessions.cancelled) != 1 || f.sessions.cancelled[0] != a.ID {
		t.Errorf("expected open session cancelled for %s, got %v", a.ID, f.sessions.cancelled)
	}
	if m := f.lastMail(); m.kind != "cancelled" || m.to != "ana@school.test" {
		t.Errorf("expected cancelled mail to student, got %+v", m)
	}

	mails := len(f.notifier.sent)
	if err := f.svc.Cancel(context.Background(), a.ID, f.admin); err != nil {
		t.Fatalf("expected idempotent cancel, got %v", err)
	}
	if len(f.sessions.cancelled) != 1 || len(f.notifier.sent) != mails {
		t.Error("second cancel must not re-trigger side effects")
	}
}

func TestCancel_CompletedAppointmentRejected(t *testing.T) {
	f := newFixture()

	a := f.book(t, at(9, 0), nil)
	_ = f.svc.SetStatus(context.Background(), a.ID, StatusCompleted)

	err := f.svc.Cancel(context.Background(), a.ID, f.admin)
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBusyIntervals_SkipsCancelled(t *testing.T) {
	f := newFixture()

	end := at(10, 0)
	f.book(t, at(9, 0), &end)
	cancelled := f.book(t, at(11, 0), nil)
	_ = f.svc.Cancel(context.Background(), cancelled.ID, f.admin)

	spans, err := f.svc.BusyIntervals(context.Background(), f.profID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spans) != 1 {
		t.Fatalf("expected 1 busy span, got %d", len(spans))
	}
	if !spans[0].Start.Equal(at(9, 0)) || !spans[0].End.Equal(at(10, 0)) {
		t.Errorf("unexpected span: %v", spans[0])
	}
}
