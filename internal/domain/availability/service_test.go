package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/icompcare/icompcare/internal/platform/apperror"
	"github.com/icompcare/icompcare/internal/platform/interval"
)

type mockRepo struct {
	windows map[uuid.UUID]*Availability
}

func newMockRepo() *mockRepo {
	return &mockRepo{windows: make(map[uuid.UUID]*Availability)}
}

func (m *mockRepo) Create(_ context.Context, a *Availability) error {
	a.ID = uuid.New()
	cp := *a
	m.windows[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Availability, error) {
	a, ok := m.windows[id]
	if !ok {
		return nil, apperror.NotFound("availability.not_found", "availability not found")
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, a *Availability) error {
	cp := *a
	m.windows[a.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if a, ok := m.windows[id]; ok {
		a.Status = StatusInactive
	}
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Availability, int, error) {
	var out []*Availability
	for _, a := range m.windows {
		cp := *a
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByProfessional(_ context.Context, professionalID uuid.UUID, limit, offset int) ([]*Availability, int, error) {
	var out []*Availability
	for _, a := range m.windows {
		if a.ProfessionalID == professionalID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListActiveEndingAfter(_ context.Context, professionalID uuid.UUID, after time.Time) ([]*Availability, error) {
	var out []*Availability
	for _, a := range m.windows {
		if a.ProfessionalID == professionalID && a.Status == StatusActive && a.EndTime.After(after) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) HasOverlap(_ context.Context, professionalID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	for _, a := range m.windows {
		if a.ProfessionalID != professionalID || a.Status != StatusActive {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if interval.Overlaps(a.StartTime, a.EndTime, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) HasCoverage(_ context.Context, professionalID uuid.UUID, start, end time.Time) (bool, error) {
	for _, a := range m.windows {
		if a.ProfessionalID != professionalID || a.Status != StatusActive {
			continue
		}
		if !a.StartTime.After(start) && !a.EndTime.Before(end) {
			return true, nil
		}
	}
	return false, nil
}

type mockDirectory struct {
	professionals map[uuid.UUID]bool
}

func (m *mockDirectory) EnsureProfessional(_ context.Context, id uuid.UUID) error {
	if !m.professionals[id] {
		return apperror.NotFound("user.professional_not_found", "professional not found")
	}
	return nil
}

type mockBusy struct {
	spans []interval.Span
}

func (m *mockBusy) BusyIntervals(_ context.Context, _ uuid.UUID) ([]interval.Span, error) {
	return m.spans, nil
}

func day(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC)
}

func newTestService(repo *mockRepo, profID uuid.UUID, busy *mockBusy) *Service {
	dir := &mockDirectory{professionals: map[uuid.UUID]bool{profID: true}}
	svc := NewService(repo, dir, busy, time.UTC)
	svc.now = func() time.Time { return day(0, 0) }
	return svc
}

func TestCreate_RejectsInvalidRange(t *testing.T) {
	profID := uuid.New()
	svc := newTestService(newMockRepo(), profID, &mockBusy{})

	a := &Availability{ProfessionalID: profID, StartTime: day(10, 0), EndTime: day(9, 0)}
	err := svc.Create(context.Background(), a)
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	a = &Availability{ProfessionalID: profID, StartTime: day(10, 0), EndTime: day(10, 0)}
	if err := svc.Create(context.Background(), a); err == nil {
		t.Error("expected error for zero-length window")
	}
}

func TestCreate_RejectsUnknownProfessional(t *testing.T) {
	svc := newTestService(newMockRepo(), uuid.New(), &mockBusy{})

	a := &Availability{ProfessionalID: uuid.New(), StartTime: day(9, 0), EndTime: day(12, 0)}
	err := svc.Create(context.Background(), a)
	if apperror.KindOf(err) != apperror.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreate_RejectsOverlap(t *testing.T) {
	profID := uuid.New()
	repo := newMockRepo()
	svc := newTestService(repo, profID, &mockBusy{})

	first := &Availability{ProfessionalID: profID, StartTime: day(9, 0), EndTime: day(12, 0)}
	if err := svc.Create(context.Background(), first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Status != StatusActive {
		t.Errorf("expected active status, got %s", first.Status)
	}

	second := &Availability{ProfessionalID: profID, StartTime: day(11, 0), EndTime: day(13, 0)}
	err := svc.Create(context.Background(), second)
	if apperror.KindOf(err) != apperror.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	// Touching windows are fine under half-open semantics.
	adjacent := &Availability{ProfessionalID: profID, StartTime: day(12, 0), EndTime: day(14, 0)}
	if err := svc.Create(context.Background(), adjacent); err != nil {
		t.Errorf("unexpected error for adjacent window: %v", err)
	}
}

func TestUpdate_ExcludesSelfFromOverlapCheck(t *testing.T) {
	profID := uuid.New()
	repo := newMockRepo()
	svc := newTestService(repo, profID, &mockBusy{})

	a := &Availability{ProfessionalID: profID, StartTime: day(9, 0), EndTime: day(12, 0)}
	_ = svc.Create(context.Background(), a)

	// Shrinking the same window overlaps only itself and must succeed.
	upd := &Availability{ID: a.ID, StartTime: day(9, 30), EndTime: day(11, 30)}
	if err := svc.Update(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := svc.Get(context.Background(), a.ID)
	if !got.StartTime.Equal(day(9, 30)) {
		t.Errorf("expected start updated, got %v", got.StartTime)
	}
}

func TestUpdate_RejectsUnknownStatus(t *testing.T) {
	profID := uuid.New()
	repo := newMockRepo()
	svc := newTestService(repo, profID, &mockBusy{})

	a := &Availability{ProfessionalID: profID, StartTime: day(9, 0), EndTime: day(12, 0)}
	_ = svc.Create(context.Background(), a)

	err := svc.Update(context.Background(), &Availability{ID: a.ID, Status: "paused"})
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got, _ := svc.Get(context.Background(), a.ID); got.Status != StatusActive {
		t.Errorf("expected status unchanged, got %s", got.Status)
	}

	// Case variants of known statuses are fine.
	if err := svc.Update(context.Background(), &Availability{ID: a.ID, Status: "INACTIVE"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := svc.Get(context.Background(), a.ID); got.Status != StatusInactive {
		t.Errorf("expected inactive, got %s", got.Status)
	}
}

func TestUpdateOwned_ForbiddenForOtherProfessional(t *testing.T) {
	profID := uuid.New()
	repo := newMockRepo()
	svc := newTestService(repo, profID, &mockBusy{})

	a := &Availability{ProfessionalID: profID, StartTime: day(9, 0), EndTime: day(12, 0)}
	_ = svc.Create(context.Background(), a)

	other := uuid.New()
	err := svc.UpdateOwned(context.Background(), &Availability{ID: a.ID, StartTime: day(10, 0)}, other)
	if apperror.KindOf(err) != apperror.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	err = svc.DeleteOwned(context.Background(), a.ID, other)
	if apperror.KindOf(err) != apperror.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if err := svc.DeleteOwned(context.Background(), a.ID, profID); err != nil {
		t.Errorf("unexpected error for owner delete: %v", err)
	}
	if repo.windows[a.ID].Status != StatusInactive {
		t.Error("expected soft delete to mark window inactive")
	}
}

func TestGetProfessionalAgenda_SubtractsBookings(t *testing.T) {
	profID := uuid.New()
	repo := newMockRepo()
	busy := &mockBusy{spans: []interval.Span{{Start: day(10, 0), End: day(10, 30)}}}
	svc := newTestService(repo, profID, busy)

	_ = svc.Create(context.Background(), &Availability{
		ProfessionalID: profID, StartTime: day(9, 0), EndTime: day(12, 0),
	})

	days, err := svc.GetProfessionalAgenda(context.Background(), profID, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(days))
	}
	if days[0].Date != "2025-03-10" {
		t.Errorf("unexpected date: %s", days[0].Date)
	}
	if days[0].DayOfWeek != "Monday" {
		t.Errorf("unexpected weekday: %s", days[0].DayOfWeek)
	}
	free := days[0].Free
	if len(free) != 2 {
		t.Fatalf("expected 2 free ranges, got %d: %v", len(free), free)
	}
	if !free[0].Start.Equal(day(9, 0)) || !free[0].End.Equal(day(10, 0)) {
		t.Errorf("unexpected first range: %v", free[0])
	}
	if !free[1].Start.Equal(day(10, 30)) || !free[1].End.Equal(day(12, 0)) {
		t.Errorf("unexpected second range: %v", free[1])
	}
}

func TestGetProfessionalAgenda_SkipsFullyBookedDays(t *testing.T) {
	profID := uuid.New()
	repo := newMockRepo()
	busy := &mockBusy{spans: []interval.Span{{Start: day(9, 0), End: day(12, 0)}}}
	svc := newTestService(repo, profID, busy)

	_ = svc.Create(context.Background(), &Availability{
		ProfessionalID: profID, StartTime: day(9, 0), EndTime: day(12, 0),
	})
	_ = svc.Create(context.Background(), &Availability{
		ProfessionalID: profID,
		StartTime:      day(9, 0).AddDate(0, 0, 1),
		EndTime:        day(11, 0).AddDate(0, 0, 1),
	})

	days, err := svc.GetProfessionalAgenda(context.Background(), profID, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("expected fully booked day to be skipped, got %d days", len(days))
	}
	if days[0].Date != "2025-03-11" {
		t.Errorf("unexpected date: %s", days[0].Date)
	}
}

func TestGetProfessionalAgenda_IgnoresPastAndInactiveWindows(t *testing.T) {
	profID := uuid.New()
	repo := newMockRepo()
	svc := newTestService(repo, profID, &mockBusy{})

	past := &Availability{
		ProfessionalID: profID,
		StartTime:      day(9, 0).AddDate(0, 0, -7),
		EndTime:        day(12, 0).AddDate(0, 0, -7),
	}
	_ = svc.Create(context.Background(), past)

	inactive := &Availability{ProfessionalID: profID, StartTime: day(13, 0), EndTime: day(15, 0)}
	_ = svc.Create(context.Background(), inactive)
	_ = svc.Delete(context.Background(), inactive.ID)

	days, err := svc.GetProfessionalAgenda(context.Background(), profID, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(days) != 0 {
		t.Errorf("expected no agenda days, got %v", days)
	}
}

func TestGetProfessionalAgenda_GroupsDaysInConfiguredTimezone(t *testing.T) {
	profID := uuid.New()
	repo := newMockRepo()
	dir := &mockDirectory{professionals: map[uuid.UUID]bool{profID: true}}
	loc := time.FixedZone("UTC-4", -4*60*60)
	svc := NewService(repo, dir, &mockBusy{}, loc)
	svc.now = func() time.Time { return day(0, 0) }

	// 02:00 UTC on March 11 is still March 10 at UTC-4.
	_ = svc.Create(context.Background(), &Availability{
		ProfessionalID: profID,
		StartTime:      time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2025, 3, 11, 3, 0, 0, 0, time.UTC),
	})

	days, err := svc.GetProfessionalAgenda(context.Background(), profID, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(days) != 1 || days[0].Date != "2025-03-10" {
		t.Fatalf("expected window grouped under 2025-03-10, got %v", days)
	}
}

func TestGetProfessionalAgenda_RestrictsToRange(t *testing.T) {
	profID := uuid.New()
	repo := newMockRepo()
	svc := newTestService(repo, profID, &mockBusy{})

	_ = svc.Create(context.Background(), &Availability{
		ProfessionalID: profID, StartTime: day(9, 0), EndTime: day(12, 0),
	})

	from := day(10, 0)
	to := day(11, 0)
	days, err := svc.GetProfessionalAgenda(context.Background(), profID, &from, &to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(days) != 1 || len(days[0].Free) != 1 {
		t.Fatalf("expected one clipped range, got %v", days)
	}
	if !days[0].Free[0].Start.Equal(day(10, 0)) || !days[0].Free[0].End.Equal(day(11, 0)) {
		t.Errorf("unexpected range: %v", days[0].Free[0])
	}

	bad := day(11, 0)
	badTo := day(10, 0)
	if _, err := svc.GetProfessionalAgenda(context.Background(), profID, &bad, &badTo); apperror.KindOf(err) != apperror.KindValidation {
		t.Errorf("expected validation error for inverted range, got %v", err)
	}
}
