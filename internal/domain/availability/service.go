package availability

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/icompcare/icompcare/internal/platform/apperror"
	"github.com/icompcare/icompcare/internal/platform/interval"
)

// Directory resolves professionals. Implemented by the identity service.
type Directory interface {
	EnsureProfessional(ctx context.Context, id uuid.UUID) error
}

// BusySource lists the committed busy spans of a professional's calendar.
// Implemented by the appointment service.
type BusySource interface {
	BusyIntervals(ctx context.Context, professionalID uuid.UUID) ([]interval.Span, error)
}

type Service struct {
	repo      Repository
	directory Directory
	busy      BusySource
	loc       *time.Location
	now       func() time.Time
}

// NewService creates the availability service. loc controls how free/busy
// results are grouped into calendar days.
func NewService(repo Repository, directory Directory, busy BusySource, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:      repo,
		directory: directory,
		busy:      busy,
		loc:       loc,
		now:       time.Now,
	}
}

func (s *Service) validateWindow(a *Availability) error {
	if a.ProfessionalID == uuid.Nil {
		return apperror.Validation("availability.professional_required", "professional_id is required")
	}
	if a.StartTime.IsZero() || a.EndTime.IsZero() {
		return apperror.Validation("availability.invalid_time_range", "start_time and end_time are required")
	}
	if !a.EndTime.After(a.StartTime) {
		return apperror.Validation("availability.invalid_time_range", "end_time must be after start_time")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, a *Availability) error {
	if err := s.validateWindow(a); err != nil {
		return err
	}
	if err := s.directory.EnsureProfessional(ctx, a.ProfessionalID); err != nil {
		return err
	}

	overlap, err := s.repo.HasOverlap(ctx, a.ProfessionalID, a.StartTime, a.EndTime, nil)
	if err != nil {
		return err
	}
	if overlap {
		return apperror.Conflict("availability.overlap", "availability overlaps an existing window")
	}

	a.Status = StatusActive
	return s.repo.Create(ctx, a)
}

// CreateOwned creates a window on behalf of the acting professional,
// regardless of the professional id in the payload.
func (s *Service) CreateOwned(ctx context.Context, a *Availability, ownerID uuid.UUID) error {
	a.ProfessionalID = ownerID
	return s.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Availability, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, a *Availability) error {
	existing, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	return s.applyUpdate(ctx, existing, a)
}

// UpdateOwned updates a window only when it belongs to the acting
// professional.
func (s *Service) UpdateOwned(ctx context.Context, a *Availability, ownerID uuid.UUID) error {
	existing, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if existing.ProfessionalID != ownerID {
		return apperror.Forbidden("availability.not_owner", "availability belongs to another professional")
	}
	return s.applyUpdate(ctx, existing, a)
}

func (s *Service) applyUpdate(ctx context.Context, existing, a *Availability) error {
	if a.StartTime.IsZero() {
		a.StartTime = existing.StartTime
	}
	if a.EndTime.IsZero() {
		a.EndTime = existing.EndTime
	}
	if a.Status == "" {
		a.Status = existing.Status
	} else {
		st, err := ParseStatus(a.Status)
		if err != nil {
			return err
		}
		a.Status = st
	}
	a.ProfessionalID = existing.ProfessionalID

	if err := s.validateWindow(a); err != nil {
		return err
	}

	overlap, err := s.repo.HasOverlap(ctx, a.ProfessionalID, a.StartTime, a.EndTime, &a.ID)
	if err != nil {
		return err
	}
	if overlap {
		return apperror.Conflict("availability.overlap", "availability overlaps an existing window")
	}

	return s.repo.Update(ctx, a)
}

// Delete marks a window inactive. The row stays for audit history.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// DeleteOwned deletes a window only when it belongs to the acting
// professional.
func (s *Service) DeleteOwned(ctx context.Context, id, ownerID uuid.UUID) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.ProfessionalID != ownerID {
		return apperror.Forbidden("availability.not_owner", "availability belongs to another professional")
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Availability, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByProfessional(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]*Availability, int, error) {
	return s.repo.ListByProfessional(ctx, professionalID, limit, offset)
}

// GetProfessionalAgenda computes the free portions of a professional's
// upcoming availability windows, optionally restricted to [from, to). Booked
// appointments are subtracted from each window and the remaining fragments
// are grouped by calendar day in the service's configured timezone. Days
// with no free time are omitted.
func (s *Service) GetProfessionalAgenda(ctx context.Context, professionalID uuid.UUID, from, to *time.Time) ([]DaySchedule, error) {
	if err := s.directory.EnsureProfessional(ctx, professionalID); err != nil {
		return nil, err
	}
	if from != nil && to != nil && !to.After(*from) {
		return nil, apperror.Validation("availability.invalid_time_range", "to must be after from")
	}

	after := s.now().UTC()
	if from != nil && from.After(after) {
		after = from.UTC()
	}
	windows, err := s.repo.ListActiveEndingAfter(ctx, professionalID, after)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return []DaySchedule{}, nil
	}

	busy, err := s.busy.BusyIntervals(ctx, professionalID)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string][]TimeRange)
	weekdays := make(map[string]string)
	for _, w := range windows {
		span := interval.Span{Start: w.StartTime, End: w.EndTime}
		if from != nil && span.Start.Before(*from) {
			span.Start = *from
		}
		if to != nil && span.End.After(*to) {
			span.End = *to
		}
		if span.IsEmpty() {
			continue
		}
		free := interval.Subtract(span, busy)
		for _, f := range free {
			local := f.Start.In(s.loc)
			day := local.Format("2006-01-02")
			weekdays[day] = local.Weekday().String()
			byDay[day] = append(byDay[day], TimeRange{Start: f.Start, End: f.End})
		}
	}

	days := make([]DaySchedule, 0, len(byDay))
	for day, ranges := range byDay {
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start.Before(ranges[j].Start) })
		days = append(days, DaySchedule{Date: day, DayOfWeek: weekdays[day], Free: ranges})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })

	return days, nil
}
