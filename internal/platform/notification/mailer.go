package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// AppointmentMailer sends appointment lifecycle emails. Delivery is
// best-effort: failures are logged and never surfaced to the caller, so a
// broken mail provider cannot block scheduling operations.
type AppointmentMailer struct {
	manager *Manager
	loc     *time.Location
	logger  zerolog.Logger
}

// NewAppointmentMailer creates a mailer that renders times in the given
// location.
func NewAppointmentMailer(manager *Manager, loc *time.Location, logger zerolog.Logger) *AppointmentMailer {
	if loc == nil {
		loc = time.UTC
	}
	return &AppointmentMailer{manager: manager, loc: loc, logger: logger}
}

func (m *AppointmentMailer) data(professionalName string, start time.Time, end *time.Time) map[string]string {
	local := start.In(m.loc)
	d := map[string]string{
		"professional_name": professionalName,
		"date":              local.Format("02/01/2006"),
		"start":             local.Format("15:04"),
		"end":               "",
	}
	if end != nil {
		d["end"] = end.In(m.loc).Format("15:04")
	}
	return d
}

func (m *AppointmentMailer) send(ctx context.Context, templateID, to string, data map[string]string) {
	if to == "" {
		return
	}
	if _, err := m.manager.SendFromTemplate(ctx, templateID, data, to); err != nil {
		m.logger.Warn().Err(err).
			Str("template", templateID).
			Str("recipient", to).
			Msg("appointment email delivery failed")
	}
}

func (m *AppointmentMailer) AppointmentRequested(ctx context.Context, to, professionalName string, start time.Time, end *time.Time) {
	m.send(ctx, "appointment-requested", to, m.data(professionalName, start, end))
}

func (m *AppointmentMailer) AppointmentConfirmed(ctx context.Context, to, professionalName string, start time.Time, end *time.Time) {
	m.send(ctx, "appointment-confirmed", to, m.data(professionalName, start, end))
}

func (m *AppointmentMailer) AppointmentCancelled(ctx context.Context, to, professionalName string, start time.Time, end *time.Time) {
	m.send(ctx, "appointment-cancelled", to, m.data(professionalName, start, end))
}

func (m *AppointmentMailer) AppointmentRescheduled(ctx context.Context, to, professionalName string, oldStart, start time.Time, end *time.Time) {
	data := m.data(professionalName, start, end)
	oldLocal := oldStart.In(m.loc)
	data["old_date"] = oldLocal.Format("02/01/2006")
	data["old_start"] = oldLocal.Format("15:04")
	m.send(ctx, "appointment-rescheduled", to, data)
}
