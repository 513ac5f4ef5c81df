// Package interval provides half-open time interval arithmetic for schedule
// computations. All intervals are interpreted as [start, end): the start
// instant is included, the end instant is not, so back-to-back bookings that
// share a boundary do not conflict.
package interval

import (
	"sort"
	"time"
)

// DefaultAppointmentDuration is the assumed length of an appointment that has
// no explicit end time and no session type attached.
const DefaultAppointmentDuration = 30 * time.Minute

// Span is a half-open time interval [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

// IsEmpty reports whether the span contains no instants. Inverted spans
// (End before Start) are treated as empty.
func (s Span) IsEmpty() bool {
	return !s.Start.Before(s.End)
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share any instant. Empty or inverted intervals overlap
// nothing, and touching endpoints do not count as overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// EffectiveEnd resolves the end of an interval that may be open-ended: the
// explicit end when present, otherwise start plus the fallback duration.
func EffectiveEnd(start time.Time, end *time.Time, fallback time.Duration) time.Time {
	if end != nil {
		return *end
	}
	return start.Add(fallback)
}

// Subtract removes every busy span from the window and returns the remaining
// free spans, ordered by start and pairwise disjoint. Busy spans may be given
// in any order and may overlap each other or extend beyond the window; empty
// busy spans are ignored. An empty window yields no spans.
func Subtract(window Span, busy []Span) []Span {
	if window.IsEmpty() {
		return nil
	}

	sorted := make([]Span, 0, len(busy))
	for _, b := range busy {
		if !b.IsEmpty() {
			sorted = append(sorted, b)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	free := []Span{window}
	for _, b := range sorted {
		if len(free) == 0 {
			break
		}

		next := make([]Span, 0, len(free)+1)
		for _, f := range free {
			if !Overlaps(f.Start, f.End, b.Start, b.End) {
				next = append(next, f)
				continue
			}
			if b.Start.After(f.Start) {
				next = append(next, Span{Start: f.Start, End: b.Start})
			}
			if b.End.Before(f.End) {
				next = append(next, Span{Start: b.End, End: f.End})
			}
		}
		free = next
	}

	return free
}
