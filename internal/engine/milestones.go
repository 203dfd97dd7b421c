package engine

import (
	"time"

	"dealplan/internal/domain"
)

const dateLayout = "2006-01-02"

var phaseOffsets = map[domain.Phase]int{
	domain.PhasePreClose: -7,
	domain.PhaseDay1:     0,
	domain.PhaseDay30:    30,
	domain.PhaseDay60:    60,
	domain.PhaseDay90:    90,
	domain.PhaseYear1:    365,
}

// PhaseOffset returns the phase's distance in days from the close date.
func PhaseOffset(p domain.Phase) int {
	return phaseOffsets[p]
}

var checkpoints = []struct {
	phase domain.Phase
	label string
}{
	{domain.PhaseDay1, "Day 1 / Close"},
	{domain.PhaseDay30, "Day 30 Checkpoint"},
	{domain.PhaseDay60, "Day 60 Review"},
	{domain.PhaseDay90, "Day 90 SteerCo"},
	{domain.PhaseYear1, "Year 1 Close-Out"},
}

// Milestones derives the fixed checkpoint schedule from the close date.
// An empty close date yields no milestones.
func Milestones(closeDate string) []domain.Milestone {
	out := []domain.Milestone{}
	anchor, ok := parseDate(closeDate)
	if !ok {
		return out
	}
	for _, c := range checkpoints {
		days := PhaseOffset(c.phase)
		out = append(out, domain.Milestone{
			Phase:         c.phase,
			Label:         c.label,
			Date:          formatDate(anchor.AddDate(0, 0, days)),
			DaysFromClose: days,
		})
	}
	return out
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if d, err := time.Parse(dateLayout, s); err == nil {
		return d, true
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		ts = ts.UTC()
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ValidDate reports whether s is empty or a date the engine can anchor on.
func ValidDate(s string) bool {
	if s == "" {
		return true
	}
	_, ok := parseDate(s)
	return ok
}
