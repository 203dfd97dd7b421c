// Package engine turns a deal intake into an execution plan and derives
// progress views from plan snapshots. Every function here is pure apart from
// the injected clock and id source.
package engine

import (
	"time"

	"github.com/google/uuid"

	"dealplan/internal/catalog"
	"dealplan/internal/domain"
)

type Engine struct {
	Catalog *catalog.Catalog
	Now     func() time.Time
	NewID   func() string
	// Extra rules run after the built-in ones, in order.
	Extra []RiskRule
}

func New() Engine {
	return Engine{
		Catalog: catalog.Master(),
		Now:     time.Now,
		NewID:   func() string { return uuid.New().String() },
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.New().String()
}

func (e Engine) catalog() *catalog.Catalog {
	if e.Catalog != nil {
		return e.Catalog
	}
	return catalog.Master()
}

// Generate builds a fresh plan for the intake.
func (e Engine) Generate(in domain.Intake) domain.Plan {
	if in.Jurisdictions == nil {
		in.Jurisdictions = []string{}
	}
	tasks := e.Instantiate(in)
	return domain.Plan{
		ID:                e.newID(),
		Intake:            in,
		Tasks:             tasks,
		RiskAlerts:        e.DetectRisks(in),
		CategorySummaries: Summaries(tasks),
		Milestones:        Milestones(in.CloseDate),
		GeneratedAt:       e.now().UTC().Format(time.RFC3339),
	}
}

// Instantiate creates one task instance per template in catalog order.
func (e Engine) Instantiate(in domain.Intake) []domain.TaskInstance {
	cat := e.catalog()
	excluded := Exclusions(cat, in)
	anchor, hasAnchor := parseDate(in.CloseDate)

	templates := cat.Templates()
	out := make([]domain.TaskInstance, 0, len(templates))
	for _, t := range templates {
		inst := domain.TaskInstance{
			ID:              e.newID(),
			ItemID:          t.ItemID,
			Category:        t.Category,
			Section:         t.Section,
			Description:     t.Description,
			Phase:           t.Phase,
			Priority:        ResolvePriority(t, in),
			Status:          domain.StatusNotStarted,
			Dependencies:    append([]string{}, t.Dependencies...),
			TSARelevant:     t.TSARelevant,
			CrossBorderOnly: t.CrossBorderOnly,
			RiskIndicators:  append([]domain.RiskCategory{}, t.RiskIndicators...),
			Notes:           []string{},
		}
		// Dated regardless of applicability.
		if hasAnchor {
			d := formatDate(anchor.AddDate(0, 0, PhaseOffset(t.Phase)))
			inst.MilestoneDate = &d
		}
		if reason, ok := excluded[t.ItemID]; ok {
			inst.Status = domain.StatusNotApplicable
			r := reason
			inst.NAJustification = &r
		}
		out = append(out, inst)
	}
	return out
}
