package engine

import "dealplan/internal/domain"

// categoryPhases is when each category carries the most weight.
var categoryPhases = map[string]string{
	"TSA Assessment & Exit":        "Day 1",
	"Consolidation & Reporting":    "Day 1",
	"Operational Accounting":       "Day 1",
	"Internal Controls & SOX":      "Day 30",
	"Income Tax & Compliance":      "Day 1",
	"Treasury & Banking":           "Day 1",
	"FP&A & Baselining":            "Day 60",
	"Cybersecurity & Data Privacy": "Day 1",
	"ESG & Sustainability":         "Day 90",
	"Integration Budget & PMO":     "Day 1",
	"Facilities & Real Estate":     "Day 30",
	"HR & Workforce Integration":   "Day 1",
}

const greenPct = 80

// Summaries groups instances by category in first-seen order. Totals count
// every instance; the dominant priority only considers active ones.
func Summaries(tasks []domain.TaskInstance) []domain.CategorySummary {
	idx := map[string]int{}
	var out []domain.CategorySummary
	for _, t := range tasks {
		i, ok := idx[t.Category]
		if !ok {
			phase, known := categoryPhases[t.Category]
			if !known {
				phase = "Day 1"
			}
			i = len(out)
			idx[t.Category] = i
			out = append(out, domain.CategorySummary{Name: t.Category, Phase: phase, Priority: domain.PriorityMedium})
		}
		s := &out[i]
		s.TotalItems++
		if t.Status == domain.StatusNotApplicable {
			continue
		}
		s.ActiveItems++
		switch {
		case t.Priority == domain.PriorityCritical:
			s.Priority = domain.PriorityCritical
		case t.Priority == domain.PriorityHigh && s.Priority != domain.PriorityCritical:
			s.Priority = domain.PriorityHigh
		}
	}
	if out == nil {
		out = []domain.CategorySummary{}
	}
	return out
}

// CategoryBreakdown counts active instances per category by status, in
// first-seen order, and assigns each category its traffic light.
func CategoryBreakdown(tasks []domain.TaskInstance) []domain.CategoryStats {
	idx := map[string]int{}
	out := []domain.CategoryStats{}
	for _, t := range tasks {
		if t.Status == domain.StatusNotApplicable {
			continue
		}
		i, ok := idx[t.Category]
		if !ok {
			i = len(out)
			idx[t.Category] = i
			out = append(out, domain.CategoryStats{Name: t.Category})
		}
		s := &out[i]
		s.Total++
		switch t.Status {
		case domain.StatusComplete:
			s.Complete++
		case domain.StatusInProgress:
			s.InProgress++
		case domain.StatusBlocked:
			s.Blocked++
		default:
			s.NotStarted++
		}
	}
	for i := range out {
		out[i].RAG = CategoryRAG(out[i])
	}
	return out
}

// CategoryRAG is red on any blocker, green at >= 80% complete, else amber.
// An empty category is amber.
func CategoryRAG(s domain.CategoryStats) domain.RAG {
	if s.Blocked > 0 {
		return domain.RAGRed
	}
	if s.Total > 0 && s.Complete*100 >= greenPct*s.Total {
		return domain.RAGGreen
	}
	return domain.RAGAmber
}

// ComputeKPIs summarises all active instances.
func ComputeKPIs(tasks []domain.TaskInstance) domain.KPIs {
	var k domain.KPIs
	for _, t := range tasks {
		switch t.Status {
		case domain.StatusNotApplicable:
			continue
		case domain.StatusComplete:
			k.Complete++
		case domain.StatusInProgress:
			k.InProgress++
		case domain.StatusBlocked:
			k.Blocked++
		case domain.StatusNotStarted:
			k.NotStarted++
		}
		k.Total++
	}
	k.PctComplete = percentRounded(k.Complete, k.Total)
	return k
}

// percentRounded is round-half-up of 100*n/d in integer arithmetic.
func percentRounded(n, d int) int {
	if d == 0 {
		return 0
	}
	return (200*n + d) / (2 * d)
}

// PlanRAG is red on any blocker or open critical risk, green at >= 80%
// complete, else amber. It reads the alerts' current values every call.
func PlanRAG(k domain.KPIs, alerts []domain.RiskAlert) domain.RAG {
	if k.Blocked > 0 {
		return domain.RAGRed
	}
	for _, a := range alerts {
		if a.Severity == domain.SeverityCritical && a.Status == domain.RiskOpen {
			return domain.RAGRed
		}
	}
	if k.PctComplete >= greenPct {
		return domain.RAGGreen
	}
	return domain.RAGAmber
}

// Health computes the KPI snapshot and plan traffic light together.
func Health(tasks []domain.TaskInstance, alerts []domain.RiskAlert) (domain.KPIs, domain.RAG) {
	k := ComputeKPIs(tasks)
	return k, PlanRAG(k, alerts)
}
