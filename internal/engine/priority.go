package engine

import (
	"dealplan/internal/catalog"
	"dealplan/internal/domain"
)

// ResolvePriority applies the override rules top-down; the first match wins.
func ResolvePriority(t domain.TaskTemplate, in domain.Intake) domain.Priority {
	// Carve-outs lean on TSA work from day one.
	if in.DealStructure == domain.StructureCarveOut && catalog.InReservedTSARange(t.ItemID) {
		return domain.PriorityCritical
	}
	if in.IntegrationModel == domain.IntegrationStandalone && t.Priority == domain.PriorityCritical {
		return domain.PriorityHigh
	}
	return t.Priority
}
