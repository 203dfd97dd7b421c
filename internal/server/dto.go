package server

import (
	"encoding/json"

	"dealplan/internal/domain"
)

// Request payloads

// GeneratePlanRequest is an intake where every field but the deal name may
// be omitted; omitted fields take the intake defaults.
type GeneratePlanRequest struct {
	DealName         string   `json:"dealName" minLength:"1"`
	DealStructure    string   `json:"dealStructure,omitempty" enum:"stock_purchase,asset_purchase,merger_forward,merger_reverse,carve_out,f_reorg"`
	IntegrationModel string   `json:"integrationModel,omitempty" enum:"fully_integrated,hybrid,standalone"`
	CloseDate        string   `json:"closeDate,omitempty" example:"2026-06-01"`
	CrossBorder      *bool    `json:"crossBorder,omitempty"`
	Jurisdictions    []string `json:"jurisdictions,omitempty" example:"[\"US\",\"UK\"]"`
	TSARequired      string   `json:"tsaRequired,omitempty" enum:"yes,no,tbd"`
	IndustrySector   string   `json:"industrySector,omitempty"`
	DealValueRange   string   `json:"dealValueRange,omitempty"`
	TargetEntities   int      `json:"targetEntities,omitempty" minimum:"1"`
	TargetGAAP       string   `json:"targetGaap,omitempty"`
	TargetERP        string   `json:"targetErp,omitempty"`
	BuyerMaturity    string   `json:"buyerMaturity,omitempty"`
}

type UpdateTaskRequest struct {
	Status        *string `json:"status,omitempty" enum:"not_started,in_progress,blocked,complete,na"`
	BlockedReason *string `json:"blocked_reason,omitempty"`
	OwnerID       *string `json:"owner_id,omitempty"`
	AddNote       *string `json:"add_note,omitempty"`
}

type OverrideRiskRequest struct {
	Field  string `json:"field" enum:"severity,status"`
	Value  string `json:"value"`
	Reason string `json:"reason" minLength:"1"`
}

// Response payloads

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	PlanID     string         `json:"plan_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type planList struct {
	Items []domain.PlanHeader `json:"items"`
}

type taskList struct {
	Items []domain.TaskInstance `json:"items"`
}

type riskList struct {
	Items []domain.RiskAlert `json:"items"`
}

type categoryList struct {
	Items []domain.CategoryStats `json:"items"`
}

type templateList struct {
	Items []domain.TaskTemplate `json:"items"`
}

type DanglingResponse struct {
	ItemID     string `json:"item_id"`
	Dependency string `json:"dependency"`
}

// Conversion helpers

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		PlanID:     e.PlanID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil || obj == nil {
		return map[string]any{}
	}
	return obj
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
