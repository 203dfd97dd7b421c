package domain

type DealStructure string

const (
	StructureStockPurchase DealStructure = "stock_purchase"
	StructureAssetPurchase DealStructure = "asset_purchase"
	StructureForwardMerger DealStructure = "merger_forward"
	StructureReverseMerger DealStructure = "merger_reverse"
	StructureCarveOut      DealStructure = "carve_out"
	StructureReorg         DealStructure = "f_reorg"
)

type IntegrationModel string

const (
	IntegrationFull       IntegrationModel = "fully_integrated"
	IntegrationHybrid     IntegrationModel = "hybrid"
	IntegrationStandalone IntegrationModel = "standalone"
)

// TSARequired is the tri-state transitional-services flag.
type TSARequired string

const (
	TSAYes TSARequired = "yes"
	TSANo  TSARequired = "no"
	TSATBD TSARequired = "tbd"
)

type Phase string

const (
	PhasePreClose Phase = "pre_close"
	PhaseDay1     Phase = "day_1"
	PhaseDay30    Phase = "day_30"
	PhaseDay60    Phase = "day_60"
	PhaseDay90    Phase = "day_90"
	PhaseYear1    Phase = "year_1"
)

// Phases lists every phase in timeline order.
var Phases = []Phase{PhasePreClose, PhaseDay1, PhaseDay30, PhaseDay60, PhaseDay90, PhaseYear1}

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank orders priorities; a higher rank is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

type TaskStatus string

const (
	StatusNotStarted    TaskStatus = "not_started"
	StatusInProgress    TaskStatus = "in_progress"
	StatusBlocked       TaskStatus = "blocked"
	StatusComplete      TaskStatus = "complete"
	StatusNotApplicable TaskStatus = "na"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusBlocked, StatusComplete, StatusNotApplicable:
		return true
	}
	return false
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

type RiskCategory string

const (
	RiskRegulatoryDelay       RiskCategory = "regulatory_delay"
	RiskTaxStructureLeakage   RiskCategory = "tax_structure_leakage"
	RiskTSADependency         RiskCategory = "tsa_dependency"
	RiskDataPrivacyBreach     RiskCategory = "data_privacy_breach"
	RiskCulturalIntegration   RiskCategory = "cultural_integration"
	RiskFinancialReportingGap RiskCategory = "financial_reporting_gap"
	RiskStrandedCosts         RiskCategory = "stranded_costs"
)

type RiskStatus string

const (
	RiskOpen         RiskStatus = "open"
	RiskAcknowledged RiskStatus = "acknowledged"
	RiskMitigated    RiskStatus = "mitigated"
	RiskClosed       RiskStatus = "closed"
)

func (s RiskStatus) Valid() bool {
	switch s {
	case RiskOpen, RiskAcknowledged, RiskMitigated, RiskClosed:
		return true
	}
	return false
}

// RAG is a red/amber/green traffic light.
type RAG string

const (
	RAGRed   RAG = "red"
	RAGAmber RAG = "amber"
	RAGGreen RAG = "green"
)

// Intake is the deal profile handed to the generator.
type Intake struct {
	DealName         string           `json:"dealName" yaml:"dealName"`
	DealStructure    DealStructure    `json:"dealStructure" yaml:"dealStructure" enum:"stock_purchase,asset_purchase,merger_forward,merger_reverse,carve_out,f_reorg"`
	IntegrationModel IntegrationModel `json:"integrationModel" yaml:"integrationModel" enum:"fully_integrated,hybrid,standalone"`
	CloseDate        string           `json:"closeDate" yaml:"closeDate"`
	CrossBorder      bool             `json:"crossBorder" yaml:"crossBorder"`
	Jurisdictions    []string         `json:"jurisdictions" yaml:"jurisdictions"`
	TSARequired      TSARequired      `json:"tsaRequired" yaml:"tsaRequired" enum:"yes,no,tbd"`
	IndustrySector   string           `json:"industrySector" yaml:"industrySector"`
	DealValueRange   string           `json:"dealValueRange" yaml:"dealValueRange"`
	TargetEntities   int              `json:"targetEntities" yaml:"targetEntities"`
	TargetGAAP       string           `json:"targetGaap" yaml:"targetGaap"`
	TargetERP        string           `json:"targetErp" yaml:"targetErp"`
	BuyerMaturity    string           `json:"buyerMaturity" yaml:"buyerMaturity"`
}

// TaskTemplate is one static catalog entry.
type TaskTemplate struct {
	ItemID          string         `json:"itemId" yaml:"id"`
	Category        string         `json:"category" yaml:"category"`
	Section         string         `json:"section" yaml:"section"`
	Description     string         `json:"description" yaml:"description"`
	Phase           Phase          `json:"phase" yaml:"phase"`
	Priority        Priority       `json:"priority" yaml:"priority"`
	Dependencies    []string       `json:"dependencies" yaml:"dependencies"`
	TSARelevant     bool           `json:"tsaRelevant" yaml:"tsa"`
	CrossBorderOnly bool           `json:"crossBorderFlag" yaml:"crossBorder"`
	RiskIndicators  []RiskCategory `json:"riskIndicators" yaml:"risks"`
}

// TaskInstance is a per-plan copy of a template.
type TaskInstance struct {
	ID              string         `json:"id"`
	ItemID          string         `json:"itemId"`
	Category        string         `json:"category"`
	Section         string         `json:"section"`
	Description     string         `json:"description"`
	Phase           Phase          `json:"phase"`
	MilestoneDate   *string        `json:"milestoneDate,omitempty"`
	Priority        Priority       `json:"priority"`
	Status          TaskStatus     `json:"status"`
	OwnerID         *string        `json:"ownerId,omitempty"`
	Dependencies    []string       `json:"dependencies"`
	TSARelevant     bool           `json:"tsaRelevant"`
	CrossBorderOnly bool           `json:"crossBorderFlag"`
	RiskIndicators  []RiskCategory `json:"riskIndicators"`
	Notes           []string       `json:"notes"`
	BlockedReason   *string        `json:"blockedReason,omitempty"`
	NAJustification *string        `json:"naJustification,omitempty"`
}

// OverrideRecord is one audited change to a risk alert.
type OverrideRecord struct {
	Timestamp string `json:"timestamp" format:"date-time"`
	Field     string `json:"field" enum:"severity,status"`
	From      string `json:"from"`
	To        string `json:"to"`
	Reason    string `json:"reason"`
	ActorID   string `json:"actorId,omitempty"`
}

type RiskAlert struct {
	ID                 string           `json:"id"`
	Category           RiskCategory     `json:"category"`
	Severity           Severity         `json:"severity"`
	Description        string           `json:"description"`
	Mitigation         string           `json:"mitigation"`
	AffectedCategories []string         `json:"affectedCategories"`
	Status             RiskStatus       `json:"status"`
	Overrides          []OverrideRecord `json:"overrides,omitempty"`
}

type Milestone struct {
	Phase         Phase  `json:"phase"`
	Label         string `json:"label"`
	Date          string `json:"date"`
	DaysFromClose int    `json:"daysFromClose"`
}

// CategorySummary is the generation-time view of one category.
type CategorySummary struct {
	Name        string   `json:"name"`
	TotalItems  int      `json:"totalItems"`
	ActiveItems int      `json:"activeItems"`
	Phase       string   `json:"phase"`
	Priority    Priority `json:"priority"`
}

// CategoryStats counts non-N/A instances of one category by status.
type CategoryStats struct {
	Name       string `json:"name"`
	Total      int    `json:"total"`
	Complete   int    `json:"complete"`
	InProgress int    `json:"inProgress"`
	Blocked    int    `json:"blocked"`
	NotStarted int    `json:"notStarted"`
	RAG        RAG    `json:"rag"`
}

// KPIs is the whole-plan snapshot over non-N/A instances.
type KPIs struct {
	Total       int `json:"total"`
	Complete    int `json:"complete"`
	InProgress  int `json:"inProgress"`
	Blocked     int `json:"blocked"`
	NotStarted  int `json:"notStarted"`
	PctComplete int `json:"pctComplete"`
}

// Plan is the generator output. Hosts store it verbatim.
type Plan struct {
	ID                string            `json:"id"`
	Intake            Intake            `json:"intake"`
	Tasks             []TaskInstance    `json:"tasks"`
	RiskAlerts        []RiskAlert       `json:"riskAlerts"`
	CategorySummaries []CategorySummary `json:"categorySummaries"`
	Milestones        []Milestone       `json:"milestones"`
	GeneratedAt       string            `json:"generatedAt" format:"date-time"`
}

// PlanHeader is the listing view of a stored plan.
type PlanHeader struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	PlanID     string `json:"plan_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
