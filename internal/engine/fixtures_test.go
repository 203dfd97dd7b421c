package engine_test

import (
	"fmt"
	"time"

	"dealplan/internal/domain"
	"dealplan/internal/engine"
)

// baseIntake is a minimal domestic stock purchase.
func baseIntake() domain.Intake {
	return domain.Intake{
		DealName:         "Acme Acquisition",
		DealStructure:    domain.StructureStockPurchase,
		IntegrationModel: domain.IntegrationFull,
		CloseDate:        "2026-06-01",
		CrossBorder:      false,
		Jurisdictions:    []string{},
		TSARequired:      domain.TSANo,
		IndustrySector:   "Technology",
		DealValueRange:   "$50M–$250M",
		TargetEntities:   1,
		TargetGAAP:       "US GAAP",
		TargetERP:        "NetSuite",
		BuyerMaturity:    "occasional",
	}
}

func with(mut func(*domain.Intake)) domain.Intake {
	in := baseIntake()
	mut(&in)
	return in
}

// testEngine uses a fixed clock and sequential ids.
func testEngine() engine.Engine {
	eng := engine.New()
	eng.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	n := 0
	eng.NewID = func() string {
		n++
		return fmt.Sprintf("id-%04d", n)
	}
	return eng
}

func makeTask(category string, status domain.TaskStatus) domain.TaskInstance {
	return domain.TaskInstance{
		ID:             "test-id",
		ItemID:         "FRC-0001",
		Category:       category,
		Section:        "Test Section",
		Description:    "Test item",
		Phase:          domain.PhaseDay1,
		Priority:       domain.PriorityMedium,
		Status:         status,
		Dependencies:   []string{},
		RiskIndicators: []domain.RiskCategory{},
		Notes:          []string{},
	}
}

func categories(alerts []domain.RiskAlert) []domain.RiskCategory {
	out := []domain.RiskCategory{}
	for _, a := range alerts {
		out = append(out, a.Category)
	}
	return out
}
