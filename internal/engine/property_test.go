package engine_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"dealplan/internal/catalog"
	"dealplan/internal/domain"
	"dealplan/internal/engine"
)

var (
	structures    = []domain.DealStructure{domain.StructureStockPurchase, domain.StructureAssetPurchase, domain.StructureForwardMerger, domain.StructureReverseMerger, domain.StructureCarveOut, domain.StructureReorg}
	integrations  = []domain.IntegrationModel{domain.IntegrationFull, domain.IntegrationHybrid, domain.IntegrationStandalone}
	tsaAnswers    = []domain.TSARequired{domain.TSAYes, domain.TSANo, domain.TSATBD}
	jurisdictions = []string{"US", "UK", "EU-DE", "EU-IE", "SG", "CH", "CA", "JP"}
	closeDates    = []string{"", "2026-01-31", "2026-02-28", "2028-02-29", "2026-12-31"}
)

func genIntake() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, len(structures)-1),
		gen.IntRange(0, len(integrations)-1),
		gen.IntRange(0, len(tsaAnswers)-1),
		gen.Bool(),
		gen.SliceOf(gen.IntRange(0, len(jurisdictions)-1)),
		gen.IntRange(0, len(closeDates)-1),
		gen.IntRange(1, 50),
	).Map(func(v []interface{}) domain.Intake {
		js := []string{}
		for _, j := range v[4].([]int) {
			js = append(js, jurisdictions[j])
		}
		return domain.Intake{
			DealName:         "Prop",
			DealStructure:    structures[v[0].(int)],
			IntegrationModel: integrations[v[1].(int)],
			TSARequired:      tsaAnswers[v[2].(int)],
			CrossBorder:      v[3].(bool),
			Jurisdictions:    js,
			CloseDate:        closeDates[v[5].(int)],
			TargetEntities:   v[6].(int),
			TargetGAAP:       "US GAAP",
		}
	})
}

func TestGenerationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	total := catalog.Master().Len()

	properties.Property("one instance per template", prop.ForAll(
		func(in domain.Intake) bool {
			return len(engine.New().Generate(in).Tasks) == total
		},
		genIntake(),
	))

	properties.Property("not applicable exactly when excluded", prop.ForAll(
		func(in domain.Intake) bool {
			for _, task := range engine.New().Generate(in).Tasks {
				excluded := (task.CrossBorderOnly && !in.CrossBorder) || (task.TSARelevant && in.TSARequired == domain.TSANo)
				if excluded != (task.Status == domain.StatusNotApplicable) {
					return false
				}
				if excluded != (task.NAJustification != nil) {
					return false
				}
			}
			return true
		},
		genIntake(),
	))

	properties.Property("milestones are all or nothing", prop.ForAll(
		func(in domain.Intake) bool {
			plan := engine.New().Generate(in)
			if in.CloseDate == "" {
				return len(plan.Milestones) == 0
			}
			if len(plan.Milestones) != 5 || plan.Milestones[0].Date != in.CloseDate {
				return false
			}
			for i := 1; i < len(plan.Milestones); i++ {
				if plan.Milestones[i-1].Date >= plan.Milestones[i].Date {
					return false
				}
			}
			return true
		},
		genIntake(),
	))

	properties.Property("standalone never critical outside the reserved carve-out range", prop.ForAll(
		func(in domain.Intake) bool {
			if in.IntegrationModel != domain.IntegrationStandalone {
				return true
			}
			for _, task := range engine.New().Generate(in).Tasks {
				reserved := in.DealStructure == domain.StructureCarveOut && catalog.InReservedTSARange(task.ItemID)
				if task.Priority == domain.PriorityCritical && !reserved {
					return false
				}
			}
			return true
		},
		genIntake(),
	))

	properties.Property("KPIs account for every active instance", prop.ForAll(
		func(in domain.Intake) bool {
			plan := engine.New().Generate(in)
			k := engine.ComputeKPIs(plan.Tasks)
			active := 0
			for _, s := range plan.CategorySummaries {
				active += s.ActiveItems
			}
			return k.Total == active && k.NotStarted == active && k.PctComplete == 0
		},
		genIntake(),
	))

	properties.TestingRun(t)
}

func TestPercentProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("completion percent stays within bounds", prop.ForAll(
		func(done, open int) bool {
			tasks := []domain.TaskInstance{}
			for i := 0; i < done; i++ {
				tasks = append(tasks, makeTask("A", domain.StatusComplete))
			}
			for i := 0; i < open; i++ {
				tasks = append(tasks, makeTask("A", domain.StatusNotStarted))
			}
			pct := engine.ComputeKPIs(tasks).PctComplete
			if done+open == 0 {
				return pct == 0
			}
			return pct >= 0 && pct <= 100 && (done != done+open || pct == 100)
		},
		gen.IntRange(0, 40),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}
