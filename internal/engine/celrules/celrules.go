// Package celrules compiles operator-defined risk rules written in CEL.
package celrules

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"dealplan/internal/config"
	"dealplan/internal/domain"
	"dealplan/internal/engine"
)

func newEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("intake", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return env, nil
}

// Compile turns config rules into engine rules. Every expression must
// type-check to bool.
func Compile(customs []config.CustomRisk) ([]engine.RiskRule, error) {
	if len(customs) == 0 {
		return nil, nil
	}
	env, err := newEnv()
	if err != nil {
		return nil, err
	}
	rules := make([]engine.RiskRule, 0, len(customs))
	for _, custom := range customs {
		ast, issues := env.Compile(custom.When)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("custom risk %s: compile: %w", custom.Name, issues.Err())
		}
		if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
			return nil, fmt.Errorf("custom risk %s: expression must return bool, got %s", custom.Name, out)
		}
		prg, err := env.Program(ast, cel.CostLimit(10000))
		if err != nil {
			return nil, fmt.Errorf("custom risk %s: program: %w", custom.Name, err)
		}
		description := custom.Description
		rules = append(rules, engine.RiskRule{
			Category:   domain.RiskCategory(custom.Category),
			Severity:   domain.Severity(custom.Severity),
			Affected:   append([]string{}, custom.Affected...),
			Check:      check(prg),
			Describe:   func(domain.Intake) string { return description },
			Mitigation: custom.Mitigation,
		})
	}
	return rules, nil
}

// check treats evaluation errors and non-bool results as "does not fire".
func check(prg cel.Program) func(domain.Intake) bool {
	return func(in domain.Intake) bool {
		out, _, err := prg.Eval(map[string]any{"intake": Activation(in)})
		if err != nil {
			return false
		}
		fired, ok := out.Value().(bool)
		return ok && fired
	}
}

// Activation exposes intake fields to expressions under their JSON names.
func Activation(in domain.Intake) map[string]any {
	jurisdictions := in.Jurisdictions
	if jurisdictions == nil {
		jurisdictions = []string{}
	}
	return map[string]any{
		"dealName":         in.DealName,
		"dealStructure":    string(in.DealStructure),
		"integrationModel": string(in.IntegrationModel),
		"closeDate":        in.CloseDate,
		"crossBorder":      in.CrossBorder,
		"jurisdictions":    jurisdictions,
		"tsaRequired":      string(in.TSARequired),
		"industrySector":   in.IndustrySector,
		"dealValueRange":   in.DealValueRange,
		"targetEntities":   int64(in.TargetEntities),
		"targetGaap":       in.TargetGAAP,
		"targetErp":        in.TargetERP,
		"buyerMaturity":    in.BuyerMaturity,
	}
}
