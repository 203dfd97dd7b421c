package celrules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealplan/internal/config"
	"dealplan/internal/domain"
	"dealplan/internal/engine"
	"dealplan/internal/engine/celrules"
)

func firstTimeBuyer() config.CustomRisk {
	return config.CustomRisk{
		Name:        "first-time-acquirer",
		Category:    string(domain.RiskCulturalIntegration),
		Severity:    string(domain.SeverityMedium),
		When:        `intake.buyerMaturity == "first" && intake.targetEntities > 3`,
		Description: "First acquisition with a multi-entity target.",
		Mitigation:  "Stand up an integration playbook before Day 1.",
		Affected:    []string{"Integration Budget & PMO"},
	}
}

func TestCompileEmpty(t *testing.T) {
	rules, err := celrules.Compile(nil)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestCustomRuleFires(t *testing.T) {
	rules, err := celrules.Compile([]config.CustomRisk{firstTimeBuyer()})
	require.NoError(t, err)
	require.Len(t, rules, 1)

	in := domain.Intake{BuyerMaturity: "first", TargetEntities: 4, TargetGAAP: "US GAAP"}
	assert.True(t, rules[0].Check(in))
	in.TargetEntities = 3
	assert.False(t, rules[0].Check(in))
}

func TestCustomRuleAppendsAfterBuiltins(t *testing.T) {
	rules, err := celrules.Compile([]config.CustomRisk{firstTimeBuyer()})
	require.NoError(t, err)

	eng := engine.New()
	eng.Extra = rules
	in := domain.Intake{
		DealStructure:  domain.StructureCarveOut,
		TSARequired:    domain.TSANo,
		BuyerMaturity:  "first",
		TargetEntities: 5,
		TargetGAAP:     "US GAAP",
	}
	alerts := eng.DetectRisks(in)
	require.Len(t, alerts, 2)
	assert.Equal(t, domain.RiskStrandedCosts, alerts[0].Category)
	assert.Equal(t, domain.RiskCulturalIntegration, alerts[1].Category)
	assert.Equal(t, "First acquisition with a multi-entity target.", alerts[1].Description)
	assert.Equal(t, domain.RiskOpen, alerts[1].Status)
}

func TestJurisdictionListExpressions(t *testing.T) {
	custom := firstTimeBuyer()
	custom.When = `intake.crossBorder && intake.jurisdictions.exists(j, j.startsWith("APAC"))`
	rules, err := celrules.Compile([]config.CustomRisk{custom})
	require.NoError(t, err)

	assert.True(t, rules[0].Check(domain.Intake{CrossBorder: true, Jurisdictions: []string{"US", "APAC-SG"}}))
	assert.False(t, rules[0].Check(domain.Intake{CrossBorder: true}))
}

func TestCompileErrors(t *testing.T) {
	bad := firstTimeBuyer()
	bad.When = `intake.buyerMaturity ==`
	_, err := celrules.Compile([]config.CustomRisk{bad})
	assert.Error(t, err)

	notBool := firstTimeBuyer()
	notBool.When = `"text"`
	_, err = celrules.Compile([]config.CustomRisk{notBool})
	assert.Error(t, err)
}

func TestRuntimeErrorDoesNotFire(t *testing.T) {
	custom := firstTimeBuyer()
	custom.When = `intake.missingField == "x"`
	rules, err := celrules.Compile([]config.CustomRisk{custom})
	require.NoError(t, err)
	assert.False(t, rules[0].Check(domain.Intake{}))
}
