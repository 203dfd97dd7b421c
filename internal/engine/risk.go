package engine

import (
	"fmt"
	"strings"

	"dealplan/internal/domain"
)

// RiskRule is one independent detection rule.
type RiskRule struct {
	Category   domain.RiskCategory
	Severity   domain.Severity
	Affected   []string
	Check      func(domain.Intake) bool
	Describe   func(domain.Intake) string
	Mitigation string
}

var lowTaxJurisdictions = map[string]bool{
	"EU-IE": true,
	"EU-NL": true,
	"EU-LU": true,
	"SG":    true,
	"CH":    true,
}

var topValueBands = map[string]bool{
	">$5B":    true,
	"$1B–$5B": true,
	"$1B-$5B": true,
}

func isEUOrUK(j string) bool {
	return strings.HasPrefix(j, "EU") || j == "UK"
}

func filterJurisdictions(js []string, keep func(string) bool) []string {
	var out []string
	for _, j := range js {
		if keep(j) {
			out = append(out, j)
		}
	}
	return out
}

func anyJurisdiction(js []string, match func(string) bool) bool {
	for _, j := range js {
		if match(j) {
			return true
		}
	}
	return false
}

// BuiltinRules returns the fixed detection rules in evaluation order.
func BuiltinRules() []RiskRule {
	return []RiskRule{
		{
			Category: domain.RiskRegulatoryDelay,
			Severity: domain.SeverityCritical,
			Affected: []string{"Income Tax & Compliance", "Integration Budget & PMO"},
			Check: func(in domain.Intake) bool {
				return in.CrossBorder && len(in.Jurisdictions) >= 3
			},
			Describe: func(in domain.Intake) string {
				return fmt.Sprintf("%d jurisdictions require regulatory filing or clearance. Concurrent processes (CFIUS, EUMR, NSI Act) raise close-date risk and Day 1 complexity.", len(in.Jurisdictions))
			},
			Mitigation: "Engage external regulatory counsel immediately. Build a jurisdiction-by-jurisdiction clearance tracker. Extend the Day 1 planning buffer by 30 days per jurisdiction beyond 2.",
		},
		{
			Category: domain.RiskTaxStructureLeakage,
			Severity: domain.SeverityHigh,
			Affected: []string{"Income Tax & Compliance"},
			Check: func(in domain.Intake) bool {
				if !in.CrossBorder {
					return false
				}
				return anyJurisdiction(in.Jurisdictions, func(j string) bool { return lowTaxJurisdictions[j] }) ||
					topValueBands[in.DealValueRange]
			},
			Describe: func(in domain.Intake) string {
				return fmt.Sprintf("Deal involves jurisdictions with potential sub-15%% effective tax rates or significant value (%s). Pillar Two top-up tax analysis required; GILTI/BEAT exposure not yet modelled.", in.DealValueRange)
			},
			Mitigation: "Commission Pillar Two ETR analysis by jurisdiction. Model GILTI and BEAT exposure. Evaluate §338(g) election implications for foreign target entities.",
		},
		{
			Category: domain.RiskTSADependency,
			Severity: domain.SeverityHigh,
			Affected: []string{"TSA Assessment & Exit"},
			Check: func(in domain.Intake) bool {
				return in.TSARequired == domain.TSAYes
			},
			Describe: func(in domain.Intake) string {
				suffix := ""
				if in.DealStructure == domain.StructureCarveOut {
					suffix = " (Carve-Out: high TSA complexity)"
				}
				return fmt.Sprintf("TSA required%s. No standalone capability assessment complete. Prolonged TSA dependency increases stranded cost risk and integration timeline.", suffix)
			},
			Mitigation: "Complete standalone capability assessment within Day 30. Define exit criteria for each TSA service. Assign TSA exit owners per service category. Budget for TSA premium pricing (typically cost-plus 15–25%).",
		},
		{
			Category: domain.RiskDataPrivacyBreach,
			Severity: domain.SeverityHigh,
			Affected: []string{"Cybersecurity & Data Privacy"},
			Check: func(in domain.Intake) bool {
				return in.CrossBorder && anyJurisdiction(in.Jurisdictions, isEUOrUK)
			},
			Describe: func(in domain.Intake) string {
				return fmt.Sprintf("Target processes personal data in %s. GDPR/UK GDPR applies. DPIA not yet initiated; AI systems may be in scope under the EU AI Act.",
					strings.Join(filterJurisdictions(in.Jurisdictions, isEUOrUK), ", "))
			},
			Mitigation: "Appoint or confirm DPO coverage. Initiate a DPIA for all personal data processing. Update privacy notices. Review the AI system inventory against EU AI Act risk tiers.",
		},
		{
			Category: domain.RiskCulturalIntegration,
			Severity: domain.SeverityMedium,
			Affected: []string{"HR & Workforce Integration", "Integration Budget & PMO"},
			Check: func(in domain.Intake) bool {
				nonUS := filterJurisdictions(in.Jurisdictions, func(j string) bool { return !strings.HasPrefix(j, "US") })
				return in.CrossBorder && len(nonUS) >= 2
			},
			Describe: func(domain.Intake) string {
				return "Cross-border workforce spans multiple cultures and employment law frameworks. Cultural integration and retention risk elevated."
			},
			Mitigation: "Commission an early cultural assessment. Engage local HR and employment counsel per jurisdiction. Design retention incentives for key personnel. Include cultural integration in the Day 90 SteerCo review.",
		},
		{
			Category: domain.RiskFinancialReportingGap,
			Severity: domain.SeverityHigh,
			Affected: []string{"Consolidation & Reporting"},
			Check: func(in domain.Intake) bool {
				return (in.TargetGAAP != "" && in.TargetGAAP != "US GAAP") ||
					(in.TargetEntities > 5 && in.CrossBorder)
			},
			Describe: func(in domain.Intake) string {
				gaap := in.TargetGAAP
				if gaap == "" {
					gaap = "non-US"
				}
				return fmt.Sprintf("Target uses %s accounting standards. %d legal entities require consolidation. Significant conversion effort needed for the first combined close.", gaap, in.TargetEntities)
			},
			Mitigation: "Engage the technical accounting team for a GAAP conversion workplan. Budget for an external auditor readiness review. Map all policy differences before the first consolidated close (Day 30 deadline).",
		},
		{
			Category: domain.RiskStrandedCosts,
			Severity: domain.SeverityMedium,
			Affected: []string{"TSA Assessment & Exit", "Facilities & Real Estate", "Integration Budget & PMO"},
			Check: func(in domain.Intake) bool {
				return in.DealStructure == domain.StructureCarveOut
			},
			Describe: func(domain.Intake) string {
				return "Carve-out structure creates high stranded cost exposure. Shared services, facilities, and corporate overhead allocated to the carved entity must be replaced or renegotiated."
			},
			Mitigation: "Complete stranded cost mapping within Day 60. Build a standalone cost model per function. Evaluate insourcing against outsourcing for each stranded function. Include run-rate standalone cost in the synergy baseline.",
		},
	}
}

// DetectRisks evaluates every rule unconditionally and emits one open alert
// per rule that fires, in rule order.
func (e Engine) DetectRisks(in domain.Intake) []domain.RiskAlert {
	rules := append(BuiltinRules(), e.Extra...)
	alerts := []domain.RiskAlert{}
	for _, r := range rules {
		if r.Check == nil || !r.Check(in) {
			continue
		}
		desc := ""
		if r.Describe != nil {
			desc = r.Describe(in)
		}
		alerts = append(alerts, domain.RiskAlert{
			ID:                 e.newID(),
			Category:           r.Category,
			Severity:           r.Severity,
			Description:        desc,
			Mitigation:         r.Mitigation,
			AffectedCategories: append([]string{}, r.Affected...),
			Status:             domain.RiskOpen,
		})
	}
	return alerts
}
