package domain

var StructureLabels = map[DealStructure]string{
	StructureStockPurchase: "Stock Purchase",
	StructureAssetPurchase: "Asset Purchase",
	StructureForwardMerger: "Forward Merger",
	StructureReverseMerger: "Reverse Triangular Merger",
	StructureCarveOut:      "Carve-Out",
	StructureReorg:         "F-Reorganization",
}

var IntegrationLabels = map[IntegrationModel]string{
	IntegrationFull:       "Fully Integrated",
	IntegrationHybrid:     "Hybrid",
	IntegrationStandalone: "Standalone",
}

// PhaseLabels are the period labels used in exports.
var PhaseLabels = map[Phase]string{
	PhasePreClose: "Pre-Close",
	PhaseDay1:     "Day 1",
	PhaseDay30:    "Day 1–30",
	PhaseDay60:    "Day 30–60",
	PhaseDay90:    "Day 60–90",
	PhaseYear1:    "Year 1",
}

var RiskLabels = map[RiskCategory]string{
	RiskRegulatoryDelay:       "Regulatory Delay",
	RiskTaxStructureLeakage:   "Tax Structure Leakage",
	RiskTSADependency:         "TSA Dependency",
	RiskDataPrivacyBreach:     "Data Privacy Breach",
	RiskCulturalIntegration:   "Cultural Integration",
	RiskFinancialReportingGap: "Financial Reporting Gap",
	RiskStrandedCosts:         "Stranded Costs",
}

func Label[K ~string](labels map[K]string, k K) string {
	if l, ok := labels[k]; ok {
		return l
	}
	return string(k)
}
