package engine

import (
	"dealplan/internal/catalog"
	"dealplan/internal/domain"
)

const (
	ReasonNoTSA    = "TSA not required for this deal"
	ReasonDomestic = "Cross-border items not applicable — domestic deal"
)

// Exclusions maps every not-applicable template id to the reason it was
// excluded. The TSA reason wins when both rules exclude the same template.
func Exclusions(c *catalog.Catalog, in domain.Intake) map[string]string {
	out := map[string]string{}
	for id := range crossBorderExclusions(c, in) {
		out[id] = ReasonDomestic
	}
	for id := range tsaExclusions(c, in) {
		out[id] = ReasonNoTSA
	}
	return out
}

func crossBorderExclusions(c *catalog.Catalog, in domain.Intake) map[string]struct{} {
	set := map[string]struct{}{}
	if in.CrossBorder {
		return set
	}
	for _, t := range c.Templates() {
		if t.CrossBorderOnly {
			set[t.ItemID] = struct{}{}
		}
	}
	return set
}

// tbd excludes nothing.
func tsaExclusions(c *catalog.Catalog, in domain.Intake) map[string]struct{} {
	set := map[string]struct{}{}
	if in.TSARequired != domain.TSANo {
		return set
	}
	for _, t := range c.Templates() {
		if t.TSARelevant {
			set[t.ItemID] = struct{}{}
		}
	}
	return set
}
