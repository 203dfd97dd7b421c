package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealplan/internal/catalog"
	"dealplan/internal/domain"
)

func TestMasterCatalogLoads(t *testing.T) {
	c := catalog.Master()
	require.Equal(t, 73, c.Len())

	first := c.Templates()[0]
	assert.Equal(t, "FRC-0001", first.ItemID)
	assert.Equal(t, "TSA Assessment & Exit", first.Category)
	assert.Equal(t, domain.PriorityCritical, first.Priority)
	assert.True(t, first.TSARelevant)
	assert.Empty(t, first.Dependencies)

	both, ok := c.Get("FRC-0013")
	require.True(t, ok)
	assert.True(t, both.TSARelevant)
	assert.True(t, both.CrossBorderOnly)
	assert.Equal(t, []domain.RiskCategory{domain.RiskTSADependency, domain.RiskRegulatoryDelay}, both.RiskIndicators)
}

func TestMasterCatalogIDsSorted(t *testing.T) {
	tpls := catalog.Master().Templates()
	for i := 1; i < len(tpls); i++ {
		assert.Less(t, tpls[i-1].ItemID, tpls[i].ItemID)
	}
}

func TestMasterCatalogHasNoDanglingDependencies(t *testing.T) {
	assert.Empty(t, catalog.Master().DanglingDependencies())
}

func TestTemplatesReturnsCopy(t *testing.T) {
	c := catalog.Master()
	tpls := c.Templates()
	tpls[0].Description = "mutated"
	got, _ := c.Get("FRC-0001")
	assert.NotEqual(t, "mutated", got.Description)
}

func TestCategoriesFirstSeenOrder(t *testing.T) {
	cats := catalog.Master().Categories()
	require.Len(t, cats, 12)
	assert.Equal(t, "TSA Assessment & Exit", cats[0])
	assert.Equal(t, "HR & Workforce Integration", cats[len(cats)-1])
}

func TestFromYAMLReportsDanglingDependencies(t *testing.T) {
	c, err := catalog.FromYAML([]byte(`
- id: X-0002
  category: A
  section: s
  description: d
  phase: day_1
  priority: high
  dependencies: [X-0001, X-0099]
- id: X-0001
  category: A
  section: s
  description: d
  phase: day_30
  priority: low
`))
	require.NoError(t, err)
	assert.Equal(t, []catalog.DanglingDependency{{ItemID: "X-0002", Dependency: "X-0099"}}, c.DanglingDependencies())
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"duplicate": "- {id: A-1, category: c, phase: day_1, priority: low}\n- {id: A-1, category: c, phase: day_1, priority: low}\n",
		"priority":  "- {id: A-1, category: c, phase: day_1, priority: urgent}\n",
		"phase":     "- {id: A-1, category: c, phase: day_5, priority: low}\n",
		"category":  "- {id: A-1, phase: day_1, priority: low}\n",
		"empty id":  "- {category: c, phase: day_1, priority: low}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := catalog.FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestOrdinal(t *testing.T) {
	n, ok := catalog.Ordinal("FRC-0070")
	assert.True(t, ok)
	assert.Equal(t, 70, n)

	_, ok = catalog.Ordinal("FRC-")
	assert.False(t, ok)
	_, ok = catalog.Ordinal("FRC-00x1")
	assert.False(t, ok)

	assert.True(t, catalog.InReservedTSARange("FRC-0001"))
	assert.True(t, catalog.InReservedTSARange("FRC-0070"))
	assert.False(t, catalog.InReservedTSARange("FRC-0071"))
	assert.False(t, catalog.InReservedTSARange("nodigits"))
}
