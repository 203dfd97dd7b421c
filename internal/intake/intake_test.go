package intake_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealplan/internal/domain"
	"dealplan/internal/intake"
)

func TestDecodeYAMLFillsDefaults(t *testing.T) {
	in, err := intake.Decode([]byte("dealName: Project Falcon\ncloseDate: 2026-06-01\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.Intake{
		DealName:         "Project Falcon",
		DealStructure:    domain.StructureStockPurchase,
		IntegrationModel: domain.IntegrationFull,
		CloseDate:        "2026-06-01",
		Jurisdictions:    []string{},
		TSARequired:      domain.TSATBD,
		TargetEntities:   1,
		BuyerMaturity:    "occasional",
	}, in)
}

func TestDecodeYAMLCloseDateForms(t *testing.T) {
	for doc, want := range map[string]string{
		"dealName: A\ncloseDate: 2026-06-01\n":   "2026-06-01",
		"dealName: A\ncloseDate: '2026-06-01'\n": "2026-06-01",
		"dealName: A\ncloseDate: 2026-6-1\n":     "2026-06-01",
	} {
		in, err := intake.Decode([]byte(doc))
		require.NoError(t, err, doc)
		assert.Equal(t, want, in.CloseDate, doc)
	}
}

func TestDecodeLowercaseJurisdictions(t *testing.T) {
	in, err := intake.Decode([]byte("dealName: A\njurisdictions: [us, eu-de]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"EU-DE", "US"}, in.Jurisdictions)
	assert.True(t, in.CrossBorder)

	in, err = intake.Decode([]byte("dealName: A\njurisdictions: [us]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"US"}, in.Jurisdictions)
	assert.False(t, in.CrossBorder)
}

func TestDecodeJSON(t *testing.T) {
	doc := `{
		"dealName": "Orion",
		"dealStructure": "carve_out",
		"integrationModel": "standalone",
		"closeDate": "2026-09-30",
		"crossBorder": true,
		"jurisdictions": ["UK", "US", "UK"],
		"tsaRequired": "yes",
		"targetEntities": 7,
		"targetGaap": "IFRS"
	}`
	in, err := intake.Decode([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, domain.StructureCarveOut, in.DealStructure)
	assert.Equal(t, []string{"UK", "US"}, in.Jurisdictions)
	assert.Equal(t, 7, in.TargetEntities)
	assert.True(t, in.CrossBorder)
}

func TestCrossBorderDerivedFromJurisdictions(t *testing.T) {
	in, err := intake.Decode([]byte("dealName: A\njurisdictions: [US, EU-DE]\n"))
	require.NoError(t, err)
	assert.True(t, in.CrossBorder)

	in, err = intake.Decode([]byte("dealName: A\njurisdictions: [US]\n"))
	require.NoError(t, err)
	assert.False(t, in.CrossBorder)

	in, err = intake.Decode([]byte("dealName: A\ncrossBorder: false\njurisdictions: [US, EU-DE]\n"))
	require.NoError(t, err)
	assert.False(t, in.CrossBorder, "explicit value wins")
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]struct {
		doc   string
		field string
	}{
		"missing name":     {"closeDate: 2026-06-01\n", ""},
		"blank name":       {"dealName: '   '\n", "dealName"},
		"bad structure":    {"dealName: A\ndealStructure: spin_off\n", "dealStructure"},
		"bad tsa":          {"dealName: A\ntsaRequired: maybe\n", "tsaRequired"},
		"fractional count": {"dealName: A\ntargetEntities: 2.5\n", "targetEntities"},
		"zero count":       {"dealName: A\ntargetEntities: 0\n", "targetEntities"},
		"bad date":         {"dealName: A\ncloseDate: 06/01/2026\n", "closeDate"},
		"date with time":   {"dealName: A\ncloseDate: 2026-06-01T10:00:00Z\n", "closeDate"},
		"unknown field":    {"dealName: A\nbudget: 10\n", ""},
		"bad jurisdiction": {"dealName: A\njurisdictions: [germany]\n", "jurisdictions/0"},
		"not a mapping":    {"- a\n- b\n", ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := intake.Decode([]byte(tc.doc))
			require.Error(t, err)
			var fe *intake.FieldError
			require.True(t, errors.As(err, &fe))
			if tc.field != "" {
				assert.Equal(t, tc.field, fe.Field)
			}
		})
	}
}

func TestNormalizeTypedIntake(t *testing.T) {
	in, err := intake.Normalize(domain.Intake{DealName: "  Vega ", Jurisdictions: []string{" sg", "US"}})
	require.NoError(t, err)
	assert.Equal(t, "Vega", in.DealName)
	assert.Equal(t, domain.TSATBD, in.TSARequired)
	assert.Equal(t, 1, in.TargetEntities)
	assert.Equal(t, []string{"SG", "US"}, in.Jurisdictions)

	_, err = intake.Normalize(domain.Intake{DealName: "Vega", IntegrationModel: "absorbed"})
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deal.yml")
	require.NoError(t, os.WriteFile(path, []byte("dealName: Lyra\ntsaRequired: no\n"), 0o644))
	in, err := intake.Load(path)
	require.NoError(t, err)
	assert.Equal(t, domain.TSANo, in.TSARequired)

	_, err = intake.Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
