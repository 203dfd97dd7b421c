// Package intake decodes and validates deal intake documents at the edge of
// the system. The engine trusts whatever passes here.
package intake

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"dealplan/internal/domain"
	"dealplan/internal/engine"
)

//go:embed intake.schema.json
var schemaJSON string

const schemaURL = "https://dealplan.schemas.local/intake.schema.json"

var schema = mustCompile()

func mustCompile() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("intake schema load failed: %v", err))
	}
	s, err := c.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("intake schema compile failed: %v", err))
	}
	return s
}

// FieldError reports the first offending field of a rejected intake.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return "intake: " + e.Message
	}
	return fmt.Sprintf("intake %s: %s", e.Field, e.Message)
}

// Defaults mirror an untouched intake form.
func defaults() map[string]any {
	return map[string]any{
		"dealStructure":    string(domain.StructureStockPurchase),
		"integrationModel": string(domain.IntegrationFull),
		"closeDate":        "",
		"jurisdictions":    []any{},
		"tsaRequired":      string(domain.TSATBD),
		"targetEntities":   1,
		"buyerMaturity":    "occasional",
	}
}

// Decode parses a YAML or JSON intake document, fills unset fields and
// validates the result. When crossBorder is omitted it is derived from the
// jurisdictions: any non-US code makes the deal cross-border.
func Decode(data []byte) (domain.Intake, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return domain.Intake{}, &FieldError{Message: fmt.Sprintf("parse: %v", err)}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	// yaml reads an unquoted closeDate as a timestamp.
	if t, ok := raw["closeDate"].(time.Time); ok {
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			raw["closeDate"] = t.Format(time.DateOnly)
		} else {
			raw["closeDate"] = t.Format(time.RFC3339Nano)
		}
	}
	for k, v := range defaults() {
		if cur, ok := raw[k]; !ok || cur == nil {
			raw[k] = v
		}
	}
	if _, ok := raw["crossBorder"]; !ok {
		raw["crossBorder"] = deriveCrossBorder(raw["jurisdictions"])
	}

	// Round-trip through JSON so the validator sees JSON value types.
	buf, err := json.Marshal(raw)
	if err != nil {
		return domain.Intake{}, &FieldError{Message: fmt.Sprintf("encode: %v", err)}
	}
	var doc any
	if err := json.Unmarshal(buf, &doc); err != nil {
		return domain.Intake{}, &FieldError{Message: fmt.Sprintf("encode: %v", err)}
	}
	if err := schema.Validate(doc); err != nil {
		return domain.Intake{}, schemaError(err)
	}

	var in domain.Intake
	if err := json.Unmarshal(buf, &in); err != nil {
		return domain.Intake{}, &FieldError{Message: fmt.Sprintf("decode: %v", err)}
	}
	return Normalize(in)
}

// Load reads and decodes an intake file.
func Load(path string) (domain.Intake, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Intake{}, fmt.Errorf("read intake: %w", err)
	}
	return Decode(data)
}

// Normalize trims text fields, fills zero-valued enums, de-duplicates
// jurisdictions and checks what the schema cannot express. Typed callers
// such as the HTTP API use it directly.
func Normalize(in domain.Intake) (domain.Intake, error) {
	in.DealName = strings.TrimSpace(in.DealName)
	if in.DealName == "" {
		return in, &FieldError{Field: "dealName", Message: "deal name is required"}
	}
	if in.DealStructure == "" {
		in.DealStructure = domain.StructureStockPurchase
	}
	if in.IntegrationModel == "" {
		in.IntegrationModel = domain.IntegrationFull
	}
	if in.TSARequired == "" {
		in.TSARequired = domain.TSATBD
	}
	if in.TargetEntities == 0 {
		in.TargetEntities = 1
	}
	if _, ok := domain.StructureLabels[in.DealStructure]; !ok {
		return in, &FieldError{Field: "dealStructure", Message: fmt.Sprintf("unknown structure %q", in.DealStructure)}
	}
	if _, ok := domain.IntegrationLabels[in.IntegrationModel]; !ok {
		return in, &FieldError{Field: "integrationModel", Message: fmt.Sprintf("unknown integration model %q", in.IntegrationModel)}
	}
	switch in.TSARequired {
	case domain.TSAYes, domain.TSANo, domain.TSATBD:
	default:
		return in, &FieldError{Field: "tsaRequired", Message: fmt.Sprintf("must be yes, no or tbd, got %q", in.TSARequired)}
	}
	in.CloseDate = strings.TrimSpace(in.CloseDate)
	if !engine.ValidDate(in.CloseDate) {
		return in, &FieldError{Field: "closeDate", Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", in.CloseDate)}
	}
	if in.TargetEntities < 0 {
		return in, &FieldError{Field: "targetEntities", Message: "must be positive"}
	}
	seen := map[string]bool{}
	js := []string{}
	for _, j := range in.Jurisdictions {
		j = strings.ToUpper(strings.TrimSpace(j))
		if j == "" || seen[j] {
			continue
		}
		seen[j] = true
		js = append(js, j)
	}
	sort.Strings(js)
	in.Jurisdictions = js
	return in, nil
}

func deriveCrossBorder(v any) bool {
	list, ok := v.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if s, ok := item.(string); ok && !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(s)), "US") {
			return true
		}
	}
	return false
}

func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &FieldError{Message: err.Error()}
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return &FieldError{
		Field:   strings.TrimPrefix(ve.InstanceLocation, "/"),
		Message: ve.Message,
	}
}
