// Package catalog holds the static master list of task templates.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"dealplan/internal/domain"
)

//go:embed catalog.yml
var masterYAML []byte

// ReservedTSAOrdinal is the highest template ordinal in the range reserved for
// the TSA Assessment & Exit category.
const ReservedTSAOrdinal = 70

// Catalog is an immutable, ordered set of task templates.
type Catalog struct {
	templates []domain.TaskTemplate
	byID      map[string]int
}

var master = mustLoad(masterYAML)

// Master returns the compiled-in catalog.
func Master() *Catalog {
	return master
}

func mustLoad(data []byte) *Catalog {
	c, err := FromYAML(data)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded master list invalid: %v", err))
	}
	return c
}

// FromYAML parses and validates a catalog document.
func FromYAML(data []byte) (*Catalog, error) {
	var items []domain.TaskTemplate
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("invalid catalog yaml: %w", err)
	}
	return New(items)
}

// New builds a catalog from templates, preserving their order.
func New(items []domain.TaskTemplate) (*Catalog, error) {
	c := &Catalog{
		templates: make([]domain.TaskTemplate, 0, len(items)),
		byID:      make(map[string]int, len(items)),
	}
	for _, t := range items {
		if t.ItemID == "" {
			return nil, fmt.Errorf("template with empty id")
		}
		if _, dup := c.byID[t.ItemID]; dup {
			return nil, fmt.Errorf("duplicate template id %s", t.ItemID)
		}
		if t.Category == "" {
			return nil, fmt.Errorf("template %s has empty category", t.ItemID)
		}
		if t.Priority.Rank() == 0 {
			return nil, fmt.Errorf("template %s has invalid priority %q", t.ItemID, t.Priority)
		}
		if !validPhase(t.Phase) {
			return nil, fmt.Errorf("template %s has invalid phase %q", t.ItemID, t.Phase)
		}
		if t.Dependencies == nil {
			t.Dependencies = []string{}
		}
		if t.RiskIndicators == nil {
			t.RiskIndicators = []domain.RiskCategory{}
		}
		c.byID[t.ItemID] = len(c.templates)
		c.templates = append(c.templates, t)
	}
	return c, nil
}

func validPhase(p domain.Phase) bool {
	for _, known := range domain.Phases {
		if p == known {
			return true
		}
	}
	return false
}

// Templates returns a copy of the templates in catalog order.
func (c *Catalog) Templates() []domain.TaskTemplate {
	out := make([]domain.TaskTemplate, len(c.templates))
	copy(out, c.templates)
	return out
}

func (c *Catalog) Len() int { return len(c.templates) }

func (c *Catalog) Get(id string) (domain.TaskTemplate, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.TaskTemplate{}, false
	}
	return c.templates[i], true
}

// Categories returns category names in first-seen catalog order.
func (c *Catalog) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range c.templates {
		if !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}
	return out
}

// DanglingDependency is a prerequisite id that names no template.
type DanglingDependency struct {
	ItemID     string `json:"itemId"`
	Dependency string `json:"dependency"`
}

// DanglingDependencies reports prerequisite ids missing from the catalog.
// Prerequisites are advisory; nothing else consults this.
func (c *Catalog) DanglingDependencies() []DanglingDependency {
	var out []DanglingDependency
	for _, t := range c.templates {
		for _, dep := range t.Dependencies {
			if _, ok := c.byID[dep]; !ok {
				out = append(out, DanglingDependency{ItemID: t.ItemID, Dependency: dep})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

// Ordinal extracts the numeric suffix of a template id ("FRC-0070" -> 70).
func Ordinal(itemID string) (int, bool) {
	idx := strings.LastIndex(itemID, "-")
	digits := itemID[idx+1:]
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// InReservedTSARange reports whether the id's ordinal is within 1..70.
func InReservedTSARange(itemID string) bool {
	n, ok := Ordinal(itemID)
	return ok && n <= ReservedTSAOrdinal
}
