// Package export writes plans as CSV sheets for spreadsheet users.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"dealplan/internal/domain"
	"dealplan/internal/engine"
)

type Kind string

const (
	KindChecklist Kind = "checklist"
	KindRisks     Kind = "risks"
	KindSummary   Kind = "summary"
)

var Kinds = []Kind{KindChecklist, KindRisks, KindSummary}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown export kind %q (want checklist, risks or summary)", s)
}

// Write renders one sheet of the plan.
func Write(w io.Writer, kind Kind, p domain.Plan) error {
	switch kind {
	case KindChecklist:
		return Checklist(w, p)
	case KindRisks:
		return Risks(w, p)
	case KindSummary:
		return Summary(w, p)
	default:
		return fmt.Errorf("unknown export kind %q", kind)
	}
}

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	return cw
}

func flush(cw *csv.Writer) error {
	cw.Flush()
	return cw.Error()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func joinRisks(rs []domain.RiskCategory) string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = string(r)
	}
	return strings.Join(parts, "; ")
}

// Checklist lists active task instances only.
func Checklist(w io.Writer, p domain.Plan) error {
	cw := newWriter(w)
	_ = cw.Write([]string{"Item_ID", "Category", "Section", "Description", "Phase", "Priority", "Status", "Milestone_Date", "Owner", "TSA_Relevant", "Cross_Border", "Risk_Indicators"})
	for _, t := range p.Tasks {
		if t.Status == domain.StatusNotApplicable {
			continue
		}
		date, owner := "", ""
		if t.MilestoneDate != nil {
			date = *t.MilestoneDate
		}
		if t.OwnerID != nil {
			owner = *t.OwnerID
		}
		_ = cw.Write([]string{
			t.ItemID,
			t.Category,
			t.Section,
			t.Description,
			domain.Label(domain.PhaseLabels, t.Phase),
			string(t.Priority),
			strings.ReplaceAll(string(t.Status), "_", " "),
			date,
			owner,
			yesNo(t.TSARelevant),
			yesNo(t.CrossBorderOnly),
			joinRisks(t.RiskIndicators),
		})
	}
	return flush(cw)
}

// RiskID is the display id of the n-th alert, counting from zero.
func RiskID(n int) string {
	return fmt.Sprintf("RISK-%03d", n+1)
}

func Risks(w io.Writer, p domain.Plan) error {
	cw := newWriter(w)
	_ = cw.Write([]string{"Risk_ID", "Category", "Severity", "Status", "Description", "Mitigation", "Affected_Categories", "Overrides"})
	for i, r := range p.RiskAlerts {
		_ = cw.Write([]string{
			RiskID(i),
			strings.ReplaceAll(string(r.Category), "_", " "),
			string(r.Severity),
			string(r.Status),
			r.Description,
			r.Mitigation,
			strings.Join(r.AffectedCategories, "; "),
			strconv.Itoa(len(r.Overrides)),
		})
	}
	return flush(cw)
}

// Summary is a three-column sheet: deal profile, KPIs, milestones and
// generation metadata separated by blank rows.
func Summary(w io.Writer, p domain.Plan) error {
	in := p.Intake
	k := engine.ComputeKPIs(p.Tasks)
	open, critical := 0, 0
	for _, r := range p.RiskAlerts {
		if r.Status == domain.RiskOpen {
			open++
		}
		if r.Severity == domain.SeverityCritical {
			critical++
		}
	}
	closeDate := in.CloseDate
	if closeDate == "" {
		closeDate = "TBD"
	}
	crossBorder := "Domestic"
	if in.CrossBorder {
		crossBorder = strings.Join(in.Jurisdictions, "; ")
	}

	cw := newWriter(w)
	rows := [][]string{
		{"Section", "Field", "Value"},
		{"Deal Profile", "Deal Name", in.DealName},
		{"Deal Profile", "Structure", domain.Label(domain.StructureLabels, in.DealStructure)},
		{"Deal Profile", "Integration Model", domain.Label(domain.IntegrationLabels, in.IntegrationModel)},
		{"Deal Profile", "Close Date", closeDate},
		{"Deal Profile", "Cross-Border", crossBorder},
		{"Deal Profile", "TSA Required", strings.ToUpper(string(in.TSARequired))},
		{"Deal Profile", "Industry Sector", in.IndustrySector},
		{"Deal Profile", "Deal Value Range", in.DealValueRange},
		{"Deal Profile", "Target Entities", strconv.Itoa(in.TargetEntities)},
		{"Deal Profile", "Target GAAP", in.TargetGAAP},
		{"Deal Profile", "Target ERP", in.TargetERP},
		{"Deal Profile", "Buyer Maturity", in.BuyerMaturity},
		{},
		{"KPIs", "Total Active Items", strconv.Itoa(k.Total)},
		{"KPIs", "Completed", strconv.Itoa(k.Complete)},
		{"KPIs", "In Progress", strconv.Itoa(k.InProgress)},
		{"KPIs", "Blocked", strconv.Itoa(k.Blocked)},
		{"KPIs", "Not Started", strconv.Itoa(k.NotStarted)},
		{"KPIs", "% Complete", strconv.Itoa(k.PctComplete) + "%"},
		{"KPIs", "Health", strings.ToUpper(string(engine.PlanRAG(k, p.RiskAlerts)))},
		{"KPIs", "Open Risks", strconv.Itoa(open)},
		{"KPIs", "Critical Risks", strconv.Itoa(critical)},
		{},
		{"Milestones", "Phase", "Date"},
	}
	for _, m := range p.Milestones {
		rows = append(rows, []string{"Milestones", m.Label, m.Date})
	}
	rows = append(rows, []string{}, []string{"Meta", "Generated At", p.GeneratedAt})
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// Slug folds a deal name into a file-name-safe token: accents are dropped,
// runs of anything but ASCII letters and digits become one underscore.
func Slug(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range norm.NFKD.String(name) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore {
			b.WriteByte('_')
			underscore = true
		}
	}
	return b.String()
}

// FileName is <slug>_<kind>.csv.
func FileName(dealName string, kind Kind) string {
	return fmt.Sprintf("%s_%s.csv", Slug(dealName), kind)
}

// WriteFiles writes the given sheets into dir and returns the paths written.
func WriteFiles(dir string, p domain.Plan, kinds ...Kind) ([]string, error) {
	if len(kinds) == 0 {
		kinds = Kinds
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, kind := range kinds {
		path := filepath.Join(dir, FileName(p.Intake.DealName, kind))
		f, err := os.Create(path)
		if err != nil {
			return paths, err
		}
		if err := Write(f, kind, p); err != nil {
			f.Close()
			return paths, fmt.Errorf("write %s: %w", kind, err)
		}
		if err := f.Close(); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
