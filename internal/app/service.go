// Package app hosts stored plans: it generates and persists them, applies
// task and risk mutations, and recomputes the progress views on every read.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dealplan/internal/domain"
	"dealplan/internal/engine"
	"dealplan/internal/events"
	"dealplan/internal/intake"
	"dealplan/internal/repo"
)

type Service struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Engine engine.Engine
	Log    *slog.Logger
	Now    func() time.Time
}

func New(conn *sql.DB, driver string, eng engine.Engine, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return Service{
		DB:     conn,
		Repo:   repo.Repo{DB: conn, Driver: driver},
		Events: events.Writer{Driver: driver},
		Engine: eng,
		Log:    log,
		Now:    time.Now,
	}
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Service) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// Generate validates the intake, builds a plan and stores it.
func (s Service) Generate(ctx context.Context, in domain.Intake, actorID string) (domain.Plan, error) {
	in, err := intake.Normalize(in)
	if err != nil {
		var fe *intake.FieldError
		if errors.As(err, &fe) {
			return domain.Plan{}, &ValidationError{Field: fe.Field, Message: fe.Message}
		}
		return domain.Plan{}, err
	}
	plan := s.Engine.Generate(in)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Plan{}, err
	}
	defer tx.Rollback()
	if err := s.Repo.InsertPlan(ctx, tx, plan, s.stamp()); err != nil {
		return domain.Plan{}, fmt.Errorf("insert plan: %w", err)
	}
	active := 0
	for _, t := range plan.Tasks {
		if t.Status != domain.StatusNotApplicable {
			active++
		}
	}
	if err := s.Events.Append(ctx, tx, events.PlanGenerated, plan.ID, events.KindPlan, plan.ID, actorID, events.EventPayload{
		"deal_name":    in.DealName,
		"tasks":        len(plan.Tasks),
		"active_tasks": active,
		"risk_alerts":  len(plan.RiskAlerts),
	}); err != nil {
		return domain.Plan{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Plan{}, err
	}
	s.log().Info("plan generated", "plan_id", plan.ID, "deal", in.DealName, "tasks", len(plan.Tasks), "active", active, "alerts", len(plan.RiskAlerts))
	return plan, nil
}

func (s Service) GetPlan(ctx context.Context, id string) (domain.Plan, error) {
	return s.Repo.GetPlan(ctx, id)
}

func (s Service) ListPlans(ctx context.Context, limit int) ([]domain.PlanHeader, error) {
	return s.Repo.ListPlans(ctx, limit)
}

func (s Service) DeletePlan(ctx context.Context, id string) error {
	if err := s.Repo.DeletePlan(ctx, id); err != nil {
		return err
	}
	s.log().Info("plan deleted", "plan_id", id)
	return nil
}

// Health is the plan-level progress view.
type Health struct {
	KPIs domain.KPIs `json:"kpis"`
	RAG  domain.RAG  `json:"rag"`
	// Open alerts by severity, counted over alerts still in the open state.
	OpenRisks     int `json:"openRisks"`
	CriticalRisks int `json:"criticalRisks"`
}

func HealthOf(p domain.Plan) Health {
	k, rag := engine.Health(p.Tasks, p.RiskAlerts)
	h := Health{KPIs: k, RAG: rag}
	for _, a := range p.RiskAlerts {
		if a.Status != domain.RiskOpen {
			continue
		}
		h.OpenRisks++
		if a.Severity == domain.SeverityCritical {
			h.CriticalRisks++
		}
	}
	return h
}

func (s Service) Health(ctx context.Context, planID string) (Health, error) {
	p, err := s.Repo.GetPlan(ctx, planID)
	if err != nil {
		return Health{}, err
	}
	return HealthOf(p), nil
}

func (s Service) Categories(ctx context.Context, planID string) ([]domain.CategoryStats, error) {
	p, err := s.Repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return engine.CategoryBreakdown(p.Tasks), nil
}

func (s Service) LatestEvents(ctx context.Context, f repo.EventFilters) ([]domain.Event, error) {
	return s.Repo.LatestEvents(ctx, f)
}

// mutate loads a plan inside a transaction, applies fn and stores the result.
func (s Service) mutate(ctx context.Context, planID string, fn func(tx *sql.Tx, p *domain.Plan) error) (domain.Plan, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Plan{}, err
	}
	defer tx.Rollback()
	p, err := s.Repo.GetPlanTx(ctx, tx, planID)
	if err != nil {
		return domain.Plan{}, err
	}
	if err := fn(tx, &p); err != nil {
		return domain.Plan{}, err
	}
	if err := s.Repo.UpdatePlan(ctx, tx, p, s.stamp()); err != nil {
		return domain.Plan{}, fmt.Errorf("update plan: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Plan{}, err
	}
	return p, nil
}

// findTask accepts either the instance id or the catalog item id.
func findTask(p *domain.Plan, ref string) (*domain.TaskInstance, error) {
	for i := range p.Tasks {
		if p.Tasks[i].ID == ref || p.Tasks[i].ItemID == ref {
			return &p.Tasks[i], nil
		}
	}
	return nil, fmt.Errorf("task %s: %w", ref, repo.ErrNotFound)
}

func findRisk(p *domain.Plan, ref string) (*domain.RiskAlert, error) {
	for i := range p.RiskAlerts {
		if p.RiskAlerts[i].ID == ref || string(p.RiskAlerts[i].Category) == ref {
			return &p.RiskAlerts[i], nil
		}
	}
	return nil, fmt.Errorf("risk %s: %w", ref, repo.ErrNotFound)
}

// TaskUpdateOptions are parameters for updating a task instance. Nil fields
// are left untouched; an empty Assign clears the owner.
type TaskUpdateOptions struct {
	PlanID        string
	TaskID        string
	Status        domain.TaskStatus
	BlockedReason string
	Assign        *string
	AddNote       string
	ActorID       string
}

// UpdateTask applies status, owner and note changes to one task instance.
// Blocking requires a reason; leaving blocked clears it.
func (s Service) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.TaskInstance, error) {
	if opts.Status != "" && !opts.Status.Valid() {
		return domain.TaskInstance{}, invalid("status", "unknown task status %q", opts.Status)
	}
	reason := strings.TrimSpace(opts.BlockedReason)
	if opts.Status == domain.StatusBlocked && reason == "" {
		return domain.TaskInstance{}, invalid("blockedReason", "a reason is required to block a task")
	}
	note := strings.TrimSpace(opts.AddNote)
	if opts.Status == "" && opts.Assign == nil && note == "" {
		return domain.TaskInstance{}, invalid("task", "nothing to update")
	}

	var updated domain.TaskInstance
	_, err := s.mutate(ctx, opts.PlanID, func(tx *sql.Tx, p *domain.Plan) error {
		t, err := findTask(p, opts.TaskID)
		if err != nil {
			return err
		}
		payload := events.EventPayload{"item_id": t.ItemID}
		if opts.Status != "" {
			payload["from_status"] = t.Status
			payload["to_status"] = opts.Status
			t.Status = opts.Status
			if opts.Status == domain.StatusBlocked {
				t.BlockedReason = &reason
				payload["blocked_reason"] = reason
			} else {
				t.BlockedReason = nil
			}
		}
		if opts.Assign != nil {
			owner := strings.TrimSpace(*opts.Assign)
			if owner == "" {
				t.OwnerID = nil
			} else {
				t.OwnerID = &owner
			}
			payload["owner"] = owner
		}
		if note != "" {
			t.Notes = append(t.Notes, note)
			payload["note"] = note
		}
		updated = *t
		return s.Events.Append(ctx, tx, events.TaskUpdated, p.ID, events.KindTask, t.ID, opts.ActorID, payload)
	})
	if err != nil {
		return domain.TaskInstance{}, err
	}
	s.log().Info("task updated", "plan_id", opts.PlanID, "task", updated.ItemID, "status", updated.Status)
	return updated, nil
}

func (s Service) SetTaskStatus(ctx context.Context, planID, taskID string, status domain.TaskStatus, blockedReason, actorID string) (domain.TaskInstance, error) {
	if status == "" {
		return domain.TaskInstance{}, invalid("status", "status is required")
	}
	return s.UpdateTask(ctx, TaskUpdateOptions{PlanID: planID, TaskID: taskID, Status: status, BlockedReason: blockedReason, ActorID: actorID})
}

func (s Service) AssignOwner(ctx context.Context, planID, taskID, owner, actorID string) (domain.TaskInstance, error) {
	return s.UpdateTask(ctx, TaskUpdateOptions{PlanID: planID, TaskID: taskID, Assign: &owner, ActorID: actorID})
}

func (s Service) AddNote(ctx context.Context, planID, taskID, note, actorID string) (domain.TaskInstance, error) {
	if strings.TrimSpace(note) == "" {
		return domain.TaskInstance{}, invalid("note", "note is empty")
	}
	return s.UpdateTask(ctx, TaskUpdateOptions{PlanID: planID, TaskID: taskID, AddNote: note, ActorID: actorID})
}

const (
	FieldSeverity = "severity"
	FieldStatus   = "status"
)

// RiskOverrideOptions change one field of a risk alert with an audited reason.
type RiskOverrideOptions struct {
	PlanID  string
	RiskID  string
	Field   string
	Value   string
	Reason  string
	ActorID string
}

// OverrideRisk sets an alert's severity or status and appends an audit
// record. The reason is mandatory; alerts are never removed.
func (s Service) OverrideRisk(ctx context.Context, opts RiskOverrideOptions) (domain.RiskAlert, error) {
	reason := strings.TrimSpace(opts.Reason)
	if reason == "" {
		return domain.RiskAlert{}, invalid("reason", "an override reason is required")
	}
	switch opts.Field {
	case FieldSeverity:
		if !domain.Severity(opts.Value).Valid() {
			return domain.RiskAlert{}, invalid("value", "unknown severity %q", opts.Value)
		}
	case FieldStatus:
		if !domain.RiskStatus(opts.Value).Valid() {
			return domain.RiskAlert{}, invalid("value", "unknown risk status %q", opts.Value)
		}
	default:
		return domain.RiskAlert{}, invalid("field", "only severity or status can be overridden, got %q", opts.Field)
	}

	var updated domain.RiskAlert
	_, err := s.mutate(ctx, opts.PlanID, func(tx *sql.Tx, p *domain.Plan) error {
		a, err := findRisk(p, opts.RiskID)
		if err != nil {
			return err
		}
		rec := domain.OverrideRecord{
			Timestamp: s.stamp(),
			Field:     opts.Field,
			To:        opts.Value,
			Reason:    reason,
			ActorID:   opts.ActorID,
		}
		if opts.Field == FieldSeverity {
			rec.From = string(a.Severity)
			a.Severity = domain.Severity(opts.Value)
		} else {
			rec.From = string(a.Status)
			a.Status = domain.RiskStatus(opts.Value)
		}
		a.Overrides = append(a.Overrides, rec)
		updated = *a
		evt := events.RiskOverridden
		if opts.Field == FieldStatus {
			evt = events.RiskTransitioned
		}
		return s.Events.Append(ctx, tx, evt, p.ID, events.KindRisk, a.ID, opts.ActorID, events.EventPayload{
			"category": a.Category,
			"field":    rec.Field,
			"from":     rec.From,
			"to":       rec.To,
			"reason":   rec.Reason,
		})
	})
	if err != nil {
		return domain.RiskAlert{}, err
	}
	s.log().Info("risk overridden", "plan_id", opts.PlanID, "risk", updated.Category, "field", opts.Field, "to", opts.Value)
	return updated, nil
}

// TransitionRisk moves an alert to another status. Any status may follow
// any other; the change is audited like an override.
func (s Service) TransitionRisk(ctx context.Context, planID, riskID string, status domain.RiskStatus, reason, actorID string) (domain.RiskAlert, error) {
	return s.OverrideRisk(ctx, RiskOverrideOptions{
		PlanID:  planID,
		RiskID:  riskID,
		Field:   FieldStatus,
		Value:   string(status),
		Reason:  reason,
		ActorID: actorID,
	})
}
