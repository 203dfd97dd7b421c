package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dealplan/internal/db"
	"dealplan/internal/domain"
)

type Repo struct {
	DB     *sql.DB
	Driver string
}

var ErrNotFound = errors.New("not found")

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) q(query string) string {
	return db.Rebind(r.Driver, query)
}

func decodePlan(data []byte) (domain.Plan, error) {
	var p domain.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode plan: %w", err)
	}
	return p, nil
}

// InsertPlan stores a new plan snapshot.
func (r Repo) InsertPlan(ctx context.Context, tx *sql.Tx, p domain.Plan, now string) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	_, err = tx.ExecContext(ctx, r.q(`INSERT INTO plans(id,name,data,created_at,updated_at) VALUES (?,?,?,?,?)`),
		p.ID, p.Intake.DealName, string(data), now, now)
	return err
}

// UpdatePlan replaces the stored snapshot of an existing plan.
func (r Repo) UpdatePlan(ctx context.Context, tx *sql.Tx, p domain.Plan, now string) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	res, err := tx.ExecContext(ctx, r.q(`UPDATE plans SET name=?,data=?,updated_at=? WHERE id=?`),
		p.Intake.DealName, string(data), now, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) getPlan(ctx context.Context, qr queryer, query, id string) (domain.Plan, error) {
	var data []byte
	err := qr.QueryRowContext(ctx, r.q(query), id).Scan(&data)
	if err == sql.ErrNoRows {
		return domain.Plan{}, ErrNotFound
	}
	if err != nil {
		return domain.Plan{}, err
	}
	return decodePlan(data)
}

const selectPlan = `SELECT data FROM plans WHERE id=?`

func (r Repo) GetPlan(ctx context.Context, id string) (domain.Plan, error) {
	return r.getPlan(ctx, r.DB, selectPlan, id)
}

// GetPlanTx reads a plan for update. On postgres the row stays locked until
// tx ends so concurrent mutations apply one after the other; sqlite runs on a
// single connection and is already serialized.
func (r Repo) GetPlanTx(ctx context.Context, tx *sql.Tx, id string) (domain.Plan, error) {
	query := selectPlan
	if r.Driver == db.DriverPostgres {
		query += ` FOR UPDATE`
	}
	return r.getPlan(ctx, tx, query, id)
}

// ListPlans returns plan headers, newest first.
func (r Repo) ListPlans(ctx context.Context, limit int) ([]domain.PlanHeader, error) {
	query := `SELECT id,name,created_at,updated_at FROM plans ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.PlanHeader{}
	for rows.Next() {
		var h domain.PlanHeader
		if err := rows.Scan(&h.ID, &h.Name, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

func (r Repo) DeletePlan(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, r.q(`DELETE FROM plans WHERE id=?`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type EventFilters struct {
	PlanID     string
	Type       string
	EntityKind string
	EntityID   string
	Cursor     int64
	Limit      int
}

// LatestEvents returns matching events newest first. A cursor pages
// backwards from the given event id.
func (r Repo) LatestEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if f.PlanID != "" {
		clauses = append(clauses, "plan_id=?")
		args = append(args, f.PlanID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,plan_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, f.Limit)
	return r.scanEvents(ctx, query, args)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, planID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if planID != "" {
		clauses = append(clauses, "plan_id=?")
		args = append(args, planID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,plan_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id ASC LIMIT ?`, where)
	args = append(args, limit)
	return r.scanEvents(ctx, query, args)
}

func (r Repo) scanEvents(ctx context.Context, query string, args []any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		var planID, entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &planID, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		e.PlanID = planID.String
		e.EntityID = entityID.String
		e.Payload = payload.String
		res = append(res, e)
	}
	return res, rows.Err()
}
