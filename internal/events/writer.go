package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"dealplan/internal/db"
)

const (
	PlanGenerated    = "plan.generated"
	TaskUpdated      = "task.updated"
	RiskTransitioned = "risk.transitioned"
	RiskOverridden   = "risk.overridden"
	KindPlan         = "plan"
	KindTask         = "task"
	KindRisk         = "risk"
	DefaultActorID   = "local-user"
)

type Writer struct {
	Driver string
	Now    func() time.Time
}

type EventPayload map[string]any

// Append records one event inside the caller's transaction.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, planID, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	if actorID == "" {
		actorID = DefaultActorID
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, db.Rebind(w.Driver, `INSERT INTO events(ts,type,plan_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`),
		ts, evtType, nullable(planID), entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
