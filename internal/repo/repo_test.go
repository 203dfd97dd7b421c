package repo_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealplan/internal/db"
	"dealplan/internal/domain"
	"dealplan/internal/events"
	"dealplan/internal/migrate"
	"dealplan/internal/repo"
)

func openSQLite(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn, db.DriverSQLite))
	return repo.Repo{DB: conn, Driver: db.DriverSQLite}
}

func samplePlan(id, name string) domain.Plan {
	note := "2026-06-01"
	return domain.Plan{
		ID:     id,
		Intake: domain.Intake{DealName: name, DealStructure: domain.StructureCarveOut, Jurisdictions: []string{"US", "UK"}},
		Tasks: []domain.TaskInstance{{
			ID: "t1", ItemID: "FRC-0001", Category: "TSA Assessment & Exit", Phase: domain.PhaseDay1,
			MilestoneDate: &note, Priority: domain.PriorityCritical, Status: domain.StatusNotStarted,
			Dependencies: []string{}, RiskIndicators: []domain.RiskCategory{domain.RiskTSADependency}, Notes: []string{},
		}},
		RiskAlerts:        []domain.RiskAlert{{ID: "r1", Category: domain.RiskStrandedCosts, Severity: domain.SeverityMedium, Status: domain.RiskOpen, AffectedCategories: []string{}}},
		CategorySummaries: []domain.CategorySummary{},
		Milestones:        []domain.Milestone{},
		GeneratedAt:       "2026-01-02T03:04:05Z",
	}
}

func insert(t *testing.T, r repo.Repo, p domain.Plan, now string) {
	t.Helper()
	ctx := context.Background()
	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, r.InsertPlan(ctx, tx, p, now))
	require.NoError(t, tx.Commit())
}

func TestPlanRoundTrip(t *testing.T) {
	r := openSQLite(t)
	ctx := context.Background()
	p := samplePlan("p1", "Acme")
	insert(t, r, p, "2026-01-02T03:04:05Z")

	got, err := r.GetPlan(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = r.GetPlan(ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestUpdatePlan(t *testing.T) {
	r := openSQLite(t)
	ctx := context.Background()
	p := samplePlan("p1", "Acme")
	insert(t, r, p, "2026-01-02T03:04:05Z")

	p.Tasks[0].Status = domain.StatusBlocked
	reason := "waiting on seller"
	p.Tasks[0].BlockedReason = &reason
	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, r.UpdatePlan(ctx, tx, p, "2026-01-03T00:00:00Z"))
	require.NoError(t, tx.Commit())

	got, err := r.GetPlan(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBlocked, got.Tasks[0].Status)
	require.NotNil(t, got.Tasks[0].BlockedReason)
	assert.Equal(t, reason, *got.Tasks[0].BlockedReason)

	headers, err := r.ListPlans(ctx, 0)
	require.NoError(t, err)
	require.Len(t, headers, 1)
	assert.Equal(t, "2026-01-03T00:00:00Z", headers[0].UpdatedAt)

	tx, err = r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	assert.ErrorIs(t, r.UpdatePlan(ctx, tx, samplePlan("nope", "x"), "2026-01-03T00:00:00Z"), repo.ErrNotFound)
}

func TestListAndDeletePlans(t *testing.T) {
	r := openSQLite(t)
	ctx := context.Background()
	insert(t, r, samplePlan("p1", "First"), "2026-01-01T00:00:00Z")
	insert(t, r, samplePlan("p2", "Second"), "2026-01-02T00:00:00Z")

	headers, err := r.ListPlans(ctx, 0)
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, "Second", headers[0].Name)

	limited, err := r.ListPlans(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, r.DeletePlan(ctx, "p1"))
	assert.ErrorIs(t, r.DeletePlan(ctx, "p1"), repo.ErrNotFound)
}

func TestEvents(t *testing.T) {
	r := openSQLite(t)
	ctx := context.Background()
	insert(t, r, samplePlan("p1", "Acme"), "2026-01-01T00:00:00Z")

	w := events.Writer{Driver: db.DriverSQLite}
	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, w.Append(ctx, tx, events.PlanGenerated, "p1", events.KindPlan, "p1", "", nil))
	require.NoError(t, w.Append(ctx, tx, events.RiskOverridden, "p1", events.KindRisk, "r1", "ana", events.EventPayload{"field": "status"}))
	require.NoError(t, tx.Commit())

	latest, err := r.LatestEvents(ctx, repo.EventFilters{PlanID: "p1"})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, events.RiskOverridden, latest[0].Type)
	assert.Equal(t, "ana", latest[0].ActorID)
	assert.JSONEq(t, `{"field":"status"}`, latest[0].Payload)
	assert.Equal(t, events.DefaultActorID, latest[1].ActorID)

	byKind, err := r.LatestEvents(ctx, repo.EventFilters{EntityKind: events.KindRisk})
	require.NoError(t, err)
	assert.Len(t, byKind, 1)

	after, err := r.EventsAfter(ctx, 10, latest[1].ID, "p1")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "r1", after[0].EntityID)
}

func TestGetPlanTxSeesUncommittedWrite(t *testing.T) {
	r := openSQLite(t)
	ctx := context.Background()
	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, r.InsertPlan(ctx, tx, samplePlan("p1", "Acme"), "2026-01-01T00:00:00Z"))
	got, err := r.GetPlanTx(ctx, tx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Intake.DealName)
	_, err = r.GetPlanTx(ctx, tx, "p2")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.NotErrorIs(t, err, sql.ErrNoRows)
}
