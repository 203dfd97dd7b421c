package repo_test

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealplan/internal/db"
	"dealplan/internal/repo"
)

func mockRepo(t *testing.T) (repo.Repo, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return repo.Repo{DB: conn, Driver: db.DriverPostgres}, mock
}

func TestPostgresGetPlan(t *testing.T) {
	r, mock := mockRepo(t)
	ctx := context.Background()
	p := samplePlan("p1", "Acme")
	data, err := json.Marshal(p)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM plans WHERE id=$1`)).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))
	got, err := r.GetPlan(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM plans WHERE id=$1`)).
		WithArgs("p2").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))
	_, err = r.GetPlan(ctx, "p2")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertPlan(t *testing.T) {
	r, mock := mockRepo(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO plans(id,name,data,created_at,updated_at) VALUES ($1,$2,$3,$4,$5)`)).
		WithArgs("p1", "Acme", sqlmock.AnyArg(), "2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, r.InsertPlan(ctx, tx, samplePlan("p1", "Acme"), "2026-01-01T00:00:00Z"))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateMissingPlan(t *testing.T) {
	r, mock := mockRepo(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE plans SET name=$1,data=$2,updated_at=$3 WHERE id=$4`)).
		WithArgs("Acme", sqlmock.AnyArg(), "2026-01-02T00:00:00Z", "p1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, r.UpdatePlan(ctx, tx, samplePlan("p1", "Acme"), "2026-01-02T00:00:00Z"), repo.ErrNotFound)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListPlans(t *testing.T) {
	r, mock := mockRepo(t)
	rows := sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
		AddRow("p2", "Second", "2026-01-02T00:00:00Z", "2026-01-02T00:00:00Z").
		AddRow("p1", "First", "2026-01-01T00:00:00Z", "2026-01-03T00:00:00Z")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id,name,created_at,updated_at FROM plans ORDER BY created_at DESC, id DESC LIMIT $1`)).
		WithArgs(10).
		WillReturnRows(rows)

	headers, err := r.ListPlans(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, "p2", headers[0].ID)
	assert.Equal(t, "2026-01-03T00:00:00Z", headers[1].UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLatestEventsFilters(t *testing.T) {
	r, mock := mockRepo(t)
	rows := sqlmock.NewRows([]string{"id", "ts", "type", "plan_id", "entity_kind", "entity_id", "actor_id", "payload_json"}).
		AddRow(int64(7), "2026-01-01T00:00:00Z", "task.updated", "p1", "task", "t1", "ana", `{"status":"complete"}`)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id,ts,type,plan_id,entity_kind,entity_id,actor_id,payload_json FROM events WHERE 1=1 AND plan_id=$1 AND type=$2 ORDER BY id DESC LIMIT $3`)).
		WithArgs("p1", "task.updated", 50).
		WillReturnRows(rows)

	evts, err := r.LatestEvents(context.Background(), repo.EventFilters{PlanID: "p1", Type: "task.updated"})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, int64(7), evts[0].ID)
	assert.Equal(t, "t1", evts[0].EntityID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetPlanTxLocksRow(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	r := repo.Repo{DB: conn, Driver: db.DriverPostgres}
	ctx := context.Background()
	data, err := json.Marshal(samplePlan("p1", "Acme"))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT data FROM plans WHERE id=$1 FOR UPDATE`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))
	mock.ExpectExec(`UPDATE plans SET name=$1,data=$2,updated_at=$3 WHERE id=$4`).
		WithArgs("Acme", sqlmock.AnyArg(), "2026-01-02T00:00:00Z", "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT data FROM plans WHERE id=$1`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))

	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	p, err := r.GetPlanTx(ctx, tx, "p1")
	require.NoError(t, err)
	require.NoError(t, r.UpdatePlan(ctx, tx, p, "2026-01-02T00:00:00Z"))
	require.NoError(t, tx.Commit())

	_, err = r.GetPlan(ctx, "p1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
