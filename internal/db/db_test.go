package db_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealplan/internal/db"
)

func TestRebind(t *testing.T) {
	q := `UPDATE plans SET data=?,updated_at=? WHERE id=?`
	assert.Equal(t, q, db.Rebind(db.DriverSQLite, q))
	assert.Equal(t, `UPDATE plans SET data=$1,updated_at=$2 WHERE id=$3`, db.Rebind(db.DriverPostgres, q))
	assert.Equal(t, `SELECT 1`, db.Rebind(db.DriverPostgres, `SELECT 1`))
}

func TestOpenSQLiteCreatesWorkspace(t *testing.T) {
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Ping())

	_, err = os.Stat(filepath.Join(dir, ".dealplan"))
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".dealplan", "dealplan.db"), db.Path(dir))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := db.Open(db.Config{Driver: "mysql"})
	assert.Error(t, err)
	_, err = db.Open(db.Config{Driver: db.DriverPostgres})
	assert.Error(t, err)
}
