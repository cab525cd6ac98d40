package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "kidshive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDBRejectsUnknownDriver(t *testing.T) {
	_, err := NewDB(context.Background(), "oracle", "x")
	require.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, db.Migrate(context.Background()))
	assert.True(t, db.Healthy(context.Background()))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_foreign_keys=on&_busy_timeout=5000", sqliteDSN("a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_foreign_keys=on&_busy_timeout=5000", sqliteDSN("file:a.db?mode=rwc"))
	assert.Equal(t, "a.db?_fk=1", sqliteDSN("a.db?_fk=1"))
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	boom := errors.New("boom")
	err := RunInTx(ctx, db.Client, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO children (id, name, created_at, updated_at) VALUES ($1, $2, $3, $3)`, "c1", "Ada", now); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.Client.QueryRowContext(ctx, `SELECT COUNT(*) FROM children`).Scan(&n))
	assert.Zero(t, n)

	err = RunInTx(ctx, db.Client, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO children (id, name, created_at, updated_at) VALUES ($1, $2, $3, $3)`, "c1", "Ada", now)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, db.Client.QueryRowContext(ctx, `SELECT COUNT(*) FROM children`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestGormSharesPool(t *testing.T) {
	db := openSQLite(t)
	gdb, err := db.Gorm(0)
	require.NoError(t, err)

	var n int64
	require.NoError(t, gdb.Table("children").Count(&n).Error)
	assert.Zero(t, n)
}

func TestRedisHealthy(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(mr.Addr())
	t.Cleanup(func() { _ = r.Close() })
	assert.True(t, r.Healthy(context.Background()))

	var none *Redis
	assert.False(t, none.Healthy(context.Background()))
	assert.Nil(t, NewRedis(""))
}
