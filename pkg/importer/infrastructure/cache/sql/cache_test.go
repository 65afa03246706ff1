package sql_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/surfin-import/pkg/importer/adapter/database/migration"
	sqlcache "github.com/tigerroll/surfin-import/pkg/importer/infrastructure/cache/sql"
	"github.com/tigerroll/surfin-import/pkg/importer/core/checkpoint"
)

func newCache(t *testing.T) *sqlcache.Cache {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, migration.NewMigrator(db).Up(context.Background()))
	return sqlcache.NewCache(db)
}

func TestCache_SetGetDelete(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k1", []byte("one")))
	require.NoError(t, c.Set(ctx, "k1", []byte("uno")))
	require.NoError(t, c.Set(ctx, "k2", []byte("two")))

	v, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("uno"), v)

	require.NoError(t, c.Delete(ctx, "k1", "k2", "k3"))
	_, ok, err = c.Get(ctx, "k2")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, c.Delete(ctx))
}

func TestCache_BacksCheckpointStore(t *testing.T) {
	store := checkpoint.NewStore(newCache(t))
	ctx := context.Background()

	cp, err := store.Initialize(ctx, "job-1", 10, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, cp.TotalBatches)

	n, err := store.IncrementProcessed(ctx, "job-1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, store.SetStop(ctx, "job-1"))
	stopped, err := store.IsStopped(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, stopped)

	require.NoError(t, store.Clear(ctx, "job-1"))
	_, ok, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
