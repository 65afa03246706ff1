package checkpoint

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/cache/inmemory"
)

func TestStore_InitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cache := inmemory.NewCache()
	s := NewStore(cache)

	_, ok, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, ok)

	cp, err := s.Initialize(ctx, "job-1", 60, 25)
	require.NoError(t, err)
	assert.Equal(t, 3, cp.TotalBatches)

	_, err = s.IncrementProcessed(ctx, "job-1", 25)
	require.NoError(t, err)

	again, err := s.Initialize(ctx, "job-1", 999, 1)
	require.NoError(t, err)
	assert.Equal(t, 60, again.TotalUnits, "second Initialize must not reset progress")
	assert.Equal(t, 25, again.ProcessedCount)
}

func TestStore_IncrementProcessedClampsToTotal(t *testing.T) {
	ctx := context.Background()
	s := NewStore(inmemory.NewCache())
	_, err := s.Initialize(ctx, "job-1", 30, 25)
	require.NoError(t, err)

	n, err := s.IncrementProcessed(ctx, "job-1", 25)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	n, err = s.IncrementProcessed(ctx, "job-1", 25)
	require.NoError(t, err)
	assert.Equal(t, 30, n)
}

func TestStore_IncrementProcessedRequiresCheckpoint(t *testing.T) {
	s := NewStore(inmemory.NewCache())
	_, err := s.IncrementProcessed(context.Background(), "job-1", 1)
	assert.Error(t, err)
}

func TestStore_StopFlagAndClear(t *testing.T) {
	ctx := context.Background()
	cache := inmemory.NewCache()
	s := NewStore(cache)

	_, err := s.Initialize(ctx, "job-1", 2, 25)
	require.NoError(t, err)
	require.NoError(t, s.SaveUnits(ctx, "job-1", []model.ImportUnit{{Doc: model.Document{"a": "1"}, RowIndexes: []int{2}}}))
	require.NoError(t, s.SetStop(ctx, "job-1"))

	stopped, err := s.IsStopped(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, stopped)

	other, err := s.IsStopped(ctx, "job-2")
	require.NoError(t, err)
	assert.False(t, other, "stop flags are per job")

	require.NoError(t, s.Clear(ctx, "job-1"))
	assert.Equal(t, 0, cache.Len())
	stopped, err = s.IsStopped(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, stopped)
}

func TestStore_UnitsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(inmemory.NewCache())

	_, ok, err := s.LoadUnits(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveUnits(ctx, "job-1", nil))
	units, ok, err := s.LoadUnits(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, ok, "an empty unit list is still a cached parse")
	assert.Empty(t, units)

	require.NoError(t, s.SaveUnits(ctx, "job-1", []model.ImportUnit{
		{Doc: model.Document{"customer_name": "Acme"}, RowIndexes: []int{2, 3}},
	}))
	units, ok, err = s.LoadUnits(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, units, 1)
	assert.Equal(t, "Acme", units[0].Doc["customer_name"])
	assert.Equal(t, []int{2, 3}, units[0].RowIndexes)
}

type failingCache struct{ mock.Mock }

func (c *failingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := c.Called(key)
	return nil, false, args.Error(0)
}
func (c *failingCache) Set(ctx context.Context, key string, value []byte) error {
	return c.Called(key).Error(0)
}
func (c *failingCache) Delete(ctx context.Context, keys ...string) error {
	return c.Called(keys).Error(0)
}

func TestStore_WrapsCacheErrors(t *testing.T) {
	cache := &failingCache{}
	cache.On("Get", "data_import:job-1:stop").Return(errors.New("connection reset"))
	s := NewStore(cache)

	_, err := s.IsStopped(context.Background(), "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	cache.AssertExpectations(t)
}
