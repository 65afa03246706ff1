// Package sql implements port.Cache on the import_cache table, so that
// checkpoints survive restarts and are shared by every worker process.
package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	gormadapter "github.com/tigerroll/surfin-import/pkg/importer/adapter/database/gorm"
	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
)

// CacheEntryEntity is one key of the cache.
type CacheEntryEntity struct {
	Key       string    `gorm:"column:cache_key;primaryKey"`
	Value     []byte    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (CacheEntryEntity) TableName() string {
	return "import_cache"
}

// Cache stores entries in the database.
type Cache struct {
	db *gorm.DB
}

// NewCache creates a Cache on db.
func NewCache(db *gorm.DB) *Cache {
	return &Cache{db: db}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const op = "SQLCache.Get"
	var entity CacheEntryEntity
	err := gormadapter.DBFromContext(ctx, c.db).Where("cache_key = ?", key).Take(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, exception.NewImportError(op, fmt.Sprintf("failed to read cache key '%s'", key), err)
	}
	if entity.Value == nil {
		entity.Value = []byte{}
	}
	return entity.Value, true, nil
}

// Set inserts or replaces the value of key.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	const op = "SQLCache.Set"
	if value == nil {
		value = []byte{}
	}
	entity := &CacheEntryEntity{Key: key, Value: value, UpdatedAt: time.Now()}
	err := gormadapter.DBFromContext(ctx, c.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(entity).Error
	if err != nil {
		return exception.NewImportError(op, fmt.Sprintf("failed to write cache key '%s'", key), err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	const op = "SQLCache.Delete"
	if len(keys) == 0 {
		return nil
	}
	err := gormadapter.DBFromContext(ctx, c.db).Where("cache_key IN ?", keys).Delete(&CacheEntryEntity{}).Error
	if err != nil {
		return exception.NewImportError(op, fmt.Sprintf("failed to delete %d cache keys", len(keys)), err)
	}
	return nil
}

var _ port.Cache = (*Cache)(nil)
