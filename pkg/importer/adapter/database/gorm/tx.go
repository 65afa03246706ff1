package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
)

type txContextKey struct{}

// WithTx returns a context carrying tx. Repositories and writers that receive
// this context run their statements inside tx.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// DBFromContext returns the transaction stored in ctx, or db if there is none.
// The result is bound to ctx.
func DBFromContext(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// Transactor implements port.Transactor with gorm transactions.
type Transactor struct {
	db *gorm.DB
}

// NewTransactor creates a Transactor for db.
func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTransaction runs fn in a transaction. A nested call joins the outer transaction.
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
}

var _ port.Transactor = (*Transactor)(nil)
