// Package tx carries a database/sql transaction through a context so that
// several store calls can share it.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx returns ctx carrying t. A nil t leaves ctx unchanged.
func WithTx(ctx context.Context, t *sql.Tx) context.Context {
	if t == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, t)
}

// From returns the transaction carried by ctx.
func From(ctx context.Context) (*sql.Tx, bool) {
	t, ok := ctx.Value(txKey).(*sql.Tx)
	return t, ok
}
