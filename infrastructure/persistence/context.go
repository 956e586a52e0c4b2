package persistence

import (
	"context"

	"gorm.io/gorm"
)

type (
	txKey          struct{}
	requestIDKey   struct{}
	aggregateIDKey struct{}
)

// TxFromContext retrieves the GORM transaction from context.
// Returns nil if no transaction is present.
func TxFromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return nil
}

// ContextWithTx returns a new context with the GORM transaction attached
func ContextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithAggregateID tags storage calls made while projecting one event.
func ContextWithAggregateID(ctx context.Context, aggregateID string) context.Context {
	if aggregateID == "" {
		return ctx
	}
	return context.WithValue(ctx, aggregateIDKey{}, aggregateID)
}

func AggregateIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(aggregateIDKey{}).(string)
	return id
}
