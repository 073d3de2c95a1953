package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	wrap := func(code string) error {
		return fmt.Errorf("update products: %w", &pgconn.PgError{Code: code})
	}

	assert.True(t, IsConflict(wrap("40001")))
	assert.True(t, IsConflict(wrap("40P01")))
	assert.False(t, IsConflict(wrap("23505")))
	assert.False(t, IsConflict(errors.New("40001")))

	assert.True(t, IsUniqueViolation(wrap("23505")))
	assert.True(t, IsCheckViolation(wrap("23514")))
	assert.True(t, IsNoRows(fmt.Errorf("load: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(nil))
}

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{"accounts", "follows", "stores", "products", "orders", "order_items", "outbox", "stock_movements"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}
