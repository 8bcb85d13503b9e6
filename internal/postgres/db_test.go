package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaDeclaresTables(t *testing.T) {
	s := Schema()
	for _, table := range []string{"products", "orders", "order_items", "reservations"} {
		assert.Contains(t, s, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, s, "UNIQUE (order_id, product_id)")
}
