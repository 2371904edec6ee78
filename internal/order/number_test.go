package order_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/artisansalley/backend/internal/order"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-\d{14}-[A-Z0-9]{6}$`)

func TestGenerateOrderNumber_Format(t *testing.T) {
	for i := 0; i < 100; i++ {
		number := order.GenerateOrderNumber()
		assert.Regexp(t, orderNumberPattern, number)
	}
}

func TestGenerateOrderNumber_Distinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		number := order.GenerateOrderNumber()
		assert.False(t, seen[number], "duplicate order number %s", number)
		seen[number] = true
	}
}
