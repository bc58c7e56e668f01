package domain_test

import (
	"testing"

	"github.com/SscSPs/pfm_backend/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBalanceChanges(t *testing.T) {
	c := domain.BalanceChanges{}
	c.Add("b", decimal.NewFromInt(5))
	c.Add("a", decimal.NewFromInt(-3))
	c.Add("b", decimal.NewFromInt(2))

	assert.Equal(t, []string{"a", "b"}, c.AccountIDs())
	assert.True(t, decimal.NewFromInt(7).Equal(c["b"]))
	assert.True(t, decimal.NewFromInt(3).Equal(c.Inverse()["a"]))
	assert.True(t, c.Merge(c.Inverse()).IsZero())
	assert.NotContains(t, c.Without("a"), "a")
	assert.Contains(t, c, "a")
	assert.False(t, c.IsZero())
}
