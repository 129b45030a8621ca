package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecision_ZeroValueIsBlocked(t *testing.T) {
	var d Decision

	assert.False(t, d.Allowed())
	assert.Empty(t, d.Reason())
	_, ok := d.RetryAfter()
	assert.False(t, ok)
}

func TestAllow(t *testing.T) {
	d := Allow()

	assert.True(t, d.Allowed())
	assert.Empty(t, d.Reason())
	assert.Empty(t, d.UpgradeURL())
	_, ok := d.RetryAfter()
	assert.False(t, ok)
}

func TestBlockByPlan(t *testing.T) {
	d := BlockByPlan("https://upgrade.example")

	assert.False(t, d.Allowed())
	assert.Equal(t, ReasonPlan, d.Reason())
	assert.Equal(t, "https://upgrade.example", d.UpgradeURL())

	// A plan block never carries a wait.
	_, ok := d.RetryAfter()
	assert.False(t, ok)
}

func TestBlockByRate_WithRetryAfter(t *testing.T) {
	sec := 3600
	d := BlockByRate("https://upgrade.example", &sec)

	assert.False(t, d.Allowed())
	assert.Equal(t, ReasonRate, d.Reason())

	wait, ok := d.RetryAfter()
	assert.True(t, ok)
	assert.Equal(t, time.Hour, wait)

	raw, ok := d.RetryAfterSeconds()
	assert.True(t, ok)
	assert.Equal(t, 3600, raw)
}

func TestBlockByRate_UnknownWait(t *testing.T) {
	d := BlockByRate("https://upgrade.example", nil)

	assert.False(t, d.Allowed())
	assert.Equal(t, ReasonRate, d.Reason())

	_, ok := d.RetryAfter()
	assert.False(t, ok)
	_, ok = d.RetryAfterSeconds()
	assert.False(t, ok)
}

func TestBlock_UnrecognizedReason(t *testing.T) {
	d := Block(BlockReason("geo"), "")

	assert.False(t, d.Allowed())
	assert.Equal(t, BlockReason("geo"), d.Reason())
}

func TestValidPurchaseTier(t *testing.T) {
	assert.True(t, ValidPurchaseTier(PlanPlus))
	assert.True(t, ValidPurchaseTier(PlanPro))
	assert.False(t, ValidPurchaseTier(PlanFree))
	assert.False(t, ValidPurchaseTier(PlanTier("enterprise")))
}
