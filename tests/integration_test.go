// Package tests holds end-to-end scenarios that exercise the full
// risk -> matching -> position pipeline together, the same way a
// root-level integration suite exercises a whole engine end to end.
// Package-level unit tests for a single component live alongside that
// component; this directory is reserved for scenarios that only make
// sense wired together.
package tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishav/matchcore/internal/fixedpoint"
	"github.com/rishav/matchcore/internal/liquidation"
	"github.com/rishav/matchcore/internal/matching"
	"github.com/rishav/matchcore/internal/orders"
	"github.com/rishav/matchcore/internal/position"
	"github.com/rishav/matchcore/internal/risk"
)

func newHarness(t *testing.T) (*matching.Engine, *risk.Gate, *position.Book) {
	t.Helper()
	positions := position.NewBook(fixedpoint.FromInt(100000))
	engine := matching.New(matching.SkipRestingOrder)
	gate := risk.NewGate(risk.DefaultConfig(), positions)
	return engine, gate, positions
}

func submit(t *testing.T, engine *matching.Engine, gate *risk.Gate, traderID string, side orders.Side, kind orders.Kind, tif orders.TimeInForce, price float64, qty uint32) *orders.ExecutionResult {
	t.Helper()
	o := &orders.Order{
		TraderID:    traderID,
		Side:        side,
		Kind:        kind,
		TIF:         tif,
		Price:       fixedpoint.FromFloat(price),
		QtyOriginal: qty,
		QtyLeaves:   qty,
		TimestampNS: 1,
	}
	reason, _ := gate.CheckPreTrade(o, false, 1, false)
	require.Equal(t, risk.ReasonNone, reason, "pre-trade check rejected: %s", reason)
	result, err := engine.Submit(o)
	require.NoError(t, err)
	return result
}

// Scenario: simple cross. A resting limit order fully filled by an
// incoming order at the resting (maker) price.
func TestSimpleCross(t *testing.T) {
	engine, gate, positions := newHarness(t)

	submit(t, engine, gate, "maker", orders.SideSell, orders.KindLimit, orders.GTC, 100, 10)
	result := submit(t, engine, gate, "taker", orders.SideBuy, orders.KindLimit, orders.GTC, 100, 10)

	require.Len(t, result.Fills, 1)
	assert.Equal(t, uint32(10), result.Fills[0].Qty)
	assert.Equal(t, fixedpoint.FromInt(100), result.Fills[0].Price)

	for _, f := range result.Fills {
		positions.ApplyFill(f)
	}
	assert.EqualValues(t, -10, positions.Account("maker").Position)
	assert.EqualValues(t, 10, positions.Account("taker").Position)
}

// Scenario: FIFO at the same price level. Two resting orders at an
// identical price fill in arrival order, not in any other order.
func TestFIFOAtSamePrice(t *testing.T) {
	engine, gate, _ := newHarness(t)

	submit(t, engine, gate, "first", orders.SideSell, orders.KindLimit, orders.GTC, 50, 5)
	submit(t, engine, gate, "second", orders.SideSell, orders.KindLimit, orders.GTC, 50, 5)

	result := submit(t, engine, gate, "taker", orders.SideBuy, orders.KindLimit, orders.GTC, 50, 7)

	require.Len(t, result.Fills, 2)
	assert.Equal(t, "first", result.Fills[0].MakerTrader)
	assert.EqualValues(t, 5, result.Fills[0].Qty)
	assert.Equal(t, "second", result.Fills[1].MakerTrader)
	assert.EqualValues(t, 2, result.Fills[1].Qty)
}

// Scenario: market order against no liquidity is cancelled outright, no
// fills, no resting residual.
func TestMarketWithNoLiquidity(t *testing.T) {
	engine, gate, _ := newHarness(t)

	result := submit(t, engine, gate, "taker", orders.SideBuy, orders.KindMarket, orders.ImmediateOnly, 0, 10)

	assert.Empty(t, result.Fills)
	assert.Equal(t, orders.StatusCancelled, result.Order.Status)
	assert.Zero(t, engine.Book.TotalOrders())
}

// Scenario: self-match prevention under the skip_resting default policy
// skips the self-matching resting order without filling or cancelling
// it, and still fills the incoming order against the next-best maker.
func TestSelfMatchSkipResting(t *testing.T) {
	engine, gate, _ := newHarness(t)

	submit(t, engine, gate, "same-trader", orders.SideSell, orders.KindLimit, orders.GTC, 20, 5)
	submit(t, engine, gate, "other-maker", orders.SideSell, orders.KindLimit, orders.GTC, 20, 5)

	result := submit(t, engine, gate, "same-trader", orders.SideBuy, orders.KindLimit, orders.GTC, 20, 5)

	require.Len(t, result.Fills, 1)
	assert.Equal(t, "other-maker", result.Fills[0].MakerTrader)
	assert.Len(t, engine.SelfMatches, 1)

	// The skipped self-matching order is still resting, untouched.
	resting := engine.Book.Depth(orders.SideSell, 0)
	require.Len(t, resting, 1)
	assert.Equal(t, fixedpoint.FromInt(20), resting[0].Price)
}

// Scenario: closing a long position and flipping short in the same fill
// realizes P&L on the closed portion and opens the new side at the fill
// price, following the flip-through-flat rule.
func TestPositionCloseAndFlip(t *testing.T) {
	engine, gate, positions := newHarness(t)

	submit(t, engine, gate, "counterparty", orders.SideSell, orders.KindLimit, orders.GTC, 100, 10)
	openResult := submit(t, engine, gate, "trader", orders.SideBuy, orders.KindLimit, orders.GTC, 100, 10)
	for _, f := range openResult.Fills {
		positions.ApplyFill(f)
	}
	acct := positions.Account("trader")
	require.EqualValues(t, 10, acct.Position)
	require.Equal(t, fixedpoint.FromInt(100), acct.AvgEntryPrice)

	submit(t, engine, gate, "counterparty", orders.SideBuy, orders.KindLimit, orders.GTC, 110, 15)
	flipResult := submit(t, engine, gate, "trader", orders.SideSell, orders.KindLimit, orders.GTC, 110, 15)
	for _, f := range flipResult.Fills {
		positions.ApplyFill(f)
	}

	assert.EqualValues(t, -5, acct.Position)
	assert.Equal(t, fixedpoint.FromInt(110), acct.AvgEntryPrice)
	assert.Equal(t, fixedpoint.FromInt(100), acct.RealizedPnL) // 10 * (110-100)
}

// Scenario: a bounded liquidation attempt that cannot fully fill against
// thin liquidity counts as one attempt and, after maxAttempts, freezes
// the account and reports liquidity_exhausted.
func TestLiquidationExhaustsLiquidity(t *testing.T) {
	engine, gate, positions := newHarness(t)
	liq := liquidation.New(gate, engine, positions, 2)

	acct := positions.Account("underwater")
	acct.Position = -10 // short 10, needs to buy 10 to flatten

	// Only 3 units of ask liquidity available, far short of 10.
	submit(t, engine, gate, "liquidity-provider", orders.SideSell, orders.KindLimit, orders.GTC, 100, 3)

	first := liq.Run("underwater", 1, engine.NextOrderID)
	assert.False(t, first.LiquidityExhausted)
	assert.Equal(t, 1, first.Attempts)

	second := liq.Run("underwater", 2, engine.NextOrderID)
	assert.True(t, second.LiquidityExhausted)
	assert.True(t, acct.Frozen)
	assert.Equal(t, "liquidity_exhausted", second.Reason)
}

// Scenario: a breached account with enough resting liquidity to absorb
// the full unwind in one attempt fills completely, reports
// maintenance_margin_breach (never liquidity_exhausted), and leaves the
// account unfrozen and flat.
func TestLiquidationFullyFills(t *testing.T) {
	engine, gate, positions := newHarness(t)
	liq := liquidation.New(gate, engine, positions, 3)

	acct := positions.Account("underwater")
	acct.Position = -10 // short 10, needs to buy 10 to flatten

	// Ample ask liquidity, enough to fully unwind in one attempt.
	submit(t, engine, gate, "liquidity-provider", orders.SideSell, orders.KindLimit, orders.GTC, 100, 25)

	outcome := liq.Run("underwater", 1, engine.NextOrderID)

	assert.EqualValues(t, 10, outcome.AttemptedQty)
	assert.EqualValues(t, 10, outcome.FilledQty)
	assert.Equal(t, orders.SideBuy, outcome.Side)
	assert.Equal(t, "maintenance_margin_breach", outcome.Reason)
	assert.False(t, outcome.LiquidityExhausted)
	assert.False(t, acct.Frozen)
	assert.EqualValues(t, 0, acct.Position)
}
