// Package liquidation implements forced unwinding of accounts in
// maintenance-margin breach.
//
// There is no preexisting margin or liquidation machinery to build on
// here, so this package is built from the shape of matching.Engine's
// re-entrant Submit path and risk.Gate's position-aware checks, composed
// into the numbered steps a forced unwind needs.
package liquidation

import (
	"github.com/rishav/matchcore/internal/events"
	"github.com/rishav/matchcore/internal/matching"
	"github.com/rishav/matchcore/internal/orders"
	"github.com/rishav/matchcore/internal/position"
	"github.com/rishav/matchcore/internal/risk"
)

// Outcome is the outbound liquidation event's content.
type Outcome struct {
	TraderID           string
	Side               orders.Side
	Reason             string
	AttemptedQty       uint32
	FilledQty          uint32
	Attempts           int
	LiquidityExhausted bool
}

// Liquidator drives forced unwinding for accounts the risk gate's
// maintenance scan flags as breached.
type Liquidator struct {
	gate        *risk.Gate
	engine      *matching.Engine
	positions   *position.Book
	maxAttempts int

	// attemptsByTrader counts consecutive breach ticks for a trader
	// across calls to Run, reset once the trader's position reaches
	// zero or the account is frozen.
	attemptsByTrader map[string]int
}

// New creates a liquidator bound to the engine's matching and risk
// components. It submits synthetic orders through the same Submit path
// ordinary client orders use; there is no separate liquidation code
// path inside the matching engine.
func New(gate *risk.Gate, engine *matching.Engine, positions *position.Book, maxAttempts int) *Liquidator {
	return &Liquidator{
		gate:             gate,
		engine:           engine,
		positions:        positions,
		maxAttempts:      maxAttempts,
		attemptsByTrader: make(map[string]int),
	}
}

// Run makes one attempt to unwind traderID's position. A synthetic Market
// order is built on the side opposite the trader's current position,
// sized to |position|, tagged TagLiquidation, and checked with
// skipMarginCheck set, so the risk gate skips only the initial-margin
// re-check: the kill switch, field, frozen-account, size-cap and
// rate-limit checks still apply (the price collar and notional cap cover
// limit orders only, so they do not constrain this Market order). An
// under-filled attempt (partial fill against thin liquidity) is retried
// on the next maintenance scan rather than immediately; after maxAttempts
// consecutive under-filled attempts the account is frozen.
func (l *Liquidator) Run(traderID string, nowNS int64, nextOrderID func() uint64) Outcome {
	acct := l.positions.Account(traderID)
	if acct.Position == 0 || acct.Frozen {
		delete(l.attemptsByTrader, traderID)
		return Outcome{TraderID: traderID}
	}

	side := orders.SideSell
	if acct.Position < 0 {
		side = orders.SideBuy
	}
	qty := absInt64(acct.Position)

	order := &orders.Order{
		ID:          nextOrderID(),
		TraderID:    traderID,
		Side:        side,
		Kind:        orders.KindMarket,
		Tag:         orders.TagLiquidation,
		QtyOriginal: uint32(qty),
		QtyLeaves:   uint32(qty),
		TimestampNS: nowNS,
	}

	reason, _ := l.gate.CheckPreTrade(order, l.engine.KillSwitch, nowNS, true)
	if reason != risk.ReasonNone {
		// A non-margin check blocked the liquidation order itself (e.g.
		// exchange halted, or rate limited). Count it
		// as a failed attempt: liquidation cannot proceed this tick.
		return l.recordAttempt(traderID, side, qty, 0)
	}

	result, err := l.engine.Submit(order)
	if err != nil {
		panic(err) // crossed-book or other fatal invariant violation
	}

	filled := uint32(0)
	for _, f := range result.Fills {
		l.positions.ApplyFill(f)
		filled += f.Qty
	}

	return l.recordAttempt(traderID, side, qty, filled)
}

// recordAttempt folds the result of one liquidation attempt into the
// trader's attempt counter and builds the outbound Outcome. Reason is
// maintenance_margin_breach for every attempt up to and including the
// one that finally unwinds the position; it only flips to
// liquidity_exhausted on the attempt that hits maxAttempts and freezes
// the account.
func (l *Liquidator) recordAttempt(traderID string, side orders.Side, attemptedQty int64, filledQty uint32) Outcome {
	fullyFilled := filledQty == uint32(attemptedQty)
	if fullyFilled {
		delete(l.attemptsByTrader, traderID)
		return Outcome{
			TraderID:     traderID,
			Side:         side,
			Reason:       events.ReasonMaintenanceMarginBreach,
			AttemptedQty: uint32(attemptedQty),
			FilledQty:    filledQty,
		}
	}

	l.attemptsByTrader[traderID]++
	attempts := l.attemptsByTrader[traderID]

	outcome := Outcome{
		TraderID:     traderID,
		Side:         side,
		Reason:       events.ReasonMaintenanceMarginBreach,
		AttemptedQty: uint32(attemptedQty),
		FilledQty:    filledQty,
		Attempts:     attempts,
	}

	if attempts >= l.maxAttempts {
		acct := l.positions.Account(traderID)
		l.gate.FreezeAccount(acct)
		outcome.LiquidityExhausted = true
		outcome.Reason = events.ReasonLiquidityExhausted
		delete(l.attemptsByTrader, traderID)
	}

	return outcome
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
