// Package risk implements the pre-trade gate and the post-trade
// maintenance-margin scan.
//
// Pre-trade checks run, in order, before an order ever reaches the
// matching engine: kill switch, field validation, frozen account, price
// collar (limit orders), fat-finger size cap, max notional (non-market
// orders), rate limit, and (if enabled) initial margin. The cascade stops and reports the first failing
// reason code; checks after that point never run.
//
// This gate carries no mutex: the entire pipeline (risk, matching,
// accounting) runs on a single goroutine, so no concurrent access is
// possible and a lock would only be dead weight on the hot path.
package risk

import (
	"github.com/rishav/matchcore/internal/fixedpoint"
	"github.com/rishav/matchcore/internal/orders"
	"github.com/rishav/matchcore/internal/position"
)

// MarginMode selects how aggressively the gate enforces margin.
type MarginMode int

const (
	MarginDisabled MarginMode = iota
	MarginInitialOnly
	MarginInitialAndMaintenance
)

// Config mirrors the closed configuration set the engine exposes.
type Config struct {
	TickSize               fixedpoint.Fixed
	PriceCollarPct         fixedpoint.Fixed
	MaxOrderQty            uint32
	MaxOrderNotional       fixedpoint.Fixed
	RateLimitPerSec        int
	RateLimitBurst         int
	StartingCapital        fixedpoint.Fixed
	BookDepthInUpdates     int
	MarginMode             MarginMode
	LiquidationMaxAttempts int
	SelfMatchPolicy        string           // "skip_resting" | "cancel_resting" | "cancel_incoming"
	InitialMarginRatio     fixedpoint.Fixed // fraction of notional required as margin
	MaintenanceMarginRatio fixedpoint.Fixed
}

// DefaultConfig returns the engine's named default risk limits.
func DefaultConfig() Config {
	return Config{
		TickSize:               fixedpoint.Fixed(1), // one fixed-point unit
		PriceCollarPct:         fixedpoint.FromFloat(0.05),
		MaxOrderQty:            10000,
		MaxOrderNotional:       fixedpoint.Fixed(1_000_000_000_000), // 10^12 fixed-point units (10000.0)
		RateLimitPerSec:        1000,
		RateLimitBurst:         1000,
		StartingCapital:        fixedpoint.FromInt(10000),
		BookDepthInUpdates:     10,
		MarginMode:             MarginDisabled,
		LiquidationMaxAttempts: 3,
		SelfMatchPolicy:        "skip_resting",
		InitialMarginRatio:     fixedpoint.FromFloat(0.25),
		MaintenanceMarginRatio: fixedpoint.FromFloat(0.15),
	}
}

// Reason is a closed set of rejection/outcome codes carried on the
// outbound protocol.
type Reason string

const (
	ReasonNone                      Reason = ""
	ReasonInvalidMessage            Reason = "invalid_message"
	ReasonExchangeHalted            Reason = "exchange_halted"
	ReasonInvalidPriceReference     Reason = "invalid_price_reference"
	ReasonOrderSizeCap              Reason = "order_size_cap"
	ReasonNotionalCap               Reason = "notional_cap"
	ReasonRateLimited               Reason = "rate_limited"
	ReasonInitialMarginInsufficient Reason = "initial_margin_insufficient"
	ReasonNoLiquidity               Reason = "no_liquidity"
	ReasonFillOrKillUnfillable      Reason = "fill_or_kill_unfillable"
	ReasonUnknownOrder              Reason = "unknown_order"
	ReasonAccountFrozen             Reason = "account_frozen"
	ReasonSelfMatchSkipped          Reason = "self_match_skipped" // info-only, never a rejection
)

// Gate performs pre-trade checks and post-trade maintenance scans.
type Gate struct {
	cfg Config

	referencePrice fixedpoint.Fixed
	buckets        map[string]*TokenBucket

	positions *position.Book
}

// NewGate creates a risk gate backed by the given position book. The
// gate reads positions to evaluate margin and never mutates them
// itself; accounting mutation is internal/position's job, driven by
// fills.
func NewGate(cfg Config, positions *position.Book) *Gate {
	return &Gate{
		cfg:       cfg,
		buckets:   make(map[string]*TokenBucket),
		positions: positions,
	}
}

// SetReferencePrice updates the price the collar check measures against.
// Called after every trade with the new last-trade price.
func (g *Gate) SetReferencePrice(p fixedpoint.Fixed) {
	g.referencePrice = p
}

// CheckPreTrade runs the cascade described above in order. killSwitch is
// passed in explicitly (owned by the matching engine) rather than
// duplicated on the gate. skipMarginCheck is set only for synthetic
// liquidation orders, which must still pass every other check.
// CheckPreTrade returns the reason for the order's rejection, plus
// reason-specific details (currently populated only for
// initial_margin_insufficient, carrying {equity, required_margin}), or
// ReasonNone and nil details if the order passes every check.
func (g *Gate) CheckPreTrade(o *orders.Order, killSwitch bool, nowNS int64, skipMarginCheck bool) (Reason, map[string]string) {
	if killSwitch {
		return ReasonExchangeHalted, nil
	}

	if !g.validFields(o) {
		return ReasonInvalidMessage, nil
	}

	acct := g.positions.Account(o.TraderID)
	if acct.Frozen {
		return ReasonAccountFrozen, nil
	}

	if o.Kind == orders.KindLimit && g.referencePrice > 0 {
		if !g.withinCollar(o.Price) {
			return ReasonInvalidPriceReference, nil
		}
	}

	if o.QtyOriginal > g.cfg.MaxOrderQty {
		return ReasonOrderSizeCap, nil
	}

	if o.Kind != orders.KindMarket {
		// price*qty > cap is tested as price > cap/qty (exact for qty > 0),
		// so an oversized order is rejected instead of overflowing.
		if int64(o.Price) > int64(g.cfg.MaxOrderNotional)/int64(o.QtyOriginal) {
			return ReasonNotionalCap, nil
		}
	}

	bucket := g.bucketFor(o.TraderID)
	if !bucket.Allow(nowNS) {
		return ReasonRateLimited, nil
	}

	if !skipMarginCheck && g.cfg.MarginMode != MarginDisabled {
		if ok, required := g.checkInitialMargin(acct, o); !ok {
			return ReasonInitialMarginInsufficient, map[string]string{
				"equity":          acct.Cash.String(),
				"required_margin": required.String(),
			}
		}
	}

	return ReasonNone, nil
}

// validFields runs the closed set of structural checks on an inbound
// order: a trader id, a positive quantity, and, for priced orders, a
// positive price that is a whole multiple of the configured tick size.
func (g *Gate) validFields(o *orders.Order) bool {
	if o.TraderID == "" || o.QtyOriginal == 0 {
		return false
	}
	if o.Kind == orders.KindLimit {
		if o.Price <= 0 {
			return false
		}
		if g.cfg.TickSize > 0 && int64(o.Price)%int64(g.cfg.TickSize) != 0 {
			return false
		}
	}
	return true
}

func (g *Gate) withinCollar(price fixedpoint.Fixed) bool {
	band := g.referencePrice.Mul(g.cfg.PriceCollarPct)
	low := g.referencePrice.Sub(band)
	high := g.referencePrice.Add(band)
	return price >= low && price <= high
}

// checkInitialMargin requires cash to cover InitialMarginRatio of the new
// order's notional. Only the new order is counted: the account's existing
// position and resting orders add nothing to the requirement, and the
// order is not netted against an existing opposite-side position.
func (g *Gate) checkInitialMargin(acct *position.Account, o *orders.Order) (ok bool, required fixedpoint.Fixed) {
	if o.Kind == orders.KindMarket {
		return true, fixedpoint.Zero // no price to measure margin against before matching
	}
	notional := o.Price.MulInt(int64(o.QtyOriginal))
	required = notional.Mul(g.cfg.InitialMarginRatio)
	return acct.Cash >= required, required
}

// ScanMaintenance walks every account and reports which ones are in
// maintenance-margin breach at the given mark price. Only meaningful when
// MarginMode == MarginInitialAndMaintenance.
func (g *Gate) ScanMaintenance(accounts map[string]*position.Account, mark fixedpoint.Fixed) []string {
	var breached []string
	if g.cfg.MarginMode != MarginInitialAndMaintenance {
		return breached
	}
	for traderID, acct := range accounts {
		if acct.Position == 0 || acct.Frozen {
			continue
		}
		notional := mark.MulInt(absInt64(acct.Position))
		required := notional.Mul(g.cfg.MaintenanceMarginRatio)
		if acct.TotalEquity(mark) < required {
			breached = append(breached, traderID)
		}
	}
	return breached
}

// FreezeAccount marks a trader's account frozen after liquidity_exhausted.
// Only an explicit admin reset command clears it.
func (g *Gate) FreezeAccount(acct *position.Account) {
	acct.Frozen = true
}

func (g *Gate) bucketFor(traderID string) *TokenBucket {
	b, ok := g.buckets[traderID]
	if !ok {
		b = NewTokenBucket(g.cfg.RateLimitBurst, g.cfg.RateLimitPerSec)
		g.buckets[traderID] = b
	}
	return b
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
