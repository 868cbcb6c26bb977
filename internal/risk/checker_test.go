package risk

import (
	"testing"

	"github.com/rishav/matchcore/internal/fixedpoint"
	"github.com/rishav/matchcore/internal/orders"
	"github.com/rishav/matchcore/internal/position"
)

func newGate() (*Gate, *position.Book) {
	positions := position.NewBook(fixedpoint.FromInt(10000))
	gate := NewGate(DefaultConfig(), positions)
	return gate, positions
}

func limitOrder(trader string, side orders.Side, price int64, qty uint32) *orders.Order {
	return &orders.Order{
		TraderID:    trader,
		Side:        side,
		Kind:        orders.KindLimit,
		Price:       fixedpoint.FromInt(price),
		QtyOriginal: qty,
		QtyLeaves:   qty,
	}
}

func TestCheckPreTradeKillSwitch(t *testing.T) {
	gate, _ := newGate()
	o := limitOrder("a", orders.SideBuy, 100, 1)
	if reason, _ := gate.CheckPreTrade(o, true, 1, false); reason != ReasonExchangeHalted {
		t.Errorf("expected exchange_halted, got %s", reason)
	}
}

func TestCheckPreTradeInvalidMessage(t *testing.T) {
	gate, _ := newGate()
	o := limitOrder("a", orders.SideBuy, 100, 0) // zero qty
	if reason, _ := gate.CheckPreTrade(o, false, 1, false); reason != ReasonInvalidMessage {
		t.Errorf("expected invalid_message, got %s", reason)
	}
}

func TestCheckPreTradeOffTickPrice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickSize = fixedpoint.FromInt(5)
	positions := position.NewBook(fixedpoint.FromInt(10000))
	gate := NewGate(cfg, positions)

	o := limitOrder("a", orders.SideBuy, 12, 1) // 12 is not a multiple of 5
	if reason, _ := gate.CheckPreTrade(o, false, 1, false); reason != ReasonInvalidMessage {
		t.Errorf("expected invalid_message for off-tick price, got %s", reason)
	}

	onTick := limitOrder("a", orders.SideBuy, 10, 1)
	if reason, _ := gate.CheckPreTrade(onTick, false, 1, false); reason != ReasonNone {
		t.Errorf("expected on-tick price to pass, got %s", reason)
	}
}

func TestCheckPreTradeFrozenAccount(t *testing.T) {
	gate, positions := newGate()
	positions.Account("a").Frozen = true
	o := limitOrder("a", orders.SideBuy, 100, 1)
	if reason, _ := gate.CheckPreTrade(o, false, 1, false); reason != ReasonAccountFrozen {
		t.Errorf("expected account_frozen, got %s", reason)
	}
}

func TestCheckPreTradePriceCollar(t *testing.T) {
	gate, _ := newGate()
	gate.SetReferencePrice(fixedpoint.FromInt(100))

	ok := limitOrder("a", orders.SideBuy, 103, 1)
	if reason, _ := gate.CheckPreTrade(ok, false, 1, false); reason != ReasonNone {
		t.Errorf("expected order within collar to pass, got %s", reason)
	}

	tooHigh := limitOrder("a", orders.SideBuy, 200, 1)
	if reason, _ := gate.CheckPreTrade(tooHigh, false, 1, false); reason != ReasonInvalidPriceReference {
		t.Errorf("expected invalid_price_reference, got %s", reason)
	}
}

func TestCheckPreTradeOrderSizeCap(t *testing.T) {
	gate, _ := newGate()
	o := limitOrder("a", orders.SideBuy, 100, 100000)
	if reason, _ := gate.CheckPreTrade(o, false, 1, false); reason != ReasonOrderSizeCap {
		t.Errorf("expected order_size_cap, got %s", reason)
	}
}

func TestCheckPreTradeNotionalCap(t *testing.T) {
	gate, _ := newGate()
	o := limitOrder("a", orders.SideBuy, 1_000_000_000, 10000)
	if reason, _ := gate.CheckPreTrade(o, false, 1, false); reason != ReasonNotionalCap {
		t.Errorf("expected notional_cap, got %s", reason)
	}
}

func TestCheckPreTradeRateLimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitBurst = 1
	cfg.RateLimitPerSec = 1
	positions := position.NewBook(fixedpoint.FromInt(10000))
	gate := NewGate(cfg, positions)

	o := limitOrder("a", orders.SideBuy, 100, 1)
	if reason, _ := gate.CheckPreTrade(o, false, 1, false); reason != ReasonNone {
		t.Fatalf("expected first order to pass, got %s", reason)
	}
	if reason, _ := gate.CheckPreTrade(o, false, 1, false); reason != ReasonRateLimited {
		t.Errorf("expected second immediate order rate_limited, got %s", reason)
	}
}

func TestCheckPreTradeInitialMargin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MarginMode = MarginInitialOnly
	cfg.InitialMarginRatio = fixedpoint.FromFloat(0.5)
	positions := position.NewBook(fixedpoint.FromInt(100))
	gate := NewGate(cfg, positions)

	o := limitOrder("a", orders.SideBuy, 100, 10) // notional 1000, needs 500 margin, only has 100 cash
	if reason, _ := gate.CheckPreTrade(o, false, 1, false); reason != ReasonInitialMarginInsufficient {
		t.Errorf("expected initial_margin_insufficient, got %s", reason)
	}
}

func TestCheckPreTradeSkipMarginForLiquidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MarginMode = MarginInitialOnly
	cfg.InitialMarginRatio = fixedpoint.FromFloat(0.5)
	positions := position.NewBook(fixedpoint.FromInt(100))
	gate := NewGate(cfg, positions)

	o := limitOrder("a", orders.SideBuy, 100, 10)
	if reason, _ := gate.CheckPreTrade(o, false, 1, true); reason != ReasonNone {
		t.Errorf("expected skipMarginCheck to bypass margin check, got %s", reason)
	}
}

func TestScanMaintenanceOnlyWhenEnabled(t *testing.T) {
	gate, positions := newGate() // MarginDisabled by default
	acct := positions.Account("a")
	acct.Position = 100
	breached := gate.ScanMaintenance(positions.Accounts(), fixedpoint.FromInt(1))
	if len(breached) != 0 {
		t.Errorf("expected no scan results when margin mode disabled")
	}
}

func TestScanMaintenanceFlagsBreach(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MarginMode = MarginInitialAndMaintenance
	cfg.MaintenanceMarginRatio = fixedpoint.FromFloat(0.5)
	positions := position.NewBook(fixedpoint.FromInt(10))
	gate := NewGate(cfg, positions)

	acct := positions.Account("a")
	acct.Position = 100
	acct.AvgEntryPrice = fixedpoint.FromInt(1)

	breached := gate.ScanMaintenance(positions.Accounts(), fixedpoint.FromInt(1))
	if len(breached) != 1 || breached[0] != "a" {
		t.Errorf("expected trader a flagged as breached, got %v", breached)
	}
}

func TestFreezeAccount(t *testing.T) {
	gate, positions := newGate()
	acct := positions.Account("a")
	gate.FreezeAccount(acct)
	if !acct.Frozen {
		t.Errorf("expected account frozen")
	}
}
