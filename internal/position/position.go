// Package position implements the accounting core: one TraderAccount per
// trader, updated in place by every fill via ApplyFill.
//
// The update rules follow the buyer/seller leg formulas below, adapted
// from the delivery-vs-payment idiom of settling both legs of a trade
// atomically, but narrowed to a same-tick mutation: there is no T+2
// netting or deferred settlement queue here, only the event journal.
package position

import (
	"github.com/rishav/matchcore/internal/fixedpoint"
	"github.com/rishav/matchcore/internal/orders"
)

// Account tracks one trader's position, cash, and realized P&L.
type Account struct {
	TraderID string

	Position      int64 // signed shares/contracts; negative = short
	Cash          fixedpoint.Fixed
	AvgEntryPrice fixedpoint.Fixed
	RealizedPnL   fixedpoint.Fixed

	// OpenBuyQty and OpenSellQty are never written by this module (no
	// fill, insert or cancel path updates them), so they stay zero.
	OpenBuyQty  uint32
	OpenSellQty uint32

	Frozen bool // set by the liquidator after liquidity_exhausted
}

// NewAccount creates an account seeded with starting capital.
func NewAccount(traderID string, startingCapital fixedpoint.Fixed) *Account {
	return &Account{TraderID: traderID, Cash: startingCapital}
}

// Book holds every trader's Account, keyed by trader id.
type Book struct {
	accounts        map[string]*Account
	startingCapital fixedpoint.Fixed
}

// NewBook creates an empty position book. Accounts are created lazily, on
// first reference, seeded with startingCapital.
func NewBook(startingCapital fixedpoint.Fixed) *Book {
	return &Book{accounts: make(map[string]*Account), startingCapital: startingCapital}
}

// Account returns the trader's account, creating it if this is the first
// time the trader has been seen.
func (b *Book) Account(traderID string) *Account {
	acct, ok := b.accounts[traderID]
	if !ok {
		acct = NewAccount(traderID, b.startingCapital)
		b.accounts[traderID] = acct
	}
	return acct
}

// Accounts returns every account currently known to the book, for the
// risk gate's maintenance scan. The caller must not mutate Position,
// Cash, or AvgEntryPrice through it; only ApplyFill and FreezeAccount
// may.
func (b *Book) Accounts() map[string]*Account {
	return b.accounts
}

// ApplyFill updates both legs of a fill (buyer and seller) in one step.
// This is the only place position, avg entry price, realized P&L, and
// cash ever change.
func (b *Book) ApplyFill(f orders.Fill) {
	notional := f.Price.MulInt(int64(f.Qty))

	buyTrader, sellTrader := f.MakerTrader, f.TakerTrader
	if f.TakerSide == orders.SideBuy {
		buyTrader, sellTrader = f.TakerTrader, f.MakerTrader
	}

	applyLeg(b.Account(buyTrader), orders.SideBuy, f.Qty, f.Price, notional)
	applyLeg(b.Account(sellTrader), orders.SideSell, f.Qty, f.Price, notional)
}

// applyLeg applies one side's accounting update for a fill of qty shares
// at price:
//
//   - Opening or increasing a position (trading in the direction the
//     position already points, or opening from flat): the average entry
//     price is a size-weighted blend of the old position and the new
//     quantity. Cash moves by notional (buyer pays, seller receives).
//   - Reducing a position (trading against the existing position, not
//     past flat): realized P&L is recognized on the reduced quantity at
//     (fill_price - avg_entry) for a long being reduced, or the mirror
//     for a short; avg_entry is unchanged for the remaining position.
//   - Flipping through flat: the portion that closes the existing
//     position realizes P&L as above, and the remainder opens a new
//     position on the other side at the fill price. If the fill exactly
//     flattens the position, avg_entry resets to 0.
func applyLeg(acct *Account, side orders.Side, qty uint32, price, notional fixedpoint.Fixed) {
	signedQty := int64(qty)
	if side == orders.SideSell {
		signedQty = -signedQty
	}

	if side == orders.SideBuy {
		acct.Cash = acct.Cash.Sub(notional)
	} else {
		acct.Cash = acct.Cash.Add(notional)
	}

	switch {
	case acct.Position == 0:
		acct.Position = signedQty
		acct.AvgEntryPrice = price

	case sameSign(acct.Position, signedQty):
		// Increasing an existing position: blend avg entry by size.
		oldAbs := absInt64(acct.Position)
		addAbs := absInt64(signedQty)
		newAbs := oldAbs + addAbs
		blended := acct.AvgEntryPrice.MulInt(oldAbs).Add(price.MulInt(addAbs)).Div(fixedpoint.FromInt(newAbs))
		acct.AvgEntryPrice = blended
		acct.Position += signedQty

	default:
		// Reducing, possibly flipping through flat.
		reduceAbs := minInt64(absInt64(acct.Position), absInt64(signedQty))
		realized := realizedPnL(acct.Position, acct.AvgEntryPrice, price, reduceAbs)
		acct.RealizedPnL = acct.RealizedPnL.Add(realized)

		acct.Position += signedQty

		if acct.Position == 0 {
			acct.AvgEntryPrice = fixedpoint.Zero
		} else if sameSign(acct.Position, signedQty) {
			// Flipped through flat: the remainder opens a fresh position
			// on the new side, priced at this fill.
			acct.AvgEntryPrice = price
		}
		// Otherwise the position shrank but kept its sign: avg_entry for
		// the remaining shares is unchanged.
	}
}

// realizedPnL computes the P&L recognized when reduceAbs shares of a
// position (avgEntry) are closed at fillPrice. For a long position being
// reduced, P&L is (fillPrice - avgEntry) * reduceAbs; for a short, the
// sign is mirrored.
func realizedPnL(position int64, avgEntry, fillPrice fixedpoint.Fixed, reduceAbs int64) fixedpoint.Fixed {
	delta := fillPrice.Sub(avgEntry)
	pnl := delta.MulInt(reduceAbs)
	if position < 0 {
		pnl = pnl.Neg()
	}
	return pnl
}

// UnrealizedPnL returns the mark-to-market P&L on the open position at
// the given mark price.
func (a *Account) UnrealizedPnL(mark fixedpoint.Fixed) fixedpoint.Fixed {
	if a.Position == 0 {
		return fixedpoint.Zero
	}
	delta := mark.Sub(a.AvgEntryPrice)
	pnl := delta.MulInt(absInt64(a.Position))
	if a.Position < 0 {
		pnl = pnl.Neg()
	}
	return pnl
}

// TotalEquity is cash plus unrealized P&L. Realized P&L is deliberately
// not added again here: it was already folded into Cash at fill time by
// applyLeg, so adding it a second time would double-count it.
func (a *Account) TotalEquity(mark fixedpoint.Fixed) fixedpoint.Fixed {
	return a.Cash.Add(a.UnrealizedPnL(mark))
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
