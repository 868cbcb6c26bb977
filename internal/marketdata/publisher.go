// Package marketdata builds the outbound book_update depth snapshot
// from the live order book.
//
// Narrowed from a fuller publisher design that fans L1/L2/trade updates
// out to an arbitrary number of channel subscribers over multicast/
// WebSocket/FIX. That whole subscriber-registry and transport concern
// belongs to the network gateway sitting in front of this engine; there
// is no in-process subscriber to manage once it is removed. What is
// kept is the L2 depth-level shape itself: a snapshot builder invoked
// by the event sequencer after every match, not a broadcaster.
package marketdata

import (
	"github.com/rishav/matchcore/internal/events"
	"github.com/rishav/matchcore/internal/orderbook"
	"github.com/rishav/matchcore/internal/orders"
)

// Snapshot builds a book_update event's Bids/Asks from the current state
// of an order book, taking the top depth levels per side.
func Snapshot(book *orderbook.OrderBook, depth int) (bids, asks []events.DepthLevel) {
	return toLevels(book.Depth(orders.SideBuy, depth)), toLevels(book.Depth(orders.SideSell, depth))
}

func toLevels(levels []*orderbook.PriceLevel) []events.DepthLevel {
	out := make([]events.DepthLevel, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, events.DepthLevel{Price: lvl.Price, Qty: lvl.TotalQty})
	}
	return out
}
