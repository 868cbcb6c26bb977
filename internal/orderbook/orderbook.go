// Package orderbook implements the limit order book: two price-ordered
// ladders (bids, asks), each a red-black tree of PriceLevels, each level a
// FIFO queue of resting orders. Together they implement strict
// price-then-arrival-time priority.
package orderbook

import (
	"fmt"

	"github.com/rishav/matchcore/internal/fixedpoint"
	"github.com/rishav/matchcore/internal/orders"
)

// InvariantError is raised when the book is found to be crossed
// (best_bid >= best_ask) after a mutation that should never allow it.
// Per the matching engine's error model this is always fatal.
type InvariantError struct {
	BestBid, BestAsk fixedpoint.Fixed
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("orderbook: crossed book, best_bid=%s best_ask=%s", e.BestBid, e.BestAsk)
}

// OrderBook maintains the bid and ask sides of a single symbol's market.
//
//	                OrderBook
//	                    │
//	   ┌────────────────┴────────────────┐
//	   │                                  │
//	Bids (RBTree)                   Asks (RBTree)
//	descending=true                 descending=false
//	   │                                  │
//	PriceLevel                        PriceLevel
//	(best = highest)                  (best = lowest)
//	   │                                  │
//	FIFO queue                        FIFO queue
type OrderBook struct {
	Bids *RBTree
	Asks *RBTree
	byID map[uint64]*OrderNode // order id -> node, for O(1)-amortized cancel
}

// New creates an empty order book.
func New() *OrderBook {
	return &OrderBook{
		Bids: NewRBTree(true),
		Asks: NewRBTree(false),
		byID: make(map[uint64]*OrderNode),
	}
}

func (ob *OrderBook) treeFor(side orders.Side) *RBTree {
	if side == orders.SideBuy {
		return ob.Bids
	}
	return ob.Asks
}

// Insert adds a resting order to the appropriate side of the book.
// O(log P) if a new price level is created, O(1) amortized otherwise.
func (ob *OrderBook) Insert(o *orders.Order) error {
	if _, exists := ob.byID[o.ID]; exists {
		return fmt.Errorf("orderbook: order %d already resting", o.ID)
	}

	tree := ob.treeFor(o.Side)
	level := tree.Get(o.Price)
	if level == nil {
		level = NewPriceLevel(o.Price)
		tree.Insert(level)
	}

	node := level.Append(o)
	ob.byID[o.ID] = node

	return ob.checkInvariant()
}

// Cancel removes a resting order from the book, returning it, or nil if
// it was not resting (already filled/cancelled/unknown).
func (ob *OrderBook) Cancel(orderID uint64) *orders.Order {
	node, exists := ob.byID[orderID]
	if !exists {
		return nil
	}

	o := node.Order
	level := node.level
	tree := ob.treeFor(o.Side)

	level.Remove(node)
	delete(ob.byID, orderID)

	if level.IsEmpty() {
		tree.Delete(level.Price)
	}

	return o
}

// Lookup retrieves a resting order by id without removing it.
func (ob *OrderBook) Lookup(orderID uint64) *orders.Order {
	node, exists := ob.byID[orderID]
	if !exists {
		return nil
	}
	return node.Order
}

// Best returns the best resting price level for the given side, or nil.
func (ob *OrderBook) Best(side orders.Side) *PriceLevel {
	return ob.treeFor(side).Min()
}

// BestBid returns the highest resting bid price, or zero if none.
func (ob *OrderBook) BestBid() (fixedpoint.Fixed, bool) {
	lvl := ob.Bids.Min()
	if lvl == nil {
		return fixedpoint.Zero, false
	}
	return lvl.Price, true
}

// BestAsk returns the lowest resting ask price, or zero if none.
func (ob *OrderBook) BestAsk() (fixedpoint.Fixed, bool) {
	lvl := ob.Asks.Min()
	if lvl == nil {
		return fixedpoint.Zero, false
	}
	return lvl.Price, true
}

// MatchPeek returns the resting order that would be matched next against
// an incoming order on the opposite side, or nil if that side is empty.
// It never mutates the book.
func (ob *OrderBook) MatchPeek(incomingSide orders.Side) *orders.Order {
	level := ob.Best(incomingSide.Opposite())
	if level == nil {
		return nil
	}
	return level.Head().Order
}

// Consume fills qty against the resting order at the front of the
// opposite side's best level, removing it from the book if it is fully
// consumed. Returns the maker order (for fill reporting) and whether it
// was fully consumed.
func (ob *OrderBook) Consume(incomingSide orders.Side, qty uint32) (maker *orders.Order, fullyConsumed bool, err error) {
	oppositeSide := incomingSide.Opposite()
	tree := ob.treeFor(oppositeSide)
	level := tree.Min()
	if level == nil {
		return nil, false, fmt.Errorf("orderbook: no resting orders on %s side", oppositeSide)
	}

	maker, fullyConsumed = level.ReduceHead(qty)
	if fullyConsumed {
		delete(ob.byID, maker.ID)
		if level.IsEmpty() {
			tree.Delete(level.Price)
		}
	}

	return maker, fullyConsumed, ob.checkInvariant()
}

// checkInvariant asserts best_bid < best_ask (or either side empty). A
// violation means the matching loop let a crossing order rest instead
// of filling, a fatal engine invariant.
func (ob *OrderBook) checkInvariant() error {
	bid, hasBid := ob.BestBid()
	ask, hasAsk := ob.BestAsk()
	if hasBid && hasAsk && bid >= ask {
		return &InvariantError{BestBid: bid, BestAsk: ask}
	}
	return nil
}

// Depth returns up to n price levels from the given side, best first. If
// n <= 0, returns every level.
func (ob *OrderBook) Depth(side orders.Side, n int) []*PriceLevel {
	tree := ob.treeFor(side)
	result := make([]*PriceLevel, 0, tree.Size())
	count := 0
	tree.ForEach(func(level *PriceLevel) bool {
		result = append(result, level)
		count++
		return n <= 0 || count < n
	})
	return result
}

// TotalOrders returns the number of orders resting anywhere in the book.
func (ob *OrderBook) TotalOrders() int {
	return len(ob.byID)
}

// OrderIDsByTrader scans every resting order for the given trader. It is
// O(n) in the book's total size, acceptable for cancel_all_for, which is
// an infrequent bulk operation (disconnect, explicit bulk-cancel), not a
// per-order hot path.
func (ob *OrderBook) OrderIDsByTrader(traderID string) []uint64 {
	var ids []uint64
	for id, node := range ob.byID {
		if node.Order.TraderID == traderID {
			ids = append(ids, id)
		}
	}
	return ids
}
