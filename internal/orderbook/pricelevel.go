package orderbook

import (
	"github.com/rishav/matchcore/internal/fixedpoint"
	"github.com/rishav/matchcore/internal/orders"
)

// OrderNode is a node in the doubly-linked FIFO queue of orders resting at
// a price level. A doubly-linked list gives O(1) removal from anywhere in
// the queue, which is what makes cancel O(1)-amortized once the secondary
// order-id index (OrderBook.byID) has located the node.
type OrderNode struct {
	Order *orders.Order
	prev  *OrderNode
	next  *OrderNode
	level *PriceLevel
}

// Next returns the next node in the queue.
func (n *OrderNode) Next() *OrderNode { return n.next }

// PriceLevel holds every resting order at a single price, in strict
// arrival (FIFO) order: the time component of price-time priority.
type PriceLevel struct {
	Price    fixedpoint.Fixed
	head     *OrderNode
	tail     *OrderNode
	count    int
	TotalQty uint32 // sum of RemainingQty() across all orders at this level
}

// NewPriceLevel creates a new empty price level.
func NewPriceLevel(price fixedpoint.Fixed) *PriceLevel {
	return &PriceLevel{Price: price}
}

func (pl *PriceLevel) Count() int       { return pl.count }
func (pl *PriceLevel) IsEmpty() bool    { return pl.count == 0 }
func (pl *PriceLevel) Head() *OrderNode { return pl.head }

// Append adds an order to the tail of the queue (lowest time priority at
// this price). Returns the node for O(1) cancellation later. O(1).
func (pl *PriceLevel) Append(order *orders.Order) *OrderNode {
	node := &OrderNode{Order: order, level: pl}

	if pl.tail == nil {
		pl.head = node
		pl.tail = node
	} else {
		node.prev = pl.tail
		pl.tail.next = node
		pl.tail = node
	}

	pl.count++
	pl.TotalQty += order.RemainingQty()
	return node
}

// Remove unlinks a node from the queue. O(1).
func (pl *PriceLevel) Remove(node *OrderNode) {
	if node == nil {
		return
	}

	pl.TotalQty -= node.Order.RemainingQty()
	pl.count--

	if node.prev != nil {
		node.prev.next = node.next
	} else {
		pl.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		pl.tail = node.prev
	}

	node.prev = nil
	node.next = nil
	node.level = nil
}

// ReduceHead consumes qty from the resting order at the front of the
// queue. If the head order is fully consumed it is popped and returned
// alongside fullyConsumed=true so the caller can remove it from the
// order-id index; otherwise fullyConsumed=false and the head order
// remains at the front (partial
// fill, still first in line for the next match).
func (pl *PriceLevel) ReduceHead(qty uint32) (order *orders.Order, fullyConsumed bool) {
	if pl.head == nil {
		return nil, false
	}
	node := pl.head
	node.Order.QtyLeaves -= qty
	pl.TotalQty -= qty

	if node.Order.QtyLeaves > 0 {
		return node.Order, false
	}

	pl.head = node.next
	if pl.head != nil {
		pl.head.prev = nil
	} else {
		pl.tail = nil
	}
	pl.count--
	node.next = nil
	node.level = nil
	return node.Order, true
}

// Orders returns a slice of all orders at this level, oldest first. This
// allocates, so it is used only for depth snapshots, never on the match
// path.
func (pl *PriceLevel) Orders() []*orders.Order {
	result := make([]*orders.Order, 0, pl.count)
	for node := pl.head; node != nil; node = node.next {
		result = append(result, node.Order)
	}
	return result
}
