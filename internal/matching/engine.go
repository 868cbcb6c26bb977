// Package matching implements the price-time matching algorithm.
//
// Architecture: Single-Threaded Core (LMAX Disruptor Pattern)
//
// Why single-threaded?
//  1. Determinism: the same input sequence always produces the same output.
//  2. No locks: eliminates contention in the hot path.
//  3. Replay: state can be rebuilt by replaying the command log.
//  4. Simplicity: no race conditions to debug.
//
// Matching is CPU-bound, not I/O-bound, so parallelism would only add
// overhead. Submit and Cancel must only ever be called from the single
// core mutator goroutine (internal/pipeline owns that constraint).
package matching

import (
	"fmt"

	"github.com/rishav/matchcore/internal/fixedpoint"
	"github.com/rishav/matchcore/internal/orderbook"
	"github.com/rishav/matchcore/internal/orders"
)

// SelfMatchPolicy controls what happens when an incoming order would
// cross against a resting order from the same trader.
type SelfMatchPolicy int

const (
	// SkipRestingOrder skips the resting order (leaves it in the book)
	// and continues matching against the next resting order at that
	// price, or the next price level. This is the default.
	SkipRestingOrder SelfMatchPolicy = iota
	// CancelResting cancels the resting order out of the book entirely
	// and continues matching.
	CancelResting
	// CancelIncoming stops matching and cancels whatever quantity of the
	// incoming order remains.
	CancelIncoming
)

// SelfMatchEvent records a self-match that was prevented. Events are
// collected in Engine.SelfMatches; no outbound event is emitted for them.
type SelfMatchEvent struct {
	TraderID        string
	IncomingOrderID uint64
	RestingOrderID  uint64
}

// InvariantError wraps an orderbook.InvariantError surfaced through the
// matching engine. A crossed book after a match is always fatal.
type InvariantError = orderbook.InvariantError

// Engine is the single-threaded matching core for one instrument.
//
// Thread Safety: Submit and Cancel must only be called from a single
// goroutine. External synchronization is the pipeline's job.
type Engine struct {
	Book *orderbook.OrderBook

	SelfMatchPolicy SelfMatchPolicy
	KillSwitch      bool

	LastTradePrice fixedpoint.Fixed

	nextOrderID uint64
	nextTradeID uint64

	SelfMatches []SelfMatchEvent
}

// New creates a matching engine with an empty book.
func New(policy SelfMatchPolicy) *Engine {
	return &Engine{
		Book:            orderbook.New(),
		SelfMatchPolicy: policy,
	}
}

// NextOrderID assigns the next engine-local order id.
func (e *Engine) NextOrderID() uint64 {
	e.nextOrderID++
	return e.nextOrderID
}

func (e *Engine) nextTradeIDVal() uint64 {
	e.nextTradeID++
	return e.nextTradeID
}

// Submit admits an order that has already passed the risk gate. It
// assigns an order id if the caller did not supply one, runs the
// crossing loop, and rests any remaining limit quantity.
//
// Matching algorithm:
//  1. If KillSwitch is set, the caller must not reach here: the risk
//     gate rejects before admission. Submit asserts this rather than
//     re-checking, since a kill-switched engine accepting orders is
//     itself a fatal invariant violation.
//  2. Walk the opposite side's best price level while the incoming order
//     has quantity left and the best resting price crosses the incoming
//     order's limit (or the incoming order is a Market order, which
//     accepts any price).
//  3. At each resting order, apply self-match prevention before filling.
//  4. GTC limit residual rests in the book; IOC/Market residual is
//     discarded; FOK is pre-checked via canFillEntirely before any fill
//     is generated, so it never leaves a partial fill behind.
//  5. Assert the book is not crossed after every match.
func (e *Engine) Submit(o *orders.Order) (*orders.ExecutionResult, error) {
	if e.KillSwitch {
		panic("matching: Submit called while kill switch is engaged")
	}

	result := &orders.ExecutionResult{Order: o, Accepted: true}

	if o.ID == 0 {
		o.ID = e.NextOrderID()
	}
	o.Status = orders.StatusNew

	if o.Kind == orders.KindFOK {
		if !e.canFillEntirely(o) {
			o.Status = orders.StatusCancelled
			result.Accepted = false
			result.RejectReason = "fill_or_kill_unfillable"
			return result, nil
		}
	}

	fills, err := e.matchLoop(o)
	if err != nil {
		return nil, err
	}
	result.Fills = fills
	// CancelIncoming self-match prevention marks the incoming order
	// cancelled inside matchLoop; its remainder must not rest.
	selfMatchCancelled := o.Status == orders.StatusCancelled

	if o.IsFilled() {
		o.Status = orders.StatusFilled
	} else if o.QtyLeaves < o.QtyOriginal {
		o.Status = orders.StatusPartiallyFilled
	}

	if o.RemainingQty() > 0 && selfMatchCancelled {
		o.Status = orders.StatusCancelled
	} else if o.RemainingQty() > 0 {
		switch o.Kind {
		case orders.KindMarket:
			o.Status = orders.StatusCancelled
		case orders.KindFOK:
			// unreachable: canFillEntirely already guaranteed a full fill
		case orders.KindLimit:
			if o.TIF == orders.GTC {
				if err := e.Book.Insert(o); err != nil {
					return nil, err
				}
			} else {
				o.Status = orders.StatusCancelled
			}
		}
	}

	return result, nil
}

// matchLoop walks the opposite side of the book, filling the incoming
// order against resting orders in strict price-then-FIFO-time order.
func (e *Engine) matchLoop(incoming *orders.Order) ([]orders.Fill, error) {
	var fills []orders.Fill
	oppositeSide := incoming.Side.Opposite()

	// Orders pulled out of the book to implement skip_resting: a
	// self-matching resting order is removed so the walk can reach the
	// next-best order, then reinserted once the incoming order is done
	// matching. Removing and later reinserting (rather than mutating in
	// place) keeps the crossing loop's "always act on the book's current
	// best" invariant simple and avoids looping forever on a resting
	// order that keeps re-surfacing as best.
	var skipped []*orders.Order
	defer func() {
		for _, o := range skipped {
			// Insert error would mean a duplicate id, impossible here
			// since the order was only just removed from this book.
			_ = e.Book.Insert(o)
		}
	}()

	priceAcceptable := func(restingPrice fixedpoint.Fixed) bool {
		if incoming.Kind == orders.KindMarket {
			return true
		}
		if incoming.Side == orders.SideBuy {
			return restingPrice <= incoming.Price
		}
		return restingPrice >= incoming.Price
	}

	for incoming.RemainingQty() > 0 {
		level := e.Book.Best(oppositeSide)
		if level == nil {
			break
		}
		if !priceAcceptable(level.Price) {
			break
		}

		maker := level.Head().Order

		if e.isSelfMatch(incoming, maker) {
			cont, err := e.handleSelfMatch(incoming, maker, &skipped)
			if err != nil {
				return nil, err
			}
			if cont {
				continue
			}
			break
		}

		fillQty := minUint32(incoming.RemainingQty(), maker.RemainingQty())
		price := level.Price

		_, fullyConsumed, err := e.Book.Consume(incoming.Side, fillQty)
		if err != nil {
			return nil, err
		}

		incoming.QtyLeaves -= fillQty
		if fullyConsumed {
			maker.Status = orders.StatusFilled
		} else {
			maker.Status = orders.StatusPartiallyFilled
		}

		e.LastTradePrice = price
		fills = append(fills, orders.Fill{
			TradeID:      e.nextTradeIDVal(),
			MakerOrderID: maker.ID,
			TakerOrderID: incoming.ID,
			MakerTrader:  maker.TraderID,
			TakerTrader:  incoming.TraderID,
			Price:        price,
			Qty:          fillQty,
			TakerSide:    incoming.Side,
			TimestampNS:  incoming.TimestampNS,
		})
	}

	return fills, nil
}

// isSelfMatch reports whether filling the incoming order against maker
// would cross a single trader's own orders.
func (e *Engine) isSelfMatch(incoming, maker *orders.Order) bool {
	return incoming.TraderID != "" && incoming.TraderID == maker.TraderID
}

// handleSelfMatch applies SelfMatchPolicy when a self-cross is detected.
// Returns cont=true if the caller should continue the matching loop (the
// blocking resting order has been dealt with), or false if matching
// should stop for this incoming order (CancelIncoming).
func (e *Engine) handleSelfMatch(incoming, maker *orders.Order, skipped *[]*orders.Order) (cont bool, err error) {
	e.SelfMatches = append(e.SelfMatches, SelfMatchEvent{
		TraderID:        incoming.TraderID,
		IncomingOrderID: incoming.ID,
		RestingOrderID:  maker.ID,
	})

	switch e.SelfMatchPolicy {
	case CancelResting:
		e.Book.Cancel(maker.ID)
		maker.Status = orders.StatusCancelled
		return true, nil
	case CancelIncoming:
		incoming.Status = orders.StatusCancelled
		return false, nil
	default: // SkipRestingOrder
		if e.Book.Cancel(maker.ID) == nil {
			return false, fmt.Errorf("matching: self-match skip on missing order")
		}
		*skipped = append(*skipped, maker)
		return true, nil
	}
}

// canFillEntirely reports whether a FOK order could be completely filled
// against currently resting liquidity, without mutating the book. It
// never looks past what is resting right now, and it never partially
// fills.
func (e *Engine) canFillEntirely(o *orders.Order) bool {
	remaining := o.QtyOriginal
	side := o.Side.Opposite()

	priceOK := func(p fixedpoint.Fixed) bool {
		if o.Kind == orders.KindMarket {
			return true
		}
		if o.Side == orders.SideBuy {
			return p <= o.Price
		}
		return p >= o.Price
	}

	for _, level := range e.Book.Depth(side, 0) {
		if !priceOK(level.Price) {
			break
		}
		if level.TotalQty >= remaining {
			remaining = 0
			break
		}
		remaining -= level.TotalQty
	}

	return remaining == 0
}

// Cancel removes a resting order from the book.
func (e *Engine) Cancel(orderID uint64) (*orders.Order, error) {
	o := e.Book.Cancel(orderID)
	if o == nil {
		return nil, fmt.Errorf("unknown_order")
	}
	o.Status = orders.StatusCancelled
	return o, nil
}

// Mark returns the mark price used for unrealized P&L and margin checks:
// the mid of the best bid and ask if both sides of the book are resting,
// else the last trade price, else zero (no mark yet established).
func (e *Engine) Mark() fixedpoint.Fixed {
	bid, hasBid := e.Book.BestBid()
	ask, hasAsk := e.Book.BestAsk()
	if hasBid && hasAsk {
		return bid.Add(ask).Div(fixedpoint.FromInt(2))
	}
	if e.LastTradePrice != 0 {
		return e.LastTradePrice
	}
	return fixedpoint.Zero
}

// Lookup retrieves a resting order by id.
func (e *Engine) Lookup(orderID uint64) *orders.Order {
	return e.Book.Lookup(orderID)
}

// CancelAllFor cancels every resting order belonging to a trader, used
// for cancel-on-disconnect and explicit bulk cancellation. It returns
// the cancelled orders for event emission.
func (e *Engine) CancelAllFor(traderID string) []*orders.Order {
	ids := e.Book.OrderIDsByTrader(traderID)
	cancelled := make([]*orders.Order, 0, len(ids))
	for _, id := range ids {
		o := e.Book.Cancel(id)
		if o == nil {
			continue
		}
		o.Status = orders.StatusCancelled
		cancelled = append(cancelled, o)
	}
	return cancelled
}

func minUint32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
