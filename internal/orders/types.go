// Package orders defines the core order and trade types the matching and
// accounting core operates on.
//
// Key design decisions:
//
//  1. Fixed-Point Arithmetic: prices are fixedpoint.Fixed values (int64
//     scaled by 10^8), never float64. This is critical in financial
//     systems where accumulated rounding errors are unacceptable.
//
//  2. Sequence Numbers: every admitted command receives a globally unique,
//     monotonically increasing arrival sequence number. This enables
//     deterministic replay (rebuild state by replaying commands in order),
//     fair ordering (prove orders were processed in arrival order), and
//     gap detection (a missing sequence number means a corrupted journal).
//
//  3. Time Representation: timestamps use nanoseconds since Unix epoch
//     (int64) for high precision without the overhead of time.Time.
package orders

import (
	"fmt"

	"github.com/rishav/matchcore/internal/fixedpoint"
)

// Side represents the side of an order (buy or sell).
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the opposite side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Kind represents the type of order and its execution semantics.
type Kind int

const (
	// KindLimit rests in the book until filled or cancelled. Only
	// executes at the specified price or better.
	KindLimit Kind = iota

	// KindMarket executes immediately at the best available price. No
	// price protection; will fill at whatever price is available.
	KindMarket

	// KindFOK (Fill-or-Kill) must be filled entirely or not at all. If
	// the full quantity cannot be matched against currently resting
	// liquidity at admission time, the entire order is discarded. No
	// partial fills allowed.
	KindFOK
)

func (k Kind) String() string {
	switch k {
	case KindLimit:
		return "LIMIT"
	case KindMarket:
		return "MARKET"
	case KindFOK:
		return "FOK"
	default:
		return "UNKNOWN"
	}
}

// TimeInForce constrains how long an order is eligible to rest in the
// book. Market and FOK orders always behave as ImmediateOnly regardless
// of the field's value. Immediate-or-Cancel is not a separate Kind: it
// is a Limit order with TIF set to ImmediateOnly, discarding any
// remaining quantity instead of resting.
type TimeInForce int

const (
	GTC TimeInForce = iota // Good-Til-Cancelled: rests until filled or cancelled.
	ImmediateOnly
)

// Status represents the current state of an order.
type Status int

const (
	StatusNew Status = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Tag marks an order's provenance. Ordinary client orders are TagNormal;
// the liquidator stamps its synthetic unwind orders TagLiquidation. The
// risk gate does not read Tag: the liquidator skips the initial-margin
// re-check by passing skipMarginCheck to CheckPreTrade.
type Tag int

const (
	TagNormal Tag = iota
	TagLiquidation
)

// Order represents a single order admitted into the matching engine.
type Order struct {
	ID uint64

	// ArrivalSeq is the global sequence number assigned at admission,
	// ahead of the risk gate. It is the canonical arrival order used for
	// price-time priority and deterministic replay.
	ArrivalSeq uint64

	TraderID      string
	ClientOrderID string

	Side Side
	Kind Kind
	TIF  TimeInForce
	Tag  Tag

	// Price is ignored for Market orders.
	Price       fixedpoint.Fixed
	QtyOriginal uint32
	QtyLeaves   uint32

	TimestampNS int64
	Status      Status
}

// RemainingQty returns the unfilled quantity of the order.
func (o *Order) RemainingQty() uint32 {
	return o.QtyLeaves
}

// IsFilled returns true if the order has no quantity left to fill.
func (o *Order) IsFilled() bool {
	return o.QtyLeaves == 0
}

// IsActive returns true if the order can still be matched against.
func (o *Order) IsActive() bool {
	return o.Status == StatusNew || o.Status == StatusPartiallyFilled
}

// IsLiquidation reports whether this order was generated by the
// liquidator rather than submitted by a client.
func (o *Order) IsLiquidation() bool {
	return o.Tag == TagLiquidation
}

func (o *Order) String() string {
	return fmt.Sprintf("Order{ID:%d trader:%s %s %s %d@%s leaves:%d status:%s}",
		o.ID, o.TraderID, o.Side, o.Kind, o.QtyOriginal, o.Price, o.QtyLeaves, o.Status)
}

// Fill represents a single execution between an incoming (taker) order
// and a resting (maker) order.
type Fill struct {
	TradeID      uint64
	MakerOrderID uint64
	TakerOrderID uint64
	MakerTrader  string
	TakerTrader  string

	// Price is always the maker's resting price: price improvement for
	// the taker.
	Price fixedpoint.Fixed
	Qty   uint32

	TakerSide   Side
	TimestampNS int64
}

// Trade is the canonical, symmetric record of a completed execution, as
// emitted on the outbound event stream.
type Trade struct {
	TradeID      uint64
	Price        fixedpoint.Fixed
	Qty          uint32
	BuyTraderID  string
	SellTraderID string
	BuyOrderID   uint64
	SellOrderID  uint64
	TimestampNS  int64
}

// ExecutionResult is the outcome of admitting an order into the matching
// engine: the (possibly mutated) order, any fills it produced, and,
// for rejections, the reason code from the closed set.
type ExecutionResult struct {
	Order        *Order
	Fills        []Fill
	Accepted     bool
	RejectReason string
}
