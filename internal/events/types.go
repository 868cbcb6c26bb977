// Package events defines the closed outbound event set and the
// sequencer that stamps every event with a monotonic sequence number.
//
// Event Sourcing: state is reconstructed by replaying the inbound command
// log (internal/journal), not the outbound events themselves. Recovery
// discards post-crash outbound entries on replay, since they are
// re-derived identically from replaying the inbound commands. The
// outbound event stream exists for downstream consumers (market data,
// position feeds), not for recovery.
package events

import (
	"github.com/rishav/matchcore/internal/fixedpoint"
	"github.com/rishav/matchcore/internal/orders"
)

// Kind is the closed set of outbound event types the engine emits.
type Kind uint8

const (
	KindOrderAccepted Kind = iota + 1
	KindOrderRejected
	KindOrderCancelled
	KindTrade
	KindBookUpdate
	KindPositionUpdate
	KindLiquidation
	KindEngineFault
)

func (k Kind) String() string {
	switch k {
	case KindOrderAccepted:
		return "order_accepted"
	case KindOrderRejected:
		return "order_rejected"
	case KindOrderCancelled:
		return "order_cancelled"
	case KindTrade:
		return "trade"
	case KindBookUpdate:
		return "book_update"
	case KindPositionUpdate:
		return "position_update"
	case KindLiquidation:
		return "liquidation"
	case KindEngineFault:
		return "engine_fault"
	default:
		return "unknown"
	}
}

// Event is the envelope every outbound event carries: a monotonic
// sequence number, a timestamp, and exactly one populated payload
// matching Kind. It is a tagged union (one struct, one non-nil field)
// rather than a family of types, so callers can switch on Kind without
// a type assertion.
type Event struct {
	SequenceNum uint64
	TimestampNS int64
	Kind        Kind

	OrderAccepted  *OrderAccepted  `json:",omitempty"`
	OrderRejected  *OrderRejected  `json:",omitempty"`
	OrderCancelled *OrderCancelled `json:",omitempty"`
	Trade          *TradeFill      `json:",omitempty"`
	BookUpdate     *BookUpdate     `json:",omitempty"`
	PositionUpdate *PositionUpdate `json:",omitempty"`
	Liquidation    *Liquidation    `json:",omitempty"`
	EngineFault    *EngineFault    `json:",omitempty"`
}

type OrderAccepted struct {
	OrderID       uint64
	TraderID      string
	ClientOrderID string
	RestingQty    uint32
}

type OrderRejected struct {
	OrderID       uint64
	TraderID      string
	ClientOrderID string
	Reason        string
	// Details carries reason-specific context, e.g. {"equity": ...,
	// "required_margin": ...} for initial_margin_insufficient. Nil for
	// reasons that need no further context.
	Details map[string]string
}

type OrderCancelled struct {
	OrderID      uint64
	TraderID     string
	CancelledQty uint32
	Reason       string
}

type TradeFill struct {
	TradeID      uint64
	Price        fixedpoint.Fixed
	Qty          uint32
	BuyTraderID  string
	SellTraderID string
	BuyOrderID   uint64
	SellOrderID  uint64
}

type DepthLevel struct {
	Price fixedpoint.Fixed
	Qty   uint32
}

type BookUpdate struct {
	Bids []DepthLevel
	Asks []DepthLevel
}

type PositionUpdate struct {
	TraderID      string
	Position      int64
	AvgEntryPrice fixedpoint.Fixed
	RealizedPnL   fixedpoint.Fixed
	Cash          fixedpoint.Fixed
	UnrealizedPnL fixedpoint.Fixed
	TotalEquity   fixedpoint.Fixed
	MarkPrice     fixedpoint.Fixed
}

// Liquidation reason codes, per the closed set the maintenance scan and
// the liquidator can report.
const (
	ReasonMaintenanceMarginBreach = "maintenance_margin_breach"
	ReasonLiquidityExhausted      = "liquidity_exhausted"
)

type Liquidation struct {
	TraderID           string
	Side               orders.Side
	Reason             string
	AttemptedQty       uint32
	FilledQty          uint32
	Attempts           int
	LiquidityExhausted bool
}

// EngineFault is the terminal event journaled when a fatal engine
// invariant is violated. It is always the last event the pipeline
// emits before the core mutator halts.
type EngineFault struct {
	InvariantName string
	Details       string
}

// Sequencer hands out the monotonically increasing sequence_num every
// outbound event carries. It is deliberately not an atomic counter:
// events are only ever sequenced from the single core mutator goroutine,
// so a plain counter is correct and faster than a CAS-based claim.
type Sequencer struct {
	next uint64
}

// Next returns the next sequence number, starting at 1.
func (s *Sequencer) Next() uint64 {
	s.next++
	return s.next
}

// NewOrderAccepted builds an accepted-order event.
func NewOrderAccepted(seq *Sequencer, nowNS int64, o *orders.Order) Event {
	return Event{
		SequenceNum: seq.Next(),
		TimestampNS: nowNS,
		Kind:        KindOrderAccepted,
		OrderAccepted: &OrderAccepted{
			OrderID:       o.ID,
			TraderID:      o.TraderID,
			ClientOrderID: o.ClientOrderID,
			RestingQty:    o.RemainingQty(),
		},
	}
}

// NewOrderRejected builds a rejected-order event. details is nil except
// for rejections that carry reason-specific context (currently only
// initial_margin_insufficient's {equity, required_margin}).
func NewOrderRejected(seq *Sequencer, nowNS int64, o *orders.Order, reason string, details map[string]string) Event {
	return Event{
		SequenceNum: seq.Next(),
		TimestampNS: nowNS,
		Kind:        KindOrderRejected,
		OrderRejected: &OrderRejected{
			OrderID:       o.ID,
			TraderID:      o.TraderID,
			ClientOrderID: o.ClientOrderID,
			Reason:        reason,
			Details:       details,
		},
	}
}

// NewOrderCancelled builds a cancelled-order event.
func NewOrderCancelled(seq *Sequencer, nowNS int64, o *orders.Order, reason string) Event {
	return Event{
		SequenceNum: seq.Next(),
		TimestampNS: nowNS,
		Kind:        KindOrderCancelled,
		OrderCancelled: &OrderCancelled{
			OrderID:      o.ID,
			TraderID:     o.TraderID,
			CancelledQty: o.RemainingQty(),
			Reason:       reason,
		},
	}
}

// NewTrade builds a trade event from a fill.
func NewTrade(seq *Sequencer, nowNS int64, tradeID uint64, f orders.Fill) Event {
	buyOrderID, sellOrderID := f.MakerOrderID, f.TakerOrderID
	buyTrader, sellTrader := f.MakerTrader, f.TakerTrader
	if f.TakerSide == orders.SideBuy {
		buyOrderID, sellOrderID = f.TakerOrderID, f.MakerOrderID
		buyTrader, sellTrader = f.TakerTrader, f.MakerTrader
	}
	return Event{
		SequenceNum: seq.Next(),
		TimestampNS: nowNS,
		Kind:        KindTrade,
		Trade: &TradeFill{
			TradeID:      tradeID,
			Price:        f.Price,
			Qty:          f.Qty,
			BuyTraderID:  buyTrader,
			SellTraderID: sellTrader,
			BuyOrderID:   buyOrderID,
			SellOrderID:  sellOrderID,
		},
	}
}

// NewBookUpdate builds a depth snapshot event.
func NewBookUpdate(seq *Sequencer, nowNS int64, bids, asks []DepthLevel) Event {
	return Event{
		SequenceNum: seq.Next(),
		TimestampNS: nowNS,
		Kind:        KindBookUpdate,
		BookUpdate:  &BookUpdate{Bids: bids, Asks: asks},
	}
}

// NewPositionUpdate builds a position snapshot event, carrying both the
// ledger state (avg entry, realized P&L, cash) and the mark-derived
// figures (unrealized P&L, total equity, the mark price itself).
func NewPositionUpdate(seq *Sequencer, nowNS int64, traderID string, position int64, avgEntry, realized, cash, unrealized, totalEquity, mark fixedpoint.Fixed) Event {
	return Event{
		SequenceNum: seq.Next(),
		TimestampNS: nowNS,
		Kind:        KindPositionUpdate,
		PositionUpdate: &PositionUpdate{
			TraderID:      traderID,
			Position:      position,
			AvgEntryPrice: avgEntry,
			RealizedPnL:   realized,
			Cash:          cash,
			UnrealizedPnL: unrealized,
			TotalEquity:   totalEquity,
			MarkPrice:     mark,
		},
	}
}

// NewLiquidation builds a liquidation-attempt event.
func NewLiquidation(seq *Sequencer, nowNS int64, traderID string, side orders.Side, reason string, attemptedQty, filledQty uint32, attempts int, exhausted bool) Event {
	return Event{
		SequenceNum: seq.Next(),
		TimestampNS: nowNS,
		Kind:        KindLiquidation,
		Liquidation: &Liquidation{
			TraderID:           traderID,
			Side:               side,
			Reason:             reason,
			AttemptedQty:       attemptedQty,
			FilledQty:          filledQty,
			Attempts:           attempts,
			LiquidityExhausted: exhausted,
		},
	}
}

// NewEngineFault builds the terminal engine_fault event journaled when a
// fatal invariant is violated.
func NewEngineFault(seq *Sequencer, nowNS int64, invariantName, details string) Event {
	return Event{
		SequenceNum: seq.Next(),
		TimestampNS: nowNS,
		Kind:        KindEngineFault,
		EngineFault: &EngineFault{
			InvariantName: invariantName,
			Details:       details,
		},
	}
}
