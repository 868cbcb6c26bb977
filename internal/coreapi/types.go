// Package coreapi defines the closed inbound command set the core engine
// accepts. It is types only: no listener, no socket, no wire codec.
// Whatever sits in front of the core (a network gateway, a script
// reader, a journal replayer) constructs these values directly;
// coreapi does not know or care which.
package coreapi

import (
	"github.com/rishav/matchcore/internal/fixedpoint"
	"github.com/rishav/matchcore/internal/orders"
)

// CommandKind is the closed set of inbound commands the core accepts.
type CommandKind uint8

const (
	CommandSubmitOrder CommandKind = iota + 1
	CommandCancelOrder
	CommandCancelAllFor
	CommandAdminHalt
	CommandAdminResume
)

func (k CommandKind) String() string {
	switch k {
	case CommandSubmitOrder:
		return "submit_order"
	case CommandCancelOrder:
		return "cancel_order"
	case CommandCancelAllFor:
		return "cancel_all_for"
	case CommandAdminHalt:
		return "admin_halt"
	case CommandAdminResume:
		return "admin_resume"
	default:
		return "unknown"
	}
}

// Command is the tagged-union envelope every inbound message carries: an
// arrival sequence, a timestamp, and exactly one populated payload
// matching Kind. Every command that mutates state is journaled in this
// exact form before the core touches anything, so replay can reconstruct
// it byte-for-byte.
type Command struct {
	ArrivalSeq  uint64
	TimestampNS int64
	Kind        CommandKind

	SubmitOrder  *SubmitOrder  `json:",omitempty"`
	CancelOrder  *CancelOrder  `json:",omitempty"`
	CancelAllFor *CancelAllFor `json:",omitempty"`
	AdminHalt    *AdminHalt    `json:",omitempty"`
	AdminResume  *AdminResume  `json:",omitempty"`
}

// SubmitOrder carries a new order for the matching engine.
type SubmitOrder struct {
	ClientOrderID string
	TraderID      string
	Side          orders.Side
	Kind          orders.Kind
	TIF           orders.TimeInForce
	Price         fixedpoint.Fixed
	Qty           uint32
}

// CancelOrder requests cancellation of a single resting order.
type CancelOrder struct {
	OrderID  uint64
	TraderID string
}

// CancelAllFor cancels every resting order belonging to a trader. It is
// issued by the pipeline itself as a synthetic command on disconnect, or
// may arrive from the gateway directly as an explicit bulk-cancel.
type CancelAllFor struct {
	TraderID string
	Reason   string // e.g. "disconnect"
}

// AdminHalt engages the kill switch: every subsequent order submission is
// rejected with exchange_halted until an AdminResume clears it. Cancels
// and admin commands are still applied.
type AdminHalt struct {
	Reason string
}

// AdminResume clears the kill switch and, if set, un-freezes a specific
// account previously frozen by liquidity_exhausted.
type AdminResume struct {
	UnfreezeTraderID string // empty means "resume matching only"
}

// NewSubmitOrder builds a submit_order command.
func NewSubmitOrder(arrivalSeq uint64, nowNS int64, payload SubmitOrder) Command {
	return Command{ArrivalSeq: arrivalSeq, TimestampNS: nowNS, Kind: CommandSubmitOrder, SubmitOrder: &payload}
}

// NewCancelOrder builds a cancel_order command.
func NewCancelOrder(arrivalSeq uint64, nowNS int64, payload CancelOrder) Command {
	return Command{ArrivalSeq: arrivalSeq, TimestampNS: nowNS, Kind: CommandCancelOrder, CancelOrder: &payload}
}

// NewCancelAllFor builds a cancel_all_for command.
func NewCancelAllFor(arrivalSeq uint64, nowNS int64, payload CancelAllFor) Command {
	return Command{ArrivalSeq: arrivalSeq, TimestampNS: nowNS, Kind: CommandCancelAllFor, CancelAllFor: &payload}
}

// NewAdminHalt builds an admin_halt command.
func NewAdminHalt(arrivalSeq uint64, nowNS int64, payload AdminHalt) Command {
	return Command{ArrivalSeq: arrivalSeq, TimestampNS: nowNS, Kind: CommandAdminHalt, AdminHalt: &payload}
}

// NewAdminResume builds an admin_resume command.
func NewAdminResume(arrivalSeq uint64, nowNS int64, payload AdminResume) Command {
	return Command{ArrivalSeq: arrivalSeq, TimestampNS: nowNS, Kind: CommandAdminResume, AdminResume: &payload}
}
