package pipeline

import (
	"github.com/rs/zerolog"

	"github.com/rishav/matchcore/internal/coreapi"
	"github.com/rishav/matchcore/internal/events"
	"github.com/rishav/matchcore/internal/liquidation"
	"github.com/rishav/matchcore/internal/marketdata"
	"github.com/rishav/matchcore/internal/matching"
	"github.com/rishav/matchcore/internal/orders"
	"github.com/rishav/matchcore/internal/position"
	"github.com/rishav/matchcore/internal/risk"
)

// Core is the single mutator: the only component that ever touches the
// matching engine, the position book, or the risk gate's state. It is
// an owned value, not a singleton; internal/pipeline drives it from
// exactly one goroutine.
type Core struct {
	Engine     *matching.Engine
	Gate       *risk.Gate
	Positions  *position.Book
	Liquidator *liquidation.Liquidator
	Seq        *events.Sequencer
	Log        zerolog.Logger

	// BookDepth is how many price levels per side go into a book_update
	// snapshot.
	BookDepth int
}

// NewCore wires the matching, risk, position, and liquidation components
// together the way cmd/enginectl's bootstrap does: inbound command ->
// risk gate -> matching engine -> position engine -> maintenance scan ->
// liquidator if breached -> event sequencer.
func NewCore(engine *matching.Engine, gate *risk.Gate, positions *position.Book, liq *liquidation.Liquidator, bookDepth int, log zerolog.Logger) *Core {
	return &Core{
		Engine:     engine,
		Gate:       gate,
		Positions:  positions,
		Liquidator: liq,
		Seq:        &events.Sequencer{},
		BookDepth:  bookDepth,
		Log:        log,
	}
}

// Apply runs one admitted command through the full pipeline and returns
// every outbound event it produces, in emission order. A fatal engine
// invariant violation (a crossed book after a match) is not recovered
// here; it propagates as a panic to the caller (applyWithFaultHandling,
// called from Pipeline.runCore), which turns it into an engine_fault event
// and a supervised shutdown. A fatal invariant always halts the engine.
func (c *Core) Apply(cmd coreapi.Command) []events.Event {
	switch cmd.Kind {
	case coreapi.CommandSubmitOrder:
		return c.applySubmitOrder(cmd)
	case coreapi.CommandCancelOrder:
		return c.applyCancelOrder(cmd)
	case coreapi.CommandCancelAllFor:
		return c.applyCancelAllFor(cmd)
	case coreapi.CommandAdminHalt:
		c.Engine.KillSwitch = true
		c.Log.Warn().Str("reason", cmd.AdminHalt.Reason).Msg("kill switch engaged")
		return nil
	case coreapi.CommandAdminResume:
		c.Engine.KillSwitch = false
		if tid := cmd.AdminResume.UnfreezeTraderID; tid != "" {
			c.Positions.Account(tid).Frozen = false
		}
		c.Log.Info().Msg("kill switch cleared")
		return nil
	default:
		c.Log.Error().Uint8("kind", uint8(cmd.Kind)).Msg("unknown command kind, dropping")
		return nil
	}
}

func (c *Core) applySubmitOrder(cmd coreapi.Command) []events.Event {
	p := cmd.SubmitOrder
	o := &orders.Order{
		ArrivalSeq:    cmd.ArrivalSeq,
		ClientOrderID: p.ClientOrderID,
		TraderID:      p.TraderID,
		Side:          p.Side,
		Kind:          p.Kind,
		TIF:           p.TIF,
		Tag:           orders.TagNormal,
		Price:         p.Price,
		QtyOriginal:   p.Qty,
		QtyLeaves:     p.Qty,
		TimestampNS:   cmd.TimestampNS,
	}

	reason, details := c.Gate.CheckPreTrade(o, c.Engine.KillSwitch, cmd.TimestampNS, false)
	if reason != risk.ReasonNone {
		return []events.Event{events.NewOrderRejected(c.Seq, cmd.TimestampNS, o, string(reason), details)}
	}

	result, err := c.Engine.Submit(o)
	if err != nil {
		panic(err)
	}
	if !result.Accepted {
		return []events.Event{events.NewOrderRejected(c.Seq, cmd.TimestampNS, o, result.RejectReason, nil)}
	}

	var out []events.Event
	out = append(out, events.NewOrderAccepted(c.Seq, cmd.TimestampNS, o))

	for _, f := range result.Fills {
		out = append(out, events.NewTrade(c.Seq, cmd.TimestampNS, f.TradeID, f))
		c.Positions.ApplyFill(f)
		c.Gate.SetReferencePrice(f.Price)

		buyTrader, sellTrader := f.TakerTrader, f.MakerTrader
		if f.TakerSide == orders.SideSell {
			buyTrader, sellTrader = f.MakerTrader, f.TakerTrader
		}
		out = append(out, c.positionUpdateEvent(cmd.TimestampNS, buyTrader))
		out = append(out, c.positionUpdateEvent(cmd.TimestampNS, sellTrader))
	}

	if len(result.Fills) > 0 {
		bids, asks := marketdata.Snapshot(c.Engine.Book, c.BookDepth)
		out = append(out, events.NewBookUpdate(c.Seq, cmd.TimestampNS, bids, asks))
		out = append(out, c.runMaintenanceScan(cmd.TimestampNS)...)
	}

	return out
}

func (c *Core) applyCancelOrder(cmd coreapi.Command) []events.Event {
	p := cmd.CancelOrder
	o, err := c.Engine.Cancel(p.OrderID)
	if err != nil {
		placeholder := &orders.Order{ID: p.OrderID, TraderID: p.TraderID}
		return []events.Event{events.NewOrderRejected(c.Seq, cmd.TimestampNS, placeholder, string(risk.ReasonUnknownOrder), nil)}
	}
	return []events.Event{events.NewOrderCancelled(c.Seq, cmd.TimestampNS, o, "user_cancelled")}
}

func (c *Core) applyCancelAllFor(cmd coreapi.Command) []events.Event {
	p := cmd.CancelAllFor
	cancelled := c.Engine.CancelAllFor(p.TraderID)
	out := make([]events.Event, 0, len(cancelled))
	for _, o := range cancelled {
		out = append(out, events.NewOrderCancelled(c.Seq, cmd.TimestampNS, o, p.Reason))
	}
	return out
}

// runMaintenanceScan is the "maintenance scan -> liquidator if breach"
// step of the data flow, run after every fill since a fill is the only
// thing that can move an account's equity against its position.
func (c *Core) runMaintenanceScan(nowNS int64) []events.Event {
	mark := c.Engine.Mark()
	breached := c.Gate.ScanMaintenance(c.Positions.Accounts(), mark)
	if len(breached) == 0 {
		return nil
	}

	var out []events.Event
	for _, traderID := range breached {
		outcome := c.Liquidator.Run(traderID, nowNS, c.Engine.NextOrderID)
		out = append(out, events.NewLiquidation(c.Seq, nowNS, outcome.TraderID, outcome.Side, outcome.Reason, outcome.AttemptedQty, outcome.FilledQty, outcome.Attempts, outcome.LiquidityExhausted))
		out = append(out, c.positionUpdateEvent(nowNS, traderID))
	}
	return out
}

func (c *Core) positionUpdateEvent(nowNS int64, traderID string) events.Event {
	acct := c.Positions.Account(traderID)
	mark := c.Engine.Mark()
	unrealized := acct.UnrealizedPnL(mark)
	equity := acct.TotalEquity(mark)
	return events.NewPositionUpdate(c.Seq, nowNS, traderID, acct.Position, acct.AvgEntryPrice, acct.RealizedPnL, acct.Cash, unrealized, equity, mark)
}
