// Command enginectl is a local driver for the matching core: it wires
// config, the journal, the pipeline, and the matching/risk/position/
// liquidation components together, then either replays an existing
// journal or feeds it a line-oriented command script and prints the
// outbound events produced. It is explicitly not a network gateway:
// no listener, no socket, no HTTP. A transport adapter is a separate
// concern layered on top of this driver, not part of it.
//
// Follows cmd/server/main.go's component-wiring and graceful-
// shutdown-ordering sequence; all net/http handler code is dropped.
// cmd/client/main.go's command-line argument shape (side/type/price/
// qty flags) is reused for the script line grammar below instead of
// HTTP request bodies.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rishav/matchcore/internal/config"
	"github.com/rishav/matchcore/internal/coreapi"
	"github.com/rishav/matchcore/internal/events"
	"github.com/rishav/matchcore/internal/fixedpoint"
	"github.com/rishav/matchcore/internal/journal"
	"github.com/rishav/matchcore/internal/liquidation"
	"github.com/rishav/matchcore/internal/matching"
	"github.com/rishav/matchcore/internal/orders"
	"github.com/rishav/matchcore/internal/pipeline"
	"github.com/rishav/matchcore/internal/position"
	"github.com/rishav/matchcore/internal/risk"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	scriptPath := flag.String("script", "", "line-oriented command script to feed the engine")
	replayOnly := flag.Bool("replay-only", false, "replay the journal and exit without accepting new commands")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	if err := run(cfg, *scriptPath, *replayOnly, log); err != nil {
		log.Fatal().Err(err).Msg("engine run failed")
	}
}

func run(cfg config.Config, scriptPath string, replayOnly bool, log zerolog.Logger) error {
	positions := position.NewBook(fixedpoint.FromFloat(cfg.StartingCapital))
	engine := matching.New(cfg.SelfMatchEnginePolicy())
	gate := risk.NewGate(cfg.RiskConfig(), positions)
	liq := liquidation.New(gate, engine, positions, cfg.LiquidationMaxAttempts)

	core := pipeline.NewCore(engine, gate, positions, liq, cfg.BookDepthInUpdates, log)

	lastSeq, err := journal.Replay(cfg.JournalPath, func(f journal.Frame) error {
		if f.Kind != journal.FrameInbound {
			return nil
		}
		var cmd coreapi.Command
		if err := f.Decode(&cmd); err != nil {
			return err
		}
		core.Apply(cmd)
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay journal: %w", err)
	}
	log.Info().Uint64("last_seq", lastSeq).Msg("journal replay complete")

	if replayOnly {
		printAccounts(positions)
		return nil
	}

	w, err := journal.NewWriter(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	w.SeedSequence(lastSeq)
	defer w.Close()

	p := pipeline.New(core, w, log)
	p.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	arrivalSeq := lastSeq
	nextArrivalSeq := func() uint64 {
		arrivalSeq++
		return arrivalSeq
	}

	if scriptPath != "" {
		if err := feedScript(p, scriptPath, nextArrivalSeq, log); err != nil {
			return fmt.Errorf("feed script: %w", err)
		}
	}

	drainDone := make(chan struct{})
	go drainEgress(p, log, drainDone)

	select {
	case <-sigCh:
		log.Info().Msg("signal received, shutting down")
	case <-time.After(200 * time.Millisecond):
		// Gives the core a moment to drain a script-fed batch before a
		// non-interactive run exits on its own.
	}

	if err := p.Stop(); err != nil {
		return fmt.Errorf("pipeline stop: %w", err)
	}
	close(drainDone)

	printAccounts(positions)
	return nil
}

// feedScript parses a line-oriented command file and submits each line as
// a command. Blank lines and lines starting with # are skipped.
//
// Grammar (whitespace-separated fields):
//
//	submit <trader> <buy|sell> <limit|market|ioc|fok> <price> <qty>
//	cancel <trader> <order_id>
//	cancelall <trader>
//	halt <reason...>
//	resume [unfreeze_trader]
func feedScript(p *pipeline.Pipeline, path string, nextArrivalSeq func() uint64, log zerolog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, err := parseLine(line, nextArrivalSeq())
		if err != nil {
			log.Warn().Err(err).Str("line", line).Msg("skipping malformed script line")
			continue
		}
		if err := p.Submit(cmd); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func parseLine(line string, arrivalSeq uint64) (coreapi.Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return coreapi.Command{}, fmt.Errorf("empty line")
	}
	nowNS := time.Now().UnixNano()

	switch fields[0] {
	case "submit":
		if len(fields) != 6 {
			return coreapi.Command{}, fmt.Errorf("submit wants 5 args, got %d", len(fields)-1)
		}
		side, err := parseSide(fields[2])
		if err != nil {
			return coreapi.Command{}, err
		}
		kind, tif, err := parseKind(fields[3])
		if err != nil {
			return coreapi.Command{}, err
		}
		price, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return coreapi.Command{}, fmt.Errorf("bad price: %w", err)
		}
		qty, err := strconv.ParseUint(fields[5], 10, 32)
		if err != nil {
			return coreapi.Command{}, fmt.Errorf("bad qty: %w", err)
		}
		return coreapi.NewSubmitOrder(arrivalSeq, nowNS, coreapi.SubmitOrder{
			TraderID: fields[1],
			Side:     side,
			Kind:     kind,
			TIF:      tif,
			Price:    fixedpoint.FromFloat(price),
			Qty:      uint32(qty),
		}), nil

	case "cancel":
		if len(fields) != 3 {
			return coreapi.Command{}, fmt.Errorf("cancel wants 2 args, got %d", len(fields)-1)
		}
		orderID, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return coreapi.Command{}, fmt.Errorf("bad order id: %w", err)
		}
		return coreapi.NewCancelOrder(arrivalSeq, nowNS, coreapi.CancelOrder{TraderID: fields[1], OrderID: orderID}), nil

	case "cancelall":
		if len(fields) != 2 {
			return coreapi.Command{}, fmt.Errorf("cancelall wants 1 arg, got %d", len(fields)-1)
		}
		return coreapi.NewCancelAllFor(arrivalSeq, nowNS, coreapi.CancelAllFor{TraderID: fields[1], Reason: "explicit"}), nil

	case "halt":
		return coreapi.NewAdminHalt(arrivalSeq, nowNS, coreapi.AdminHalt{Reason: strings.Join(fields[1:], " ")}), nil

	case "resume":
		unfreeze := ""
		if len(fields) > 1 {
			unfreeze = fields[1]
		}
		return coreapi.NewAdminResume(arrivalSeq, nowNS, coreapi.AdminResume{UnfreezeTraderID: unfreeze}), nil

	default:
		return coreapi.Command{}, fmt.Errorf("unknown command %q", fields[0])
	}
}

func parseSide(s string) (orders.Side, error) {
	switch s {
	case "buy":
		return orders.SideBuy, nil
	case "sell":
		return orders.SideSell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

func parseKind(s string) (orders.Kind, orders.TimeInForce, error) {
	switch s {
	case "limit":
		return orders.KindLimit, orders.GTC, nil
	case "ioc":
		return orders.KindLimit, orders.ImmediateOnly, nil
	case "market":
		return orders.KindMarket, orders.ImmediateOnly, nil
	case "fok":
		return orders.KindFOK, orders.ImmediateOnly, nil
	default:
		return 0, 0, fmt.Errorf("unknown order kind %q", s)
	}
}

func drainEgress(p *pipeline.Pipeline, log zerolog.Logger, done <-chan struct{}) {
	for {
		evt, ok := p.Egress.Next(done)
		if !ok {
			return
		}
		printEvent(evt, log)
	}
}

func printEvent(evt events.Event, log zerolog.Logger) {
	entry := log.Info().Uint64("seq", evt.SequenceNum).Str("kind", evt.Kind.String())
	switch evt.Kind {
	case events.KindTrade:
		entry.Uint64("trade_id", evt.Trade.TradeID).Str("price", evt.Trade.Price.String()).Uint32("qty", evt.Trade.Qty)
	case events.KindOrderAccepted:
		entry.Uint64("order_id", evt.OrderAccepted.OrderID)
	case events.KindOrderRejected:
		entry.Uint64("order_id", evt.OrderRejected.OrderID).Str("reason", evt.OrderRejected.Reason)
	case events.KindLiquidation:
		entry.Str("trader", evt.Liquidation.TraderID).Str("side", evt.Liquidation.Side.String()).
			Str("reason", evt.Liquidation.Reason).Bool("liquidity_exhausted", evt.Liquidation.LiquidityExhausted)
	case events.KindPositionUpdate:
		entry.Str("trader", evt.PositionUpdate.TraderID).Str("mark_price", evt.PositionUpdate.MarkPrice.String()).
			Str("total_equity", evt.PositionUpdate.TotalEquity.String())
	case events.KindEngineFault:
		entry.Str("invariant", evt.EngineFault.InvariantName).Str("details", evt.EngineFault.Details)
	}
	entry.Msg("event")
}

func printAccounts(positions *position.Book) {
	for id, acct := range positions.Accounts() {
		fmt.Printf("%s: position=%d cash=%s avg_entry=%s realized_pnl=%s frozen=%v\n",
			id, acct.Position, acct.Cash, acct.AvgEntryPrice, acct.RealizedPnL, acct.Frozen)
	}
}
