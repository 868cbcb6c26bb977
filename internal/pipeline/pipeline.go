package pipeline

import (
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/tomb.v2"

	"github.com/rishav/matchcore/internal/coreapi"
	"github.com/rishav/matchcore/internal/events"
	"github.com/rishav/matchcore/internal/fixedpoint"
	"github.com/rishav/matchcore/internal/journal"
	"github.com/rishav/matchcore/internal/orderbook"
)

// IngressSize and EgressSize are the ring buffer capacities. Both must be
// powers of two, per RingBuffer's claim arithmetic.
const (
	IngressSize = 8192
	EgressSize  = 8192
)

// Pipeline wires the ingress ring, the core mutator, the recovery
// journal, and the egress ring together and supervises their lifecycle
// with a tomb.Tomb in place of a manual shutdownCh/shutdownDone pair:
// tomb.Tomb.Go/Kill/Wait gives the mutator goroutine a single supervised
// exit path instead of hand-rolled channel bookkeeping.
type Pipeline struct {
	Ingress *RingBuffer[coreapi.Command]
	Egress  *RingBuffer[events.Event]

	core    *Core
	journal *journal.Writer
	log     zerolog.Logger

	t *tomb.Tomb
}

// New creates a pipeline around an already-wired Core and an open
// journal writer positioned at the correct next sequence number (the
// caller runs journal.Replay before calling New, if resuming).
func New(core *Core, j *journal.Writer, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		Ingress: NewRingBuffer[coreapi.Command](IngressSize),
		Egress:  NewRingBuffer[events.Event](EgressSize),
		core:    core,
		journal: j,
		log:     log,
	}
}

// Start launches the core mutator goroutine under tomb supervision.
// Only one goroutine ever calls Core.Apply: matching, risk checks, and
// accounting all run single-threaded.
func (p *Pipeline) Start() {
	p.t = &tomb.Tomb{}
	p.t.Go(p.runCore)
}

// Submit claims a slot on the ingress ring and publishes cmd. It is safe
// to call from multiple goroutines (e.g. the normal submission path and
// the disconnect watcher injecting a synthetic CancelAllFor): Claim is
// CAS-based and supports concurrent producers.
func (p *Pipeline) Submit(cmd coreapi.Command) error {
	seq, err := p.Ingress.Claim()
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	p.Ingress.Publish(seq, cmd)
	return nil
}

// NotifyDisconnect injects a synthetic cancel_all_for command for a
// trader whose connection dropped. It goes through the same ingress
// ring and the same journal-before-mutation path as any client-issued
// command; there is no special-cased bypass.
func (p *Pipeline) NotifyDisconnect(traderID string, arrivalSeq uint64, nowNS int64) error {
	cmd := coreapi.NewCancelAllFor(arrivalSeq, nowNS, coreapi.CancelAllFor{
		TraderID: traderID,
		Reason:   "disconnect",
	})
	return p.Submit(cmd)
}

// runCore is the core mutator loop: pull one command, journal it before
// mutation, apply it, journal and publish every event it produces after
// mutation. It has no suspension points other than the ring's spin-wait
// (which is not a scheduling yield to arbitrary other work, just a
// bounded wait for the next publish) and the journal appends, which write
// every frame to the journal file as it is produced (the file is fsynced
// only in Stop). No timers or locks run inside this loop.
func (p *Pipeline) runCore() error {
	done := p.t.Dying()
	for {
		cmd, ok := p.Ingress.Next(done)
		if !ok {
			return nil
		}

		if _, err := p.journal.AppendInbound(cmd); err != nil {
			return fmt.Errorf("pipeline: journal inbound: %w", err)
		}

		evts := p.applyWithFaultHandling(cmd)

		for _, evt := range evts {
			if _, err := p.journal.AppendOutbound(evt); err != nil {
				return fmt.Errorf("pipeline: journal outbound: %w", err)
			}
			p.publish(evt)
		}
	}
}

// applyWithFaultHandling recovers a panic raised by Core.Apply (a fatal
// engine invariant violation) and turns it into a halted engine rather
// than crashing the goroutine silently or, worse, continuing with
// corrupted state. Per the fatal-invariant contract: the kill switch is
// set, a final engine_fault event is produced so runCore's normal
// journal/publish loop records it, and only then is the tomb killed so
// the mutator goroutine exits and no further commands are ever applied.
func (p *Pipeline) applyWithFaultHandling(cmd coreapi.Command) (evts []events.Event) {
	defer func() {
		if r := recover(); r != nil {
			p.core.Engine.KillSwitch = true
			invariantName, details := classifyFault(r)
			p.log.Error().Str("invariant", invariantName).Str("details", details).Msg("engine fault, halting")
			evts = []events.Event{events.NewEngineFault(p.core.Seq, cmd.TimestampNS, invariantName, details)}
			p.t.Kill(fmt.Errorf("pipeline: engine fault: %s: %s", invariantName, details))
		}
	}()
	return p.core.Apply(cmd)
}

// classifyFault maps a recovered panic value to the invariant_name and
// details carried on the engine_fault event.
func classifyFault(r interface{}) (invariantName, details string) {
	switch e := r.(type) {
	case *orderbook.InvariantError:
		return "crossed_book", e.Error()
	case *fixedpoint.OverflowError:
		return "arithmetic_overflow", e.Error()
	case error:
		return "engine_invariant", e.Error()
	default:
		return "engine_invariant", fmt.Sprintf("%v", r)
	}
}

// publish writes an event to the egress ring without blocking the core
// loop. If the egress ring is full (a slow or stalled consumer), the
// event is dropped rather than stalling matching: a drop-if-slow policy.
// The event was already durably journaled above, so a dropped egress
// publish never loses recoverable state, only a live notification.
func (p *Pipeline) publish(evt events.Event) {
	seq, err := p.Egress.Claim()
	if err != nil {
		p.log.Warn().Uint64("event_seq", evt.SequenceNum).Msg("egress ring full, dropping event")
		return
	}
	p.Egress.Publish(seq, evt)
}

// Stop signals the core goroutine to exit and waits for it, then syncs
// the journal to disk.
func (p *Pipeline) Stop() error {
	p.t.Kill(nil)
	if err := p.t.Wait(); err != nil {
		return err
	}
	return p.journal.Sync()
}
