package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"gopkg.in/tomb.v2"

	"github.com/rishav/matchcore/internal/coreapi"
	"github.com/rishav/matchcore/internal/events"
	"github.com/rishav/matchcore/internal/fixedpoint"
	"github.com/rishav/matchcore/internal/journal"
	"github.com/rishav/matchcore/internal/liquidation"
	"github.com/rishav/matchcore/internal/matching"
	"github.com/rishav/matchcore/internal/position"
	"github.com/rishav/matchcore/internal/risk"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	engine := matching.New(matching.SkipRestingOrder)
	positions := position.NewBook(fixedpoint.FromInt(10000))
	gate := risk.NewGate(risk.DefaultConfig(), positions)
	liq := liquidation.New(gate, engine, positions, 3)
	core := NewCore(engine, gate, positions, liq, 10, zerolog.Nop())

	jw, err := journal.NewWriter(filepath.Join(t.TempDir(), "journal.log"))
	if err != nil {
		t.Fatalf("journal.NewWriter: %v", err)
	}

	p := New(core, jw, zerolog.Nop())
	p.t = &tomb.Tomb{}
	return p
}

// A command whose Kind claims CommandSubmitOrder but carries a nil
// SubmitOrder payload is malformed in a way CheckPreTrade never sees
// (the gate only runs once the payload is dereferenced), so it panics
// deep inside applySubmitOrder exactly the way a fatal engine invariant
// violation would. It stands in for a crossed-book/overflow panic
// without needing to coax the matching engine into an illegal state.
func malformedSubmitCommand() coreapi.Command {
	return coreapi.Command{Kind: coreapi.CommandSubmitOrder, TimestampNS: 1}
}

func TestApplyWithFaultHandlingEngagesKillSwitch(t *testing.T) {
	p := newTestPipeline(t)

	p.applyWithFaultHandling(malformedSubmitCommand())

	if !p.core.Engine.KillSwitch {
		t.Errorf("expected KillSwitch engaged after a fatal engine fault")
	}
}

func TestApplyWithFaultHandlingEmitsEngineFaultEvent(t *testing.T) {
	p := newTestPipeline(t)

	evts := p.applyWithFaultHandling(malformedSubmitCommand())

	if len(evts) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(evts))
	}
	if evts[0].Kind != events.KindEngineFault {
		t.Fatalf("expected KindEngineFault, got %s", evts[0].Kind)
	}
	if evts[0].EngineFault.InvariantName == "" {
		t.Errorf("expected a non-empty invariant_name")
	}
}

func TestApplyWithFaultHandlingKillsTomb(t *testing.T) {
	p := newTestPipeline(t)

	p.applyWithFaultHandling(malformedSubmitCommand())

	select {
	case <-p.t.Dying():
	default:
		t.Errorf("expected the tomb to be dying after a fatal engine fault")
	}
}
