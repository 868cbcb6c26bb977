package coreapi

import "testing"

func TestCommandKindString(t *testing.T) {
	cases := map[CommandKind]string{
		CommandSubmitOrder:  "submit_order",
		CommandCancelOrder:  "cancel_order",
		CommandCancelAllFor: "cancel_all_for",
		CommandAdminHalt:    "admin_halt",
		CommandAdminResume:  "admin_resume",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("CommandKind(%d): expected %q, got %q", kind, want, got)
		}
	}
}

func TestNewSubmitOrderSetsExactlyOnePayload(t *testing.T) {
	cmd := NewSubmitOrder(1, 100, SubmitOrder{TraderID: "a", Qty: 5})
	if cmd.Kind != CommandSubmitOrder {
		t.Errorf("expected CommandSubmitOrder kind")
	}
	if cmd.SubmitOrder == nil || cmd.SubmitOrder.TraderID != "a" {
		t.Fatalf("expected SubmitOrder payload populated")
	}
	if cmd.CancelOrder != nil || cmd.CancelAllFor != nil || cmd.AdminHalt != nil || cmd.AdminResume != nil {
		t.Errorf("expected only SubmitOrder populated in the envelope")
	}
	if cmd.ArrivalSeq != 1 || cmd.TimestampNS != 100 {
		t.Errorf("expected arrival seq/timestamp carried through unchanged")
	}
}

func TestNewCancelAllForCarriesReason(t *testing.T) {
	cmd := NewCancelAllFor(2, 200, CancelAllFor{TraderID: "a", Reason: "disconnect"})
	if cmd.CancelAllFor.Reason != "disconnect" {
		t.Errorf("expected reason 'disconnect', got %q", cmd.CancelAllFor.Reason)
	}
}
