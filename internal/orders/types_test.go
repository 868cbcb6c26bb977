package orders

import "testing"

func TestSideOppositeAndString(t *testing.T) {
	if SideBuy.Opposite() != SideSell {
		t.Errorf("expected SideSell, got %v", SideBuy.Opposite())
	}
	if SideSell.Opposite() != SideBuy {
		t.Errorf("expected SideBuy, got %v", SideSell.Opposite())
	}
	if SideBuy.String() != "BUY" {
		t.Errorf("expected BUY, got %s", SideBuy.String())
	}
}

func TestOrderRemainingAndFilled(t *testing.T) {
	o := &Order{QtyOriginal: 10, QtyLeaves: 4}
	if o.RemainingQty() != 4 {
		t.Errorf("expected 4, got %d", o.RemainingQty())
	}
	if o.IsFilled() {
		t.Errorf("expected not filled")
	}

	o.QtyLeaves = 0
	if !o.IsFilled() {
		t.Errorf("expected filled")
	}
}

func TestOrderIsActive(t *testing.T) {
	o := &Order{Status: StatusNew}
	if !o.IsActive() {
		t.Errorf("expected NEW to be active")
	}
	o.Status = StatusPartiallyFilled
	if !o.IsActive() {
		t.Errorf("expected PARTIALLY_FILLED to be active")
	}
	o.Status = StatusFilled
	if o.IsActive() {
		t.Errorf("expected FILLED to be inactive")
	}
	o.Status = StatusCancelled
	if o.IsActive() {
		t.Errorf("expected CANCELLED to be inactive")
	}
}

func TestOrderIsLiquidation(t *testing.T) {
	o := &Order{Tag: TagNormal}
	if o.IsLiquidation() {
		t.Errorf("expected normal order, not liquidation")
	}
	o.Tag = TagLiquidation
	if !o.IsLiquidation() {
		t.Errorf("expected liquidation tag to report true")
	}
}
