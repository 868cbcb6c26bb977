package fixedpoint

import "testing"

func TestFromIntAndFloat64(t *testing.T) {
	f := FromInt(5)
	if f.Float64() != 5.0 {
		t.Errorf("expected 5.0, got %v", f.Float64())
	}

	g := FromFloat(3.25)
	if g.Float64() != 3.25 {
		t.Errorf("expected 3.25, got %v", g.Float64())
	}
}

func TestAddSub(t *testing.T) {
	a := FromInt(10)
	b := FromInt(3)

	if got := a.Add(b); got != FromInt(13) {
		t.Errorf("10+3: expected 13, got %v", got.Float64())
	}
	if got := a.Sub(b); got != FromInt(7) {
		t.Errorf("10-3: expected 7, got %v", got.Float64())
	}
}

func TestAddOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on overflow, got none")
		}
	}()
	a := Fixed(9223372036854775807)
	a.Add(FromInt(1))
}

func TestMulInt(t *testing.T) {
	price := FromInt(100)
	got := price.MulInt(7)
	if got != FromInt(700) {
		t.Errorf("100*7: expected 700, got %v", got.Float64())
	}

	neg := FromInt(-50).MulInt(4)
	if neg != FromInt(-200) {
		t.Errorf("-50*4: expected -200, got %v", neg.Float64())
	}
}

func TestMul(t *testing.T) {
	rate := FromFloat(0.05)
	notional := FromInt(1000)
	got := notional.Mul(rate)
	if got != FromInt(50) {
		t.Errorf("1000*0.05: expected 50, got %v", got.Float64())
	}
}

func TestDiv(t *testing.T) {
	got := FromInt(10).Div(FromInt(4))
	if got != FromFloat(2.5) {
		t.Errorf("10/4: expected 2.5, got %v", got.Float64())
	}
}

func TestDivByZeroPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on division by zero, got none")
		}
	}()
	FromInt(1).Div(Zero)
}

func TestCmp(t *testing.T) {
	if FromInt(1).Cmp(FromInt(2)) != -1 {
		t.Errorf("expected -1")
	}
	if FromInt(2).Cmp(FromInt(1)) != 1 {
		t.Errorf("expected 1")
	}
	if FromInt(2).Cmp(FromInt(2)) != 0 {
		t.Errorf("expected 0")
	}
}

func TestString(t *testing.T) {
	cases := map[Fixed]string{
		FromInt(5):     "5.0",
		FromFloat(3.5): "3.5",
		FromInt(-2):    "-2.0",
		Zero:           "0.0",
	}
	for f, want := range cases {
		if got := f.String(); got != want {
			t.Errorf("String(%d): expected %q, got %q", f, want, got)
		}
	}
}
