package marketdata

import (
	"testing"

	"github.com/rishav/matchcore/internal/fixedpoint"
	"github.com/rishav/matchcore/internal/orderbook"
	"github.com/rishav/matchcore/internal/orders"
)

func TestSnapshotReturnsBestFirstBothSides(t *testing.T) {
	book := orderbook.New()
	book.Insert(&orders.Order{ID: 1, TraderID: "a", Side: orders.SideBuy, Kind: orders.KindLimit,
		Price: fixedpoint.FromInt(99), QtyOriginal: 5, QtyLeaves: 5})
	book.Insert(&orders.Order{ID: 2, TraderID: "b", Side: orders.SideBuy, Kind: orders.KindLimit,
		Price: fixedpoint.FromInt(100), QtyOriginal: 3, QtyLeaves: 3})
	book.Insert(&orders.Order{ID: 3, TraderID: "c", Side: orders.SideSell, Kind: orders.KindLimit,
		Price: fixedpoint.FromInt(101), QtyOriginal: 7, QtyLeaves: 7})

	bids, asks := Snapshot(book, 10)

	if len(bids) != 2 || bids[0].Price != fixedpoint.FromInt(100) {
		t.Errorf("expected best bid 100 first, got %+v", bids)
	}
	if len(asks) != 1 || asks[0].Qty != 7 {
		t.Errorf("expected one ask level with qty 7, got %+v", asks)
	}
}

func TestSnapshotRespectsDepthLimit(t *testing.T) {
	book := orderbook.New()
	for i := int64(0); i < 5; i++ {
		book.Insert(&orders.Order{ID: uint64(i + 1), TraderID: "t", Side: orders.SideSell, Kind: orders.KindLimit,
			Price: fixedpoint.FromInt(100 + i), QtyOriginal: 1, QtyLeaves: 1})
	}

	_, asks := Snapshot(book, 2)
	if len(asks) != 2 {
		t.Errorf("expected depth limited to 2 levels, got %d", len(asks))
	}
}

func TestSnapshotEmptyBook(t *testing.T) {
	book := orderbook.New()
	bids, asks := Snapshot(book, 10)
	if len(bids) != 0 || len(asks) != 0 {
		t.Errorf("expected empty snapshot for empty book")
	}
}
