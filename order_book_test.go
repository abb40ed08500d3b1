package match

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testOrders hands out pending orders with increasing sequence numbers.
type testOrders struct {
	seq uint64
}

func (f *testOrders) new(id string, side Side, typ OrderType, price, size string) *Order {
	f.seq++
	o := &Order{
		ID:         id,
		Instrument: "BTC-USDT",
		Side:       side,
		Type:       typ,
		Quantity:   decimal.RequireFromString(size),
		Remaining:  decimal.RequireFromString(size),
		Sequence:   f.seq,
		Status:     StatusPending,
	}
	if price != "" {
		o.Price = decimal.RequireFromString(price)
	}
	return o
}

func createTestOrderBook(t *testing.T) (*OrderBook, *testOrders) {
	t.Helper()

	book := NewOrderBook("BTC-USDT")
	f := &testOrders{}

	require.NoError(t, book.Insert(f.new("buy-1", Buy, Limit, "90", "1")))
	require.NoError(t, book.Insert(f.new("buy-2", Buy, Limit, "80", "1")))
	require.NoError(t, book.Insert(f.new("buy-3", Buy, Limit, "70", "1")))
	require.NoError(t, book.Insert(f.new("sell-1", Sell, Limit, "110", "1")))
	require.NoError(t, book.Insert(f.new("sell-2", Sell, Limit, "120", "1")))
	require.NoError(t, book.Insert(f.new("sell-3", Sell, Limit, "130", "1")))
	book.drainChanges()

	return book, f
}

func TestOrderBookInsert(t *testing.T) {
	t.Run("rests at tail of level", func(t *testing.T) {
		book, f := createTestOrderBook(t)

		require.NoError(t, book.Insert(f.new("buy-4", Buy, Limit, "90", "2")))

		lvl := book.PeekBest(Buy)
		require.NotNil(t, lvl)
		assert.Equal(t, "90", lvl.Price().String())
		assert.Equal(t, "3", lvl.TotalSize().String())
		orders := lvl.Orders()
		require.Len(t, orders, 2)
		assert.Equal(t, "buy-1", orders[0].ID)
		assert.Equal(t, "buy-4", orders[1].ID)
		assert.Equal(t, StatusResting, orders[1].Status)
		require.NoError(t, book.CheckInvariants())
	})

	t.Run("crossing order is an invariant error", func(t *testing.T) {
		book, f := createTestOrderBook(t)

		err := book.Insert(f.new("buy-x", Buy, Limit, "110", "1"))
		assert.ErrorIs(t, err, ErrInvariant)

		stats := book.Stats()
		assert.Equal(t, int64(3), stats.BidOrderCount)
		require.NoError(t, book.CheckInvariants())
	})

	t.Run("duplicate id", func(t *testing.T) {
		book, f := createTestOrderBook(t)

		err := book.Insert(f.new("buy-1", Buy, Limit, "60", "1"))
		assert.ErrorIs(t, err, ErrInvariant)
	})

	t.Run("zero remaining", func(t *testing.T) {
		book, f := createTestOrderBook(t)

		err := book.Insert(f.new("buy-0", Buy, Limit, "60", "0"))
		assert.ErrorIs(t, err, ErrInvariant)
	})
}

func TestOrderBookReduceOrCancel(t *testing.T) {
	book, f := createTestOrderBook(t)
	require.NoError(t, book.Insert(f.new("sell-4", Sell, Limit, "110", "5")))
	book.drainChanges()

	t.Run("partial keeps priority", func(t *testing.T) {
		order, err := book.ReduceOrCancel("sell-4", decimal.NewFromInt(2))
		require.NoError(t, err)
		assert.Equal(t, "3", order.Remaining.String())
		assert.Equal(t, StatusResting, order.Status)

		lvl := book.PeekBest(Sell)
		assert.Equal(t, "4", lvl.TotalSize().String())
		assert.Equal(t, "sell-1", lvl.Orders()[0].ID)
		require.NoError(t, book.CheckInvariants())
	})

	t.Run("more than remaining fails without mutation", func(t *testing.T) {
		_, err := book.ReduceOrCancel("sell-4", decimal.NewFromInt(4))
		assert.ErrorIs(t, err, ErrInvariant)

		order, ok := book.Order("sell-4")
		require.True(t, ok)
		assert.Equal(t, "3", order.Remaining.String())
		require.NoError(t, book.CheckInvariants())
	})

	t.Run("reaching zero removes order and level", func(t *testing.T) {
		book.drainChanges()

		order, err := book.ReduceOrCancel("sell-1", decimal.NewFromInt(1))
		require.NoError(t, err)
		assert.Equal(t, StatusFilled, order.Status)
		_, ok := book.Order("sell-1")
		assert.False(t, ok)

		_, err = book.ReduceOrCancel("sell-4", decimal.NewFromInt(3))
		require.NoError(t, err)

		lvl := book.PeekBest(Sell)
		assert.Equal(t, "120", lvl.Price().String())

		changes := book.drainChanges()
		require.Len(t, changes, 1)
		assert.Equal(t, Sell, changes[0].Side)
		assert.Equal(t, "110", changes[0].Price.String())
		assert.True(t, changes[0].Size.IsZero())
		assert.Equal(t, int64(0), changes[0].Count)
		require.NoError(t, book.CheckInvariants())
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := book.ReduceOrCancel("nope", decimal.NewFromInt(1))
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestOrderBookCancel(t *testing.T) {
	book, _ := createTestOrderBook(t)

	order, err := book.Cancel("buy-2")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, order.Status)
	assert.Equal(t, "1", order.Remaining.String())

	_, err = book.Cancel("buy-2")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = book.Cancel("unknown")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	bids := book.Depth(Buy, 10)
	require.Len(t, bids, 2)
	assert.Equal(t, "90", bids[0].Price.String())
	assert.Equal(t, "70", bids[1].Price.String())

	changes := book.drainChanges()
	require.Len(t, changes, 1)
	assert.Equal(t, "80", changes[0].Price.String())
	assert.True(t, changes[0].Size.IsZero())
	assert.Empty(t, book.drainChanges())
	require.NoError(t, book.CheckInvariants())
}

func TestOrderBookRemoveBest(t *testing.T) {
	book, f := createTestOrderBook(t)
	require.NoError(t, book.Insert(f.new("buy-4", Buy, Limit, "90", "2")))

	lvl := book.RemoveBest(Buy)
	require.NotNil(t, lvl)
	assert.Equal(t, "90", lvl.Price().String())
	assert.Equal(t, "3", lvl.TotalSize().String())
	orders := lvl.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, "buy-1", orders[0].ID)
	assert.Equal(t, StatusCancelled, orders[0].Status)

	assert.Equal(t, "80", book.PeekBest(Buy).Price().String())
	_, ok := book.Order("buy-1")
	assert.False(t, ok)
	require.NoError(t, book.CheckInvariants())

	empty := NewOrderBook("ETH-USDT")
	assert.Nil(t, empty.RemoveBest(Sell))
	assert.Nil(t, empty.PeekBest(Sell))
}

func TestOrderBookCanFill(t *testing.T) {
	book, f := createTestOrderBook(t)
	require.NoError(t, book.Insert(f.new("sell-4", Sell, Limit, "120", "4")))

	assert.True(t, book.canFill(Buy, decimal.NewFromInt(110), decimal.NewFromInt(1)))
	assert.False(t, book.canFill(Buy, decimal.NewFromInt(110), decimal.NewFromInt(2)))
	assert.True(t, book.canFill(Buy, decimal.NewFromInt(120), decimal.NewFromInt(6)))
	assert.False(t, book.canFill(Buy, decimal.NewFromInt(120), decimal.NewFromInt(7)))
	assert.True(t, book.canFill(Sell, decimal.NewFromInt(70), decimal.NewFromInt(3)))
	assert.False(t, book.canFill(Sell, decimal.NewFromInt(100), decimal.NewFromInt(1)))

	// only the insert touched the book
	assert.Equal(t, int64(4), book.Stats().AskOrderCount)
	assert.Len(t, book.drainChanges(), 1)
}

func TestOrderBookCheckInvariants(t *testing.T) {
	t.Run("stale cached total", func(t *testing.T) {
		book, _ := createTestOrderBook(t)
		book.PeekBest(Buy).totalSize = decimal.NewFromInt(5)
		assert.ErrorIs(t, book.CheckInvariants(), ErrInvariant)
	})

	t.Run("zero remaining order", func(t *testing.T) {
		book, _ := createTestOrderBook(t)
		book.orders["sell-2"].Remaining = decimal.Zero
		assert.ErrorIs(t, book.CheckInvariants(), ErrInvariant)
	})

	t.Run("fifo broken", func(t *testing.T) {
		book, f := createTestOrderBook(t)
		late := f.new("late", Buy, Limit, "90", "1")
		late.Sequence = 0
		require.NoError(t, book.Insert(late))
		assert.ErrorIs(t, book.CheckInvariants(), ErrInvariant)
	})

	t.Run("healthy book with many levels", func(t *testing.T) {
		book := NewOrderBook("BTC-USDT")
		f := &testOrders{}
		for i := 1; i <= 50; i++ {
			require.NoError(t, book.Insert(f.new(fmt.Sprintf("b%d", i), Buy, Limit, fmt.Sprintf("%d", 100-i%10), "1")))
			require.NoError(t, book.Insert(f.new(fmt.Sprintf("s%d", i), Sell, Limit, fmt.Sprintf("%d", 101+i%10), "1")))
		}
		require.NoError(t, book.CheckInvariants())
		assert.Equal(t, int64(10), book.Stats().BidDepthCount)
		assert.Equal(t, int64(10), book.Stats().AskDepthCount)
	})
}
