package match

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRestingOrder(id string, side Side, price, size int64) *Order {
	return &Order{
		ID:        id,
		Side:      side,
		Type:      Limit,
		Price:     decimal.NewFromInt(price),
		Quantity:  decimal.NewFromInt(size),
		Remaining: decimal.NewFromInt(size),
		Status:    StatusResting,
	}
}

func TestBuyerQueue(t *testing.T) {
	q := NewBuyerQueue()

	q.insertOrder(newRestingOrder("101", Buy, 10, 1))
	q.insertOrder(newRestingOrder("201", Buy, 20, 10))
	q.insertOrder(newRestingOrder("301", Buy, 30, 10))
	q.insertOrder(newRestingOrder("202", Buy, 20, 100))

	assert.Equal(t, int64(4), q.orderCount())
	assert.Equal(t, int64(3), q.depthCount())

	best := q.best()
	require.NotNil(t, best)
	assert.Equal(t, "30", best.Price().String())

	depth := q.depth(10)
	require.Len(t, depth, 3)
	assert.Equal(t, "30", depth[0].Price.String())
	assert.Equal(t, "20", depth[1].Price.String())
	assert.Equal(t, "110", depth[1].Size.String())
	assert.Equal(t, int64(2), depth[1].Count)
	assert.Equal(t, "10", depth[2].Price.String())
}

func TestSellerQueue(t *testing.T) {
	q := NewSellerQueue()

	q.insertOrder(newRestingOrder("101", Sell, 30, 1))
	q.insertOrder(newRestingOrder("201", Sell, 10, 2))
	q.insertOrder(newRestingOrder("301", Sell, 20, 3))

	depth := q.depth(2)
	require.Len(t, depth, 2)
	assert.Equal(t, "10", depth[0].Price.String())
	assert.Equal(t, "20", depth[1].Price.String())
}

func TestQueuePriceNormalization(t *testing.T) {
	q := NewSellerQueue()

	a := newRestingOrder("a", Sell, 10, 1)
	b := newRestingOrder("b", Sell, 10, 2)
	b.Price = decimal.RequireFromString("10.00")

	q.insertOrder(a)
	q.insertOrder(b)

	assert.Equal(t, int64(1), q.depthCount())
	lvl := q.level(decimal.RequireFromString("10.0"))
	require.NotNil(t, lvl)
	assert.Equal(t, int64(2), lvl.Count())
	assert.Equal(t, "3", lvl.TotalSize().String())
}

func TestQueueRemoveOrder(t *testing.T) {
	q := NewBuyerQueue()

	o1 := newRestingOrder("1", Buy, 10, 1)
	o2 := newRestingOrder("2", Buy, 10, 2)
	o3 := newRestingOrder("3", Buy, 10, 3)
	q.insertOrder(o1)
	q.insertOrder(o2)
	q.insertOrder(o3)

	t.Run("middle keeps fifo", func(t *testing.T) {
		q.removeOrder(o2)

		lvl := q.best()
		require.NotNil(t, lvl)
		orders := lvl.Orders()
		require.Len(t, orders, 2)
		assert.Equal(t, "1", orders[0].ID)
		assert.Equal(t, "3", orders[1].ID)
		assert.Equal(t, "4", lvl.TotalSize().String())
	})

	t.Run("last order drops the level", func(t *testing.T) {
		q.removeOrder(o1)
		q.removeOrder(o3)

		assert.Nil(t, q.best())
		assert.Equal(t, int64(0), q.depthCount())
		assert.Equal(t, int64(0), q.orderCount())
		assert.Empty(t, q.priceList)
	})
}

func TestQueueRemoveLevel(t *testing.T) {
	q := NewSellerQueue()
	q.insertOrder(newRestingOrder("1", Sell, 10, 1))
	q.insertOrder(newRestingOrder("2", Sell, 10, 2))
	q.insertOrder(newRestingOrder("3", Sell, 11, 3))

	orders := q.removeLevel(q.best())
	require.Len(t, orders, 2)
	assert.Equal(t, "1", orders[0].ID)
	assert.Equal(t, "2", orders[1].ID)

	assert.Equal(t, int64(1), q.depthCount())
	assert.Equal(t, int64(1), q.orderCount())
	assert.Equal(t, "11", q.best().Price().String())
}

func TestPriceLevelUnlink(t *testing.T) {
	lvl := newPriceLevel(decimal.NewFromInt(5))
	head := newRestingOrder("head", Buy, 5, 1)
	tail := newRestingOrder("tail", Buy, 5, 2)
	lvl.pushBack(head)
	lvl.pushBack(tail)

	lvl.unlink(tail)
	assert.Equal(t, head, lvl.head)
	assert.Equal(t, head, lvl.tail)
	assert.Nil(t, tail.prev)

	lvl.unlink(head)
	assert.True(t, lvl.isEmpty())
	assert.True(t, lvl.TotalSize().IsZero())
	assert.Nil(t, lvl.head)
	assert.Nil(t, lvl.tail)
}
