package execution

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fvgtrader/internal/broker"
	"fvgtrader/internal/strategy"
	"fvgtrader/pkg/model"
)

func scaleOutIntent(dir strategy.Direction, entry, risk float64, legs []int) strategy.OrderIntent {
	intent := strategy.OrderIntent{
		Symbol:     "NQ",
		Direction:  dir,
		EntryPrice: entry,
		Risk:       risk,
		StopLoss:   entry - float64(dir.Sign())*risk,
	}
	for i, qty := range legs {
		m := float64(i + 1)
		intent.Quantity += qty
		intent.TakeProfits = append(intent.TakeProfits, strategy.TakeProfit{
			Multiple: m,
			Price:    intent.LevelPrice(m),
			Fraction: 1.0 / float64(len(legs)),
			Quantity: qty,
		})
	}
	return intent
}

func pendingByTag(t *testing.T, p *broker.Paper) map[string]broker.PendingOrder {
	t.Helper()
	pending, err := p.GetPendingOrders(context.Background())
	require.NoError(t, err)
	out := make(map[string]broker.PendingOrder)
	for _, o := range pending {
		out[o.Tag] = o
	}
	return out
}

func TestSubmitBracket_LegPerTarget(t *testing.T) {
	ctx := context.Background()
	paper := broker.NewPaper()
	e := NewExecutor(paper, Config{}, zerolog.Nop())

	intent := scaleOutIntent(strategy.Long, 110, 2, []int{1, 1, 1})
	require.NoError(t, e.SubmitBracket(ctx, intent))

	orders := paper.Orders()
	require.Len(t, orders, 7)
	assert.Equal(t, broker.OrderTypeMarket, orders[0].Type)
	assert.Equal(t, broker.OrderSideBuy, orders[0].Side)
	assert.Equal(t, 3, orders[0].Quantity)

	pending := pendingByTag(t, paper)
	require.Len(t, pending, 6)
	for i, target := range []float64{112, 114, 116} {
		stop := pending["stop-"+string(rune('1'+i))]
		tp := pending["tp-"+string(rune('1'+i))]
		assert.Equal(t, broker.OrderSideSell, stop.Side)
		assert.Equal(t, 108.0, stop.Price)
		assert.Equal(t, 1, stop.Quantity)
		assert.Equal(t, target, tp.Price)
		assert.Equal(t, broker.OrderTypeLimit, tp.Type)
	}

	pos, _ := paper.GetPosition(ctx, "NQ")
	assert.Equal(t, 3, pos.Quantity)

	trade, ok := e.OpenTrade("NQ")
	require.True(t, ok)
	assert.Len(t, trade.Legs, 3)
	assert.Equal(t, orders[0].OrderID, trade.EntryOrderID)
}

func TestSubmitBracket_SkipsEmptyLegs(t *testing.T) {
	paper := broker.NewPaper()
	e := NewExecutor(paper, Config{}, zerolog.Nop())

	require.NoError(t, e.SubmitBracket(context.Background(), scaleOutIntent(strategy.Short, 100, 5, []int{1, 0, 0})))

	orders := paper.Orders()
	require.Len(t, orders, 3)
	assert.Equal(t, broker.OrderSideSell, orders[0].Side)
	assert.Equal(t, broker.OrderSideBuy, orders[1].Side)
	assert.Equal(t, 105.0, orders[1].StopPrice)
	assert.Equal(t, 95.0, orders[2].LimitPrice)
}

func TestSubmitBracket_NoQuantity(t *testing.T) {
	e := NewExecutor(broker.NewPaper(), Config{}, zerolog.Nop())
	assert.Error(t, e.SubmitBracket(context.Background(), strategy.OrderIntent{Symbol: "NQ"}))
}

func TestSubmitBracket_TickRounding(t *testing.T) {
	paper := broker.NewPaper()
	e := NewExecutor(paper, Config{TickSize: 0.25}, zerolog.Nop())

	intent := scaleOutIntent(strategy.Long, 110.1, 1.97, []int{1})
	require.NoError(t, e.SubmitBracket(context.Background(), intent))

	pending := pendingByTag(t, paper)
	assert.Equal(t, 108.25, pending["stop-1"].Price) // 108.13
	assert.Equal(t, 112.0, pending["tp-1"].Price)    // 112.07
}

func TestManageOpenTrade_RatchetsLong(t *testing.T) {
	ctx := context.Background()
	paper := broker.NewPaper()
	e := NewExecutor(paper, Config{}, zerolog.Nop())

	intent := scaleOutIntent(strategy.Long, 110, 2, []int{1, 1, 1})
	require.NoError(t, e.SubmitBracket(ctx, intent))

	// below the first target
	require.NoError(t, e.ManageOpenTrade(ctx, intent, model.Candle{High: 111.5, Low: 109}))
	pending := pendingByTag(t, paper)
	assert.Equal(t, 108.0, pending["stop-2"].Price)

	// 1R reached: remaining legs to breakeven
	require.NoError(t, e.ManageOpenTrade(ctx, intent, model.Candle{High: 112.5, Low: 111}))
	pending = pendingByTag(t, paper)
	assert.Equal(t, 108.0, pending["stop-1"].Price)
	assert.Equal(t, 110.0, pending["stop-2"].Price)
	assert.Equal(t, 110.0, pending["stop-3"].Price)

	// 2R reached: last leg to 1R
	require.NoError(t, e.ManageOpenTrade(ctx, intent, model.Candle{High: 114, Low: 112}))
	pending = pendingByTag(t, paper)
	assert.Equal(t, 110.0, pending["stop-2"].Price)
	assert.Equal(t, 112.0, pending["stop-3"].Price)

	trade, _ := e.OpenTrade("NQ")
	assert.Equal(t, 2, trade.Stage)
	assert.Equal(t, 112.0, trade.Legs[2].Stop)
}

func TestManageOpenTrade_RatchetsShortThroughTwoLevels(t *testing.T) {
	ctx := context.Background()
	paper := broker.NewPaper()
	e := NewExecutor(paper, Config{}, zerolog.Nop())

	intent := scaleOutIntent(strategy.Short, 100, 5, []int{1, 1, 1})
	require.NoError(t, e.SubmitBracket(ctx, intent))

	// gap straight through 1R and 2R in one bar
	require.NoError(t, e.ManageOpenTrade(ctx, intent, model.Candle{High: 101, Low: 89}))
	pending := pendingByTag(t, paper)
	assert.Equal(t, 105.0, pending["stop-1"].Price)
	assert.Equal(t, 105.0, pending["stop-2"].Price)
	assert.Equal(t, 95.0, pending["stop-3"].Price)
}

func TestManageOpenTrade_UnknownSymbol(t *testing.T) {
	e := NewExecutor(broker.NewPaper(), Config{}, zerolog.Nop())
	intent := scaleOutIntent(strategy.Long, 110, 2, []int{1})
	assert.NoError(t, e.ManageOpenTrade(context.Background(), intent, model.Candle{High: 200}))
}

func TestFlatten(t *testing.T) {
	ctx := context.Background()
	paper := broker.NewPaper()
	e := NewExecutor(paper, Config{}, zerolog.Nop())

	require.NoError(t, e.SubmitBracket(ctx, scaleOutIntent(strategy.Short, 100, 5, []int{2, 1})))
	require.NoError(t, e.Flatten(ctx, "NQ"))

	pending, _ := paper.GetPendingOrders(ctx)
	assert.Empty(t, pending)
	pos, _ := paper.GetPosition(ctx, "NQ")
	assert.Zero(t, pos.Quantity)

	orders := paper.Orders()
	last := orders[len(orders)-1]
	assert.Equal(t, "flatten", last.Tag)
	assert.Equal(t, broker.OrderSideBuy, last.Side)
	assert.Equal(t, 3, last.Quantity)

	_, ok := e.OpenTrade("NQ")
	assert.False(t, ok)

	// already flat: nothing more is sent
	require.NoError(t, e.Flatten(ctx, "NQ"))
	assert.Len(t, paper.Orders(), len(orders))
}

func TestDryRun(t *testing.T) {
	ctx := context.Background()
	paper := broker.NewPaper()
	e := NewExecutor(paper, Config{DryRun: true}, zerolog.Nop())

	intent := scaleOutIntent(strategy.Long, 110, 2, []int{1, 1, 1})
	require.NoError(t, e.SubmitBracket(ctx, intent))
	require.NoError(t, e.ManageOpenTrade(ctx, intent, model.Candle{High: 113}))
	require.NoError(t, e.Flatten(ctx, "NQ"))

	assert.Empty(t, paper.Orders())
}

func TestRoundToTick(t *testing.T) {
	assert.Equal(t, 17012.25, RoundToTick(17012.3, 0.25))
	assert.Equal(t, 17012.5, RoundToTick(17012.4, 0.25))
	assert.Equal(t, 101.13, RoundToTick(101.13, 0))
	assert.Equal(t, 4500.0, RoundToTick(4499.9, 1))
}

var _ strategy.OrderRouter = (*Executor)(nil)
