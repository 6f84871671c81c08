package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fvgtrader/internal/broker"
	"fvgtrader/internal/strategy"
	"fvgtrader/pkg/model"
)

// Config for order routing
type Config struct {
	DryRun   bool    // log orders without sending them
	TickSize float64 // price increment for stops and targets, 0 disables rounding
}

// Leg is one stop + take-profit pair of a bracket
type Leg struct {
	Quantity     int
	Multiple     float64
	Target       float64
	Stop         float64
	StopOrderID  string
	LimitOrderID string
}

// Trade is a submitted bracket and the working orders protecting it
type Trade struct {
	Intent       strategy.OrderIntent
	EntryOrderID string
	Legs         []Leg
	Stage        int // take-profit levels reached so far
}

// Executor turns OrderIntents into broker orders and manages them until the
// session ends. It implements strategy.OrderRouter.
type Executor struct {
	broker broker.Broker
	config Config
	log    zerolog.Logger

	mu     sync.Mutex
	trades map[string]*Trade
}

// NewExecutor 생성자
func NewExecutor(b broker.Broker, cfg Config, logger zerolog.Logger) *Executor {
	return &Executor{
		broker: b,
		config: cfg,
		log:    logger.With().Str("component", "executor").Str("broker", b.Name()).Logger(),
		trades: make(map[string]*Trade),
	}
}

// SubmitMarketOrder sends an immediate order
func (e *Executor) SubmitMarketOrder(ctx context.Context, symbol string, side broker.OrderSide, qty int, tag string) (*broker.OrderResult, error) {
	return e.place(ctx, broker.Order{Symbol: symbol, Side: side, Type: broker.OrderTypeMarket, Quantity: qty, Tag: tag})
}

// SubmitStopOrder rests a stop at price
func (e *Executor) SubmitStopOrder(ctx context.Context, symbol string, side broker.OrderSide, qty int, price float64, tag string) (*broker.OrderResult, error) {
	return e.place(ctx, broker.Order{Symbol: symbol, Side: side, Type: broker.OrderTypeStop, Quantity: qty, StopPrice: e.RoundToTick(price), Tag: tag})
}

// SubmitLimitOrder rests a limit at price
func (e *Executor) SubmitLimitOrder(ctx context.Context, symbol string, side broker.OrderSide, qty int, price float64, tag string) (*broker.OrderResult, error) {
	return e.place(ctx, broker.Order{Symbol: symbol, Side: side, Type: broker.OrderTypeLimit, Quantity: qty, LimitPrice: e.RoundToTick(price), Tag: tag})
}

// SubmitBracket enters at market and protects each take-profit leg with its
// own stop, so a filled target shrinks the position by that leg only.
// Legs sized to zero contracts are skipped.
func (e *Executor) SubmitBracket(ctx context.Context, intent strategy.OrderIntent) error {
	if intent.Quantity <= 0 {
		return fmt.Errorf("bracket for %s has no quantity", intent.Symbol)
	}

	entrySide := broker.OrderSideBuy
	if intent.Direction == strategy.Short {
		entrySide = broker.OrderSideSell
	}
	exitSide := entrySide.Opposite()

	entry, err := e.SubmitMarketOrder(ctx, intent.Symbol, entrySide, intent.Quantity, "entry")
	if err != nil {
		return fmt.Errorf("entry order: %w", err)
	}

	trade := &Trade{Intent: intent, EntryOrderID: entry.OrderID}

	var errs []error
	for i, tp := range intent.TakeProfits {
		if tp.Quantity <= 0 {
			continue
		}
		leg := Leg{Quantity: tp.Quantity, Multiple: tp.Multiple, Target: tp.Price, Stop: intent.StopLoss}

		stop, err := e.SubmitStopOrder(ctx, intent.Symbol, exitSide, tp.Quantity, intent.StopLoss, fmt.Sprintf("stop-%d", i+1))
		if err != nil {
			errs = append(errs, fmt.Errorf("stop leg %d: %w", i+1, err))
		} else {
			leg.StopOrderID = stop.OrderID
		}

		limit, err := e.SubmitLimitOrder(ctx, intent.Symbol, exitSide, tp.Quantity, tp.Price, fmt.Sprintf("tp-%d", i+1))
		if err != nil {
			errs = append(errs, fmt.Errorf("target leg %d: %w", i+1, err))
		} else {
			leg.LimitOrderID = limit.OrderID
		}

		trade.Legs = append(trade.Legs, leg)
	}

	e.mu.Lock()
	e.trades[intent.Symbol] = trade
	e.mu.Unlock()

	e.log.Info().
		Str("symbol", intent.Symbol).
		Str("side", string(entrySide)).
		Int("qty", intent.Quantity).
		Float64("stop", e.RoundToTick(intent.StopLoss)).
		Int("legs", len(trade.Legs)).
		Msg("bracket submitted")

	return errors.Join(errs...)
}

// ManageOpenTrade ratchets stops as take-profit levels are reached. Reaching
// level k moves the stops of the remaining legs to level k-1, where level 0
// is the entry: breakeven after the first target, 1R after the second.
func (e *Executor) ManageOpenTrade(ctx context.Context, intent strategy.OrderIntent, bar model.Candle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	trade, ok := e.trades[intent.Symbol]
	if !ok {
		return nil
	}

	excursion := bar.High
	if intent.Direction == strategy.Short {
		excursion = bar.Low
	}

	stage := trade.Stage
	for stage < len(intent.TakeProfits) && reached(intent, intent.TakeProfits[stage].Price, excursion) {
		stage++
	}
	if stage == trade.Stage {
		return nil
	}

	stopMultiple := 0.0
	if stage > 1 {
		stopMultiple = intent.TakeProfits[stage-2].Multiple
	}
	newStop := e.RoundToTick(intent.LevelPrice(stopMultiple))

	var errs []error
	for i := range trade.Legs {
		leg := &trade.Legs[i]
		if leg.Multiple <= intent.TakeProfits[stage-1].Multiple || leg.StopOrderID == "" {
			continue // target already reached
		}
		if e.config.DryRun {
			e.log.Info().Str("symbol", intent.Symbol).Str("order", leg.StopOrderID).Float64("stop", newStop).Msg("[DRY-RUN] replace stop")
		} else if err := e.broker.ReplaceStop(ctx, leg.StopOrderID, newStop); err != nil {
			errs = append(errs, fmt.Errorf("replace stop %s: %w", leg.StopOrderID, err))
			continue
		}
		leg.Stop = newStop
	}

	trade.Stage = stage

	e.log.Info().
		Str("symbol", intent.Symbol).
		Int("stage", stage).
		Float64("stop", newStop).
		Msg("stop ratcheted")

	return errors.Join(errs...)
}

func reached(intent strategy.OrderIntent, target, excursion float64) bool {
	if intent.Direction == strategy.Short {
		return excursion <= target
	}
	return excursion >= target
}

// Flatten cancels working orders and closes any position at market
func (e *Executor) Flatten(ctx context.Context, symbol string) error {
	e.mu.Lock()
	delete(e.trades, symbol)
	e.mu.Unlock()

	if e.config.DryRun {
		e.log.Debug().Str("symbol", symbol).Msg("[DRY-RUN] flatten")
		return nil
	}

	cancelled, err := e.broker.CancelOpenOrders(ctx, symbol)
	if err != nil {
		return fmt.Errorf("cancel open orders: %w", err)
	}

	pos, err := e.broker.GetPosition(ctx, symbol)
	if err != nil {
		return fmt.Errorf("get position: %w", err)
	}
	if pos.Quantity == 0 {
		if cancelled > 0 {
			e.log.Debug().Str("symbol", symbol).Int("cancelled", cancelled).Msg("flat, orders cancelled")
		}
		return nil
	}

	side, qty := broker.OrderSideSell, pos.Quantity
	if qty < 0 {
		side, qty = broker.OrderSideBuy, -qty
	}
	if _, err := e.SubmitMarketOrder(ctx, symbol, side, qty, "flatten"); err != nil {
		return fmt.Errorf("liquidate: %w", err)
	}

	e.log.Info().Str("symbol", symbol).Int("qty", pos.Quantity).Int("cancelled", cancelled).Msg("flattened")
	return nil
}

// OpenTrade returns the bracket being managed for symbol
func (e *Executor) OpenTrade(symbol string) (Trade, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.trades[symbol]
	if !ok {
		return Trade{}, false
	}
	out := *t
	out.Legs = append([]Leg(nil), t.Legs...)
	return out, true
}

// RoundToTick rounds price to the nearest tick
func (e *Executor) RoundToTick(price float64) float64 {
	return RoundToTick(price, e.config.TickSize)
}

// RoundToTick rounds price to the nearest multiple of tick
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	t := decimal.NewFromFloat(tick)
	rounded, _ := decimal.NewFromFloat(price).Div(t).Round(0).Mul(t).Float64()
	return rounded
}

func (e *Executor) place(ctx context.Context, order broker.Order) (*broker.OrderResult, error) {
	// Dry-run 모드
	if e.config.DryRun {
		e.log.Info().
			Str("symbol", order.Symbol).
			Str("side", string(order.Side)).
			Str("type", string(order.Type)).
			Int("qty", order.Quantity).
			Float64("limit", order.LimitPrice).
			Float64("stop", order.StopPrice).
			Str("tag", order.Tag).
			Msg("[DRY-RUN] order")
		return &broker.OrderResult{
			OrderID:    "DRY-RUN",
			Symbol:     order.Symbol,
			Side:       order.Side,
			Type:       order.Type,
			Quantity:   order.Quantity,
			LimitPrice: order.LimitPrice,
			StopPrice:  order.StopPrice,
			Tag:        order.Tag,
			Status:     broker.StatusSimulated,
			Message:    "Dry-run mode - no actual order placed",
		}, nil
	}

	res, err := e.broker.PlaceOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	if res.Status == broker.StatusRejected {
		return res, fmt.Errorf("%s order for %s rejected: %s", order.Type, order.Symbol, res.Message)
	}
	return res, nil
}
