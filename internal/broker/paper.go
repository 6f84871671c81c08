package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Paper is an in-memory broker. Market orders fill immediately and move the
// position; stop and limit orders rest until cancelled. There is no price
// simulation, resting orders never trigger.
type Paper struct {
	mu        sync.Mutex
	now       func() time.Time
	orders    map[string]*OrderResult
	sequence  []string
	positions map[string]int
}

// NewPaper creates an empty paper account
func NewPaper() *Paper {
	return &Paper{
		now:       time.Now,
		orders:    make(map[string]*OrderResult),
		positions: make(map[string]int),
	}
}

// WithClock overrides the submission timestamp source
func (p *Paper) WithClock(now func() time.Time) *Paper {
	p.now = now
	return p
}

func (p *Paper) Name() string { return "paper" }

func (p *Paper) IsReady() bool { return true }

// PlaceOrder records the order and fills it when it is a market order
func (p *Paper) PlaceOrder(ctx context.Context, order Order) (*OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if order.Quantity <= 0 {
		return nil, fmt.Errorf("invalid quantity %d for %s", order.Quantity, order.Symbol)
	}
	switch order.Type {
	case OrderTypeStop:
		if order.StopPrice <= 0 {
			return nil, fmt.Errorf("stop order for %s needs a stop price", order.Symbol)
		}
	case OrderTypeLimit:
		if order.LimitPrice <= 0 {
			return nil, fmt.Errorf("limit order for %s needs a limit price", order.Symbol)
		}
	case OrderTypeMarket:
	default:
		return nil, fmt.Errorf("unsupported order type %q", order.Type)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	res := &OrderResult{
		OrderID:     uuid.NewString(),
		Symbol:      order.Symbol,
		Side:        order.Side,
		Type:        order.Type,
		Quantity:    order.Quantity,
		LimitPrice:  order.LimitPrice,
		StopPrice:   order.StopPrice,
		Tag:         order.Tag,
		Status:      StatusSubmitted,
		SubmittedAt: p.now(),
	}

	if order.Type == OrderTypeMarket {
		res.Status = StatusFilled
		res.FilledQty = order.Quantity
		if order.Side == OrderSideBuy {
			p.positions[order.Symbol] += order.Quantity
		} else {
			p.positions[order.Symbol] -= order.Quantity
		}
	}

	p.orders[res.OrderID] = res
	p.sequence = append(p.sequence, res.OrderID)

	out := *res
	return &out, nil
}

// CancelOrder cancels a resting order
func (p *Paper) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, err := p.openOrder(orderID)
	if err != nil {
		return err
	}
	o.Status = StatusCancelled
	return nil
}

// ReplaceStop moves the trigger of a resting stop order
func (p *Paper) ReplaceStop(ctx context.Context, orderID string, stopPrice float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, err := p.openOrder(orderID)
	if err != nil {
		return err
	}
	if o.Type != OrderTypeStop {
		return fmt.Errorf("order %s is %s, not stop", orderID, o.Type)
	}
	o.StopPrice = stopPrice
	return nil
}

// CancelOpenOrders cancels every resting order for symbol
func (p *Paper) CancelOpenOrders(ctx context.Context, symbol string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, id := range p.sequence {
		o := p.orders[id]
		if o.Symbol == symbol && o.Status == StatusSubmitted {
			o.Status = StatusCancelled
			n++
		}
	}
	return n, nil
}

// GetPosition returns the signed net position
func (p *Paper) GetPosition(ctx context.Context, symbol string) (Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Position{Symbol: symbol, Quantity: p.positions[symbol]}, nil
}

// GetPendingOrders lists resting orders in submission order
func (p *Paper) GetPendingOrders(ctx context.Context) ([]PendingOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var pending []PendingOrder
	for _, id := range p.sequence {
		o := p.orders[id]
		if o.Status != StatusSubmitted {
			continue
		}
		price := o.LimitPrice
		if o.Type == OrderTypeStop {
			price = o.StopPrice
		}
		pending = append(pending, PendingOrder{
			OrderID:   o.OrderID,
			Symbol:    o.Symbol,
			Side:      o.Side,
			Type:      o.Type,
			Quantity:  o.Quantity,
			Price:     price,
			Tag:       o.Tag,
			CreatedAt: o.SubmittedAt,
		})
	}
	return pending, nil
}

// Orders returns every order ever placed, oldest first
func (p *Paper) Orders() []OrderResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]OrderResult, 0, len(p.sequence))
	for _, id := range p.sequence {
		out = append(out, *p.orders[id])
	}
	return out
}

func (p *Paper) openOrder(orderID string) (*OrderResult, error) {
	o, ok := p.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if o.Status != StatusSubmitted {
		return nil, fmt.Errorf("%w: %s is %s", ErrOrderNotOpen, orderID, o.Status)
	}
	return o, nil
}
