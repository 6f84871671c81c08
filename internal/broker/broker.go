package broker

import (
	"context"
	"errors"
	"time"
)

// OrderType 주문 유형
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeStop   OrderType = "stop"
)

// OrderSide 매수/매도
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the closing side
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// Order status values
const (
	StatusSubmitted = "submitted"
	StatusFilled    = "filled"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
	StatusSimulated = "simulated"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderNotOpen  = errors.New("order is not open")
)

// Order 주문 요청
type Order struct {
	Symbol     string
	Side       OrderSide
	Type       OrderType
	Quantity   int
	LimitPrice float64 // limit 주문시 가격
	StopPrice  float64 // stop 주문시 트리거 가격
	Tag        string  // entry, stop-1, tp-1, flatten ...
}

// OrderResult 주문 결과
type OrderResult struct {
	OrderID     string
	Symbol      string
	Side        OrderSide
	Type        OrderType
	Quantity    int
	FilledQty   int
	LimitPrice  float64
	StopPrice   float64
	Tag         string
	Status      string
	Message     string
	SubmittedAt time.Time
}

// Position 보유 포지션. Quantity is negative when short.
type Position struct {
	Symbol   string
	Quantity int
}

// PendingOrder 미체결 주문
type PendingOrder struct {
	OrderID   string
	Symbol    string
	Side      OrderSide
	Type      OrderType
	Quantity  int
	Price     float64
	Tag       string
	CreatedAt time.Time
}

// Broker 브로커 인터페이스
type Broker interface {
	// Name 브로커 이름
	Name() string

	// IsReady 연결 및 인증 상태 확인
	IsReady() bool

	// 주문 관련
	PlaceOrder(ctx context.Context, order Order) (*OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	ReplaceStop(ctx context.Context, orderID string, stopPrice float64) error
	CancelOpenOrders(ctx context.Context, symbol string) (int, error)

	// 조회 관련
	GetPosition(ctx context.Context, symbol string) (Position, error)
	GetPendingOrders(ctx context.Context) ([]PendingOrder, error)
}
