// Package host is the boundary to the trading platform: the account whose
// positions and working orders are reported, and the "order changed"
// notification that drives automatic delivery.
package host

import "sync"

type OrderState string

const (
	OrderAccepted  OrderState = "Accepted"
	OrderWorking   OrderState = "Working"
	OrderFilled    OrderState = "Filled"
	OrderCancelled OrderState = "Cancelled"
	OrderRejected  OrderState = "Rejected"
)

// Live reports whether the order still rests at the broker.
func (s OrderState) Live() bool { return s == OrderAccepted || s == OrderWorking }

type OrderType string

const (
	OrderMarket     OrderType = "Market"
	OrderLimit      OrderType = "Limit"
	OrderStopMarket OrderType = "StopMarket"
	OrderStopLimit  OrderType = "StopLimit"
	OrderMIT        OrderType = "MIT"
)

// StopFamily reports whether the order's trigger price is its stop price.
func (t OrderType) StopFamily() bool {
	switch t {
	case OrderStopMarket, OrderStopLimit, OrderMIT:
		return true
	}
	return false
}

type Position struct {
	Instrument     string  `yaml:"instrument" json:"instrument"`
	Quantity       int     `yaml:"quantity" json:"quantity"`
	AveragePrice   float64 `yaml:"average_price" json:"average_price"`
	MarketPosition string  `yaml:"market_position" json:"market_position"`
}

type Order struct {
	Instrument string     `yaml:"instrument" json:"instrument"`
	Quantity   int        `yaml:"quantity" json:"quantity"`
	Type       OrderType  `yaml:"type" json:"type"`
	Action     string     `yaml:"action" json:"action"`
	State      OrderState `yaml:"state" json:"state"`
	LimitPrice float64    `yaml:"limit_price" json:"limit_price"`
	StopPrice  float64    `yaml:"stop_price" json:"stop_price"`
}

// Account is the read side of the monitored trading account.
// Implementations must be safe for concurrent use.
type Account interface {
	Name() string
	Positions() []Position
	Orders() []Order
}

// StaticAccount is an in-memory Account. Set replaces its whole state.
type StaticAccount struct {
	mu        sync.RWMutex
	name      string
	positions []Position
	orders    []Order
}

func NewStaticAccount(name string) *StaticAccount {
	return &StaticAccount{name: name}
}

func (a *StaticAccount) Name() string { return a.name }

func (a *StaticAccount) Positions() []Position {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Position(nil), a.positions...)
}

func (a *StaticAccount) Orders() []Order {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Order(nil), a.orders...)
}

func (a *StaticAccount) Set(positions []Position, orders []Order) {
	a.mu.Lock()
	a.positions = append([]Position(nil), positions...)
	a.orders = append([]Order(nil), orders...)
	a.mu.Unlock()
}
