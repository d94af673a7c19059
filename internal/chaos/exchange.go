// Package chaos injects exchange faults into a session to exercise the
// retry and reconciliation paths.
package chaos

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/trading-core/internal/exchange"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// Fault names an injected failure.
type Fault string

const (
	FaultNetwork   Fault = "network"
	FaultRateLimit Fault = "rate_limit"
	FaultDropAck   Fault = "drop_ack"
	FaultNotFound  Fault = "not_found"
)

// Config controls the share of order calls hit by each fault.
type Config struct {
	Seed          int64
	NetworkRate   float64
	RateLimitRate float64
	// DropAckRate strips created orders down to their exchange id, as when
	// the exchange acknowledges before the order is queryable.
	DropAckRate float64
	// NotFoundRate makes order lookups miss.
	NotFoundRate float64
}

// Validate ensures every rate is within [0, 1].
func (c Config) Validate() error {
	rates := map[string]float64{
		"networkRate":   c.NetworkRate,
		"rateLimitRate": c.RateLimitRate,
		"dropAckRate":   c.DropAckRate,
		"notFoundRate":  c.NotFoundRate,
	}
	for name, r := range rates {
		if r < 0 || r > 1 {
			return errors.Wrapf(exception.ErrInvalidArgument, "%s must be between 0 and 1, got: %v", name, r)
		}
	}
	return nil
}

// Exchange wraps an adapter and fails its order calls at random. Market data
// and account calls pass through.
type Exchange struct {
	exchange.Exchange

	cfg      Config
	mu       sync.Mutex
	rng      *rand.Rand
	injected map[Fault]int
}

var _ exchange.Exchange = (*Exchange)(nil)

// Wrap returns inner with faults injected per cfg. A zero seed picks one
// from the clock.
func Wrap(inner exchange.Exchange, cfg Config) (*Exchange, error) {
	if inner == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "chaos needs an exchange to wrap")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Exchange{
		Exchange: inner,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		injected: make(map[Fault]int),
	}, nil
}

// Injected returns how many times each fault fired.
func (e *Exchange) Injected() map[Fault]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[Fault]int, len(e.injected))
	for f, n := range e.injected {
		out[f] = n
	}
	return out
}

func (e *Exchange) CreateOrder(ctx context.Context, req exchange.CreateOrderRequest) (exchange.ExchangeOrder, error) {
	if err := e.fault("create order"); err != nil {
		return exchange.ExchangeOrder{}, err
	}
	eo, err := e.Exchange.CreateOrder(ctx, req)
	if err != nil {
		return eo, err
	}
	if e.roll(FaultDropAck, e.cfg.DropAckRate) {
		return exchange.ExchangeOrder{ExchangeID: eo.ExchangeID}, nil
	}
	return eo, nil
}

func (e *Exchange) CancelOrder(ctx context.Context, exchangeID, symbol string, typ enum.OrderType) (enum.OrderStatus, error) {
	if err := e.fault("cancel order"); err != nil {
		return 0, err
	}
	return e.Exchange.CancelOrder(ctx, exchangeID, symbol, typ)
}

func (e *Exchange) EditOrder(ctx context.Context, exchangeID, symbol string, quantity, price decimal.Decimal) (exchange.ExchangeOrder, error) {
	if err := e.fault("edit order"); err != nil {
		return exchange.ExchangeOrder{}, err
	}
	return e.Exchange.EditOrder(ctx, exchangeID, symbol, quantity, price)
}

func (e *Exchange) GetOrder(ctx context.Context, exchangeID, symbol string) (exchange.ExchangeOrder, error) {
	if err := e.fault("get order"); err != nil {
		return exchange.ExchangeOrder{}, err
	}
	if e.roll(FaultNotFound, e.cfg.NotFoundRate) {
		return exchange.ExchangeOrder{}, errors.Wrapf(exception.ErrOrderNotFound, "exchange id: %s", exchangeID)
	}
	return e.Exchange.GetOrder(ctx, exchangeID, symbol)
}

func (e *Exchange) fault(call string) error {
	if e.roll(FaultNetwork, e.cfg.NetworkRate) {
		return errors.Wrapf(exception.ErrNetwork, "%s: injected", call)
	}
	if e.roll(FaultRateLimit, e.cfg.RateLimitRate) {
		return errors.Wrapf(exception.ErrRateLimit, "%s: injected", call)
	}
	return nil
}

func (e *Exchange) roll(f Fault, rate float64) bool {
	if rate <= 0 {
		return false
	}
	e.mu.Lock()
	hit := e.rng.Float64() < rate
	if hit {
		e.injected[f]++
	}
	e.mu.Unlock()
	if hit {
		logs.Infof("chaos: injected %s on %s", f, e.Exchange.Name())
	}
	return hit
}
