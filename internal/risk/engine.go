package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/pkg/exception"
)

var bpsDenominator = decimal.NewFromInt(10000)

// Config defines simple risk limits. Zero values disable a limit.
type Config struct {
	KillSwitch           bool            `json:"killSwitch"`
	MaxOrderQty          decimal.Decimal `json:"maxOrderQty"`
	MaxOrderNotional     decimal.Decimal `json:"maxOrderNotional"`
	MaxPosition          decimal.Decimal `json:"maxPosition"`
	OrderRateLimit       int             `json:"orderRateLimit"`
	OrderRateWindow      time.Duration   `json:"orderRateWindow"`
	MaxPriceDeviationBps int64           `json:"maxPriceDeviationBps"`
}

// Intent is an order about to be submitted.
type Intent struct {
	Symbol     string
	Side       enum.OrderSide
	Type       enum.OrderType
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	ReduceOnly bool
}

// StateView provides the current exposure of the intent symbol.
type StateView struct {
	// Position is the signed holding: position size for futures, base balance
	// for spot.
	Position       decimal.Decimal
	ReferencePrice decimal.Decimal
	Now            time.Time
}

// Decision is the outcome of an evaluation.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Err returns nil for allowed decisions, and an error matching
// exception.ErrRiskRejected otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return errors.Wrapf(exception.ErrRiskRejected, "reason: %s", d.Reason)
}

func allow() Decision             { return Decision{Allowed: true, Reason: ReasonNone} }
func deny(reason Reason) Decision { return Decision{Reason: reason} }

// Engine evaluates risk decisions.
type Engine struct {
	mu              sync.Mutex
	cfg             Config
	rateWindowStart time.Time
	rateCount       int
}

// NewEngine creates a risk engine with static limits.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// SetKillSwitch blocks or unblocks every new order.
func (e *Engine) SetKillSwitch(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.KillSwitch = on
}

// Evaluate applies the configured checks to an order intent. A nil engine
// allows everything.
func (e *Engine) Evaluate(intent Intent, state StateView) Decision {
	if e == nil {
		return allow()
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := state.Now
	if now.IsZero() {
		now = time.Now()
	}

	if e.cfg.KillSwitch {
		return deny(ReasonKillSwitch)
	}

	if e.cfg.OrderRateLimit > 0 && e.cfg.OrderRateWindow > 0 {
		if e.rateWindowStart.IsZero() || now.Sub(e.rateWindowStart) >= e.cfg.OrderRateWindow {
			e.rateWindowStart = now
			e.rateCount = 0
		}
		e.rateCount++
		if e.rateCount > e.cfg.OrderRateLimit {
			return deny(ReasonRateLimit)
		}
	}

	if e.cfg.MaxOrderQty.Sign() > 0 && intent.Quantity.GreaterThan(e.cfg.MaxOrderQty) {
		return deny(ReasonMaxQty)
	}

	ref := state.ReferencePrice
	if e.cfg.MaxPriceDeviationBps > 0 && intent.Type == enum.OrderTypeLimit && intent.Price.Sign() > 0 && ref.Sign() > 0 {
		if exceedsDeviation(intent.Price.Sub(ref).Abs(), ref, e.cfg.MaxPriceDeviationBps) {
			return deny(ReasonPriceBand)
		}
	}

	price := intent.Price
	if price.Sign() <= 0 {
		price = ref
	}
	if e.cfg.MaxOrderNotional.Sign() > 0 && price.Mul(intent.Quantity).GreaterThan(e.cfg.MaxOrderNotional) {
		return deny(ReasonMaxNotional)
	}

	if !intent.ReduceOnly && e.cfg.MaxPosition.Sign() > 0 {
		next := applySide(state.Position, intent.Side, intent.Quantity)
		if next.Abs().GreaterThan(e.cfg.MaxPosition) {
			return deny(ReasonPositionLimit)
		}
	}

	return allow()
}

func applySide(pos decimal.Decimal, side enum.OrderSide, qty decimal.Decimal) decimal.Decimal {
	switch side {
	case enum.OrderSideBuy:
		return pos.Add(qty)
	case enum.OrderSideSell:
		return pos.Sub(qty)
	default:
		return pos
	}
}

func exceedsDeviation(diff, ref decimal.Decimal, bps int64) bool {
	if diff.Sign() <= 0 || ref.Sign() <= 0 || bps <= 0 {
		return false
	}
	return diff.Mul(bpsDenominator).GreaterThan(ref.Mul(decimal.NewFromInt(bps)))
}
