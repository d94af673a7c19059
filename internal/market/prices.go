package market

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/pkg/clock"
	"github.com/yanun0323/trading-core/pkg/exception"
	"github.com/yanun0323/trading-core/pkg/latch"
)

const (
	DefaultMarkPriceValidity   = 5 * time.Minute
	DefaultMarkPriceAllowedLag = 5 * time.Minute
)

// PricesConfig tunes how mark price sources compete.
type PricesConfig struct {
	// Validity is how long a source value can block less authoritative sources.
	Validity map[enum.MarkPriceSource]time.Duration
	// AllowedLag is the maximum age of a mark price returned by GetMarkPrice.
	AllowedLag time.Duration
	// DropFirstRecentTradeSample ignores the first recent trade average after a reset.
	DropFirstRecentTradeSample bool
}

func DefaultPricesConfig() PricesConfig {
	return PricesConfig{
		Validity: map[enum.MarkPriceSource]time.Duration{
			enum.MarkPriceSourceExchange:           DefaultMarkPriceValidity,
			enum.MarkPriceSourceRecentTradeAverage: DefaultMarkPriceValidity,
			enum.MarkPriceSourceTickerClose:        DefaultMarkPriceValidity,
		},
		AllowedLag:                 DefaultMarkPriceAllowedLag,
		DropFirstRecentTradeSample: true,
	}
}

func (c PricesConfig) validity(source enum.MarkPriceSource) time.Duration {
	if d, ok := c.Validity[source]; ok && d > 0 {
		return d
	}
	return DefaultMarkPriceValidity
}

type sourcePrice struct {
	value decimal.Decimal
	setAt time.Time
}

// PricesManager holds the authoritative mark price of a symbol, selected among
// competing sources.
type PricesManager struct {
	mu        sync.Mutex
	cfg       PricesConfig
	clock     clock.Clock
	sources   map[enum.MarkPriceSource]sourcePrice
	tradeAvgs int
	markPrice decimal.Decimal
	markSetAt time.Time
	valid     *latch.Latch
	updated   chan struct{}
	onPublish []func(price decimal.Decimal, source enum.MarkPriceSource, changed bool)
}

func NewPricesManager(cfg PricesConfig, clk clock.Clock) *PricesManager {
	if clk == nil {
		clk = clock.Real{}
	}
	return &PricesManager{
		cfg:     cfg,
		clock:   clk,
		sources: make(map[enum.MarkPriceSource]sourcePrice),
		valid:   latch.New(),
		updated: make(chan struct{}),
	}
}

// OnPublish registers a listener called synchronously whenever a source value
// becomes the visible mark price.
func (m *PricesManager) OnPublish(fn func(price decimal.Decimal, source enum.MarkPriceSource, changed bool)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.onPublish = append(m.onPublish, fn)
	m.mu.Unlock()
}

// SetMarkPrice records value under source and publishes it when no more
// authoritative source holds a fresh value. It returns true iff the visible mark
// price changed.
func (m *PricesManager) SetMarkPrice(value decimal.Decimal, source enum.MarkPriceSource) bool {
	published, changed := m.set(value, source)
	if published {
		m.notify(value, source, changed)
	}
	return changed
}

func (m *PricesManager) set(value decimal.Decimal, source enum.MarkPriceSource) (published, changed bool) {
	if !source.IsAvailable() || value.Sign() <= 0 {
		return false, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	m.sources[source] = sourcePrice{value: value, setAt: now}
	if source == enum.MarkPriceSourceRecentTradeAverage {
		m.tradeAvgs++
		if m.cfg.DropFirstRecentTradeSample && m.tradeAvgs == 1 {
			return false, false
		}
	}
	if m.blockedByHigherSource(source, now) {
		return false, false
	}

	changed = !m.markPrice.Equal(value)
	m.markPrice = value
	m.markSetAt = now
	m.valid.Set()
	close(m.updated)
	m.updated = make(chan struct{})
	return true, changed
}

func (m *PricesManager) blockedByHigherSource(source enum.MarkPriceSource, now time.Time) bool {
	for _, higher := range enum.MarkPriceSources() {
		if higher >= source {
			return false
		}
		sp, ok := m.sources[higher]
		if !ok {
			continue
		}
		if higher == enum.MarkPriceSourceRecentTradeAverage && m.cfg.DropFirstRecentTradeSample && m.tradeAvgs < 2 {
			continue
		}
		if now.Sub(sp.setAt) <= m.cfg.validity(higher) {
			return true
		}
	}
	return false
}

func (m *PricesManager) notify(value decimal.Decimal, source enum.MarkPriceSource, changed bool) {
	m.mu.Lock()
	listeners := append([]func(decimal.Decimal, enum.MarkPriceSource, bool){}, m.onPublish...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(value, source, changed)
	}
}

// MarkPrice returns the visible mark price without waiting.
func (m *PricesManager) MarkPrice() (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markPrice, m.valid.IsSet()
}

// MarkPriceSetTime returns when the visible mark price was last published.
func (m *PricesManager) MarkPriceSetTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markSetAt
}

// SourcePrice returns the last value recorded for source.
func (m *PricesManager) SourcePrice(source enum.MarkPriceSource) (decimal.Decimal, time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sp, ok := m.sources[source]
	return sp.value, sp.setAt, ok
}

// ValidPriceReceived is closed once a mark price has been published since the
// last reset.
func (m *PricesManager) ValidPriceReceived() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid.Done()
}

// GetMarkPrice waits until the mark price is valid and no older than the allowed
// lag. It fails with exception.ErrTimeout after timeout and with the context
// error when ctx ends first.
func (m *PricesManager) GetMarkPrice(ctx context.Context, timeout time.Duration) (decimal.Decimal, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, exception.ErrTimeout)
		defer cancel()
	}
	for {
		m.mu.Lock()
		fresh := m.valid.IsSet() && m.clock.Now().Sub(m.markSetAt) <= m.cfg.AllowedLag
		price := m.markPrice
		updated := m.updated
		m.mu.Unlock()
		if fresh {
			return price, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(context.Cause(ctx), exception.ErrTimeout) {
				return decimal.Zero, errors.Wrapf(exception.ErrTimeout, "mark price not received within %s", timeout)
			}
			return decimal.Zero, errors.Wrap(ctx.Err(), "wait mark price")
		case <-updated:
		}
	}
}

// Reset clears every source and the valid price signal.
func (m *PricesManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = make(map[enum.MarkPriceSource]sourcePrice)
	m.tradeAvgs = 0
	m.markPrice = decimal.Zero
	m.markSetAt = time.Time{}
	m.valid = latch.New()
}

// CalculateMarkPriceFromRecentTradePrices returns the mean of prices, zero when
// empty.
func CalculateMarkPriceFromRecentTradePrices(prices []decimal.Decimal) decimal.Decimal {
	return model.Mean(prices)
}
