package market

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/yanun0323/trading-core/internal/bus"
	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/pkg/clock"
)

// Config groups the per symbol market data settings.
type Config struct {
	Prices           PricesConfig
	RecentTradesSize int
}

func DefaultConfig() Config {
	return Config{
		Prices:           DefaultPricesConfig(),
		RecentTradesSize: DefaultRecentTradesSize,
	}
}

// SymbolData is the market mirror of one symbol. It is mutated by the
// ingestion path only; orders and strategies read from it.
type SymbolData struct {
	Symbol model.Symbol
	Prices *PricesManager
	Events *PriceEventsManager
	Trades *RecentTradesManager
	Book   *OrderBookManager

	mu          sync.RWMutex
	clock       clock.Clock
	ticker      model.Ticker
	hasTicker   bool
	lastKline   model.Candle
	hasKline    bool
	fundingRate decimal.Decimal
}

func NewSymbolData(symbol model.Symbol, cfg Config, scheduler *bus.Scheduler, clk clock.Clock) *SymbolData {
	if clk == nil {
		clk = clock.Real{}
	}
	d := &SymbolData{
		Symbol: symbol,
		Prices: NewPricesManager(cfg.Prices, clk),
		Events: NewPriceEventsManager(scheduler),
		Trades: NewRecentTradesManager(cfg.RecentTradesSize),
		Book:   NewOrderBookManager(),
		clock:  clk,
	}
	d.Prices.OnPublish(func(price decimal.Decimal, source enum.MarkPriceSource, _ bool) {
		// recent trades were already handled one by one
		if source == enum.MarkPriceSourceRecentTradeAverage {
			return
		}
		d.Events.HandlePrice(price, model.Timestamp(d.clock.Now()))
	})
	return d
}

// HandleRecentTrades records new trades, fires the price events they satisfy and
// feeds the recent trade average mark price. It returns the trades that were
// not already known.
func (d *SymbolData) HandleRecentTrades(trades []model.RecentTrade) []model.RecentTrade {
	added := d.Trades.Add(trades)
	if len(added) == 0 {
		return added
	}
	d.Events.HandleRecentTrades(added)

	prices := make([]decimal.Decimal, 0, len(added))
	for _, t := range added {
		prices = append(prices, t.Price)
	}
	if avg := CalculateMarkPriceFromRecentTradePrices(prices); avg.Sign() > 0 {
		d.Prices.SetMarkPrice(avg, enum.MarkPriceSourceRecentTradeAverage)
	}
	return added
}

// HandleMarkPrice records a mark price from source. It returns true iff the
// visible mark price changed.
func (d *SymbolData) HandleMarkPrice(price decimal.Decimal, source enum.MarkPriceSource) bool {
	return d.Prices.SetMarkPrice(price, source)
}

// HandleTicker stores the ticker and feeds its close price as a mark price
// source.
func (d *SymbolData) HandleTicker(t model.Ticker) bool {
	d.mu.Lock()
	d.ticker = t
	d.hasTicker = true
	d.mu.Unlock()

	closePrice := t.Close
	if closePrice.IsZero() {
		closePrice = t.Last
	}
	return d.Prices.SetMarkPrice(closePrice, enum.MarkPriceSourceTickerClose)
}

func (d *SymbolData) Ticker() (model.Ticker, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ticker, d.hasTicker
}

// HandleKline keeps the latest candle. Candle storage belongs to the caller.
func (d *SymbolData) HandleKline(c model.Candle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasKline && c.Time < d.lastKline.Time {
		return
	}
	d.lastKline = c
	d.hasKline = true
}

func (d *SymbolData) LastKline() (model.Candle, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastKline, d.hasKline
}

func (d *SymbolData) SetFundingRate(rate decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fundingRate = rate
}

func (d *SymbolData) FundingRate() decimal.Decimal {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fundingRate
}

// MarkPrice returns the visible mark price without waiting.
func (d *SymbolData) MarkPrice() (decimal.Decimal, bool) {
	return d.Prices.MarkPrice()
}

// Reset drops every cached market value. Pending price events are kept.
func (d *SymbolData) Reset() {
	d.Prices.Reset()
	d.Trades.Reset()
	d.Book.Reset()
	d.Events.ClearRecentPrices()
}
