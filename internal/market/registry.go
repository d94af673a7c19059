package market

import (
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/internal/bus"
	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/pkg/clock"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// Registry holds the symbol data of an exchange session in insertion order.
type Registry struct {
	mu        sync.RWMutex
	cfg       Config
	scheduler *bus.Scheduler
	clock     clock.Clock
	bySymbol  map[string]*SymbolData
	symbols   []string
}

func NewRegistry(cfg Config, scheduler *bus.Scheduler, clk clock.Clock) *Registry {
	return &Registry{
		cfg:       cfg,
		scheduler: scheduler,
		clock:     clk,
		bySymbol:  make(map[string]*SymbolData),
	}
}

// Add returns the data of symbol, creating it on first use.
func (r *Registry) Add(symbol string) (*SymbolData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.bySymbol[symbol]; ok {
		return d, nil
	}
	sym, err := model.ParseSymbol(symbol)
	if err != nil {
		return nil, err
	}
	d := NewSymbolData(sym, r.cfg, r.scheduler, r.clock)
	r.bySymbol[symbol] = d
	r.symbols = append(r.symbols, symbol)
	return d, nil
}

func (r *Registry) Get(symbol string) (*SymbolData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.bySymbol[symbol]
	if !ok {
		return nil, errors.Wrapf(exception.ErrUnknownSymbol, "symbol: %s", symbol)
	}
	return d, nil
}

// Symbols returns the registered symbols in insertion order.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.symbols))
	copy(out, r.symbols)
	return out
}

// MarkPrice returns the visible mark price of symbol.
func (r *Registry) MarkPrice(symbol string) (decimal.Decimal, bool) {
	d, err := r.Get(symbol)
	if err != nil {
		return decimal.Zero, false
	}
	return d.MarkPrice()
}
