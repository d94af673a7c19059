package position

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/transaction"
	"github.com/yanun0323/trading-core/pkg/clock"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// DefaultCapacity bounds the positions kept by a Manager.
const DefaultCapacity = 2000

type key struct {
	symbol string
	side   enum.PositionSide
}

// Manager owns the contracts and positions of a session, keyed by symbol and
// side.
type Manager struct {
	mu        sync.Mutex
	contracts map[string]Contract
	positions *lru.Cache[key, *Position]
	ledger    *transaction.Ledger
	clock     clock.Clock
}

func NewManager(capacity int, ledger *transaction.Ledger, clk clock.Clock) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	positions, err := lru.New[key, *Position](capacity)
	if err != nil {
		panic(err)
	}
	if ledger == nil {
		ledger = transaction.NewLedger(nil)
	}
	return &Manager{
		contracts: make(map[string]Contract),
		positions: positions,
		ledger:    ledger,
		clock:     clk,
	}
}

func (m *Manager) Ledger() *transaction.Ledger { return m.ledger }

// LoadContract registers the contract of a symbol.
func (m *Manager) LoadContract(c Contract) error {
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts[c.Symbol] = c
	return nil
}

// Contract returns the contract of symbol. It fails with
// exception.ErrContractNotLoaded until LoadContract was called.
func (m *Manager) Contract(symbol string) (Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[symbol]
	if !ok {
		return Contract{}, errors.Wrapf(exception.ErrContractNotLoaded, "symbol: %s", symbol)
	}
	return c, nil
}

// HasContract reports whether symbol trades as a future in this session.
func (m *Manager) HasContract(symbol string) bool {
	_, err := m.Contract(symbol)
	return err == nil
}

// Get returns the position of symbol and side, creating a closed one when
// missing.
func (m *Manager) Get(symbol string, side enum.PositionSide) (*Position, error) {
	c, err := m.Contract(symbol)
	if err != nil {
		return nil, err
	}
	if c.PositionMode == enum.PositionModeOneWay {
		side = enum.PositionSideBoth
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{symbol: symbol, side: side}
	if p, ok := m.positions.Get(k); ok {
		return p, nil
	}
	p, err := New(c, side, m.ledger, m.clock)
	if err != nil {
		return nil, err
	}
	m.positions.Add(k, p)
	return p, nil
}

// Find returns the tracked position of symbol and side without creating one.
func (m *Manager) Find(symbol string, side enum.PositionSide) (*Position, error) {
	c, err := m.Contract(symbol)
	if err != nil {
		return nil, err
	}
	if c.PositionMode == enum.PositionModeOneWay {
		side = enum.PositionSideBoth
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions.Peek(key{symbol: symbol, side: side})
	if !ok {
		return nil, errors.Wrapf(exception.ErrPositionNotFound, "symbol: %s, side: %s", symbol, side)
	}
	return p, nil
}

// For returns the position an order fill on symbol applies to. In hedge mode
// reduce only orders close the opposite side.
func (m *Manager) For(symbol string, side enum.OrderSide, reduceOnly bool) (*Position, error) {
	c, err := m.Contract(symbol)
	if err != nil {
		return nil, err
	}
	if c.PositionMode == enum.PositionModeOneWay {
		return m.Get(symbol, enum.PositionSideBoth)
	}
	long := side == enum.OrderSideBuy
	if reduceOnly {
		long = !long
	}
	if long {
		return m.Get(symbol, enum.PositionSideLong)
	}
	return m.Get(symbol, enum.PositionSideShort)
}

// Positions returns the known positions of symbol, or of every symbol when
// symbol is empty, least recently used first.
func (m *Manager) Positions(symbol string) []*Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.positions.Values()
	if symbol == "" {
		return all
	}
	positions := make([]*Position, 0, 2)
	for _, p := range all {
		if p.Symbol() == symbol {
			positions = append(positions, p)
		}
	}
	return positions
}

// SetMarkPrice updates every position of symbol and returns the liquidation
// transactions it caused.
func (m *Manager) SetMarkPrice(symbol string, mark decimal.Decimal) ([]transaction.Transaction, error) {
	var txs []transaction.Transaction
	for _, p := range m.Positions(symbol) {
		liquidations, err := p.SetMarkPrice(mark)
		if err != nil {
			return txs, err
		}
		txs = append(txs, liquidations...)
	}
	return txs, nil
}

// ApplyFunding settles funding at rate on the open positions of symbol.
func (m *Manager) ApplyFunding(symbol string, rate decimal.Decimal) []transaction.Transaction {
	var txs []transaction.Transaction
	for _, p := range m.Positions(symbol) {
		p.SetFundingRate(rate)
		if tx, ok := p.ApplyFunding(rate); ok {
			txs = append(txs, tx)
		}
	}
	return txs
}

func (m *Manager) Len() int {
	return m.positions.Len()
}
