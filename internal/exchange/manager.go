package exchange

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/trading-core/internal/bus"
	"github.com/yanun0323/trading-core/internal/market"
	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/obs"
	"github.com/yanun0323/trading-core/internal/order"
	"github.com/yanun0323/trading-core/internal/portfolio"
	"github.com/yanun0323/trading-core/internal/position"
	"github.com/yanun0323/trading-core/internal/risk"
	"github.com/yanun0323/trading-core/internal/trade"
	"github.com/yanun0323/trading-core/internal/transaction"
	"github.com/yanun0323/trading-core/pkg/clock"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// Manager owns every piece of state of one exchange session: market mirror,
// orders, groups, trades, portfolio, positions and transactions. It is the
// engine orders run in.
type Manager struct {
	cfg     Config
	adapter Exchange
	clock   clock.Clock
	metrics *obs.Metrics

	scheduler *bus.Scheduler
	broker    *bus.Broker
	registry  *market.Registry
	orders    *order.Manager
	groups    *order.Groups
	chained   *order.ChainedOrders
	trades    *trade.Manager
	portfolio *portfolio.Manager
	positions *position.Manager
	ledger    *transaction.Ledger
	risk      *risk.Engine

	mu      sync.RWMutex
	markets map[string]model.MarketStatus
}

type Option func(*options)

type options struct {
	adapter Exchange
	clock   clock.Clock
	metrics *obs.Metrics
	sink    transaction.Sink
}

// WithAdapter connects a live session to its exchange.
func WithAdapter(ex Exchange) Option {
	return func(o *options) { o.adapter = ex }
}

func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

func WithMetrics(m *obs.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLedgerSink mirrors every transaction to sink.
func WithLedgerSink(sink transaction.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// NewManager builds a session holding initial balances.
func NewManager(cfg Config, initial map[string]decimal.Decimal, opts ...Option) (*Manager, error) {
	var opt options
	for _, fn := range opts {
		fn(&opt)
	}
	if !cfg.Simulated && opt.adapter == nil {
		return nil, errors.Wrapf(exception.ErrNoAdapter, "exchange: %s", cfg.Name)
	}
	if opt.clock == nil {
		opt.clock = clock.Real{}
	}
	if cfg.ReferenceMarket == "" {
		cfg.ReferenceMarket = DefaultConfig().ReferenceMarket
	}
	if cfg.Name == "" && opt.adapter != nil {
		cfg.Name = opt.adapter.Name()
	}
	if cfg.Market.RecentTradesSize <= 0 {
		cfg.Market.RecentTradesSize = market.DefaultRecentTradesSize
	}
	if cfg.Market.Prices.Validity == nil {
		cfg.Market.Prices = market.DefaultPricesConfig()
	}

	m := &Manager{
		cfg:       cfg,
		adapter:   opt.adapter,
		clock:     opt.clock,
		metrics:   opt.metrics,
		scheduler: bus.NewScheduler(),
		orders:    order.NewManager(cfg.ClosedOrdersSize),
		trades:    trade.NewManager(cfg.TradesSize),
		ledger:    transaction.NewLedger(opt.sink),
		risk:      risk.NewEngine(cfg.Risk),
		markets:   make(map[string]model.MarketStatus),
	}
	m.broker = bus.NewBroker(m.scheduler)
	m.registry = market.NewRegistry(cfg.Market, m.scheduler, m.clock)
	m.groups = order.NewGroups(m)
	m.chained = order.NewChainedOrders(m, cfg.OutdatedPriceAllowance)
	m.positions = position.NewManager(cfg.PositionsSize, m.ledger, m.clock)
	m.portfolio = portfolio.NewManager(
		portfolio.New(initial),
		portfolio.NewValueHolder(cfg.ReferenceMarket, m.registry),
	)
	m.ledger.OnAppend(m.onTransaction)
	return m, nil
}

func (m *Manager) Name() string                  { return m.cfg.Name }
func (m *Manager) Config() Config                { return m.cfg }
func (m *Manager) IsSimulated() bool             { return m.cfg.Simulated }
func (m *Manager) Registry() *market.Registry    { return m.registry }
func (m *Manager) Orders() *order.Manager        { return m.orders }
func (m *Manager) Groups() *order.Groups         { return m.groups }
func (m *Manager) Chained() *order.ChainedOrders { return m.chained }
func (m *Manager) Trades() *trade.Manager        { return m.trades }
func (m *Manager) Portfolio() *portfolio.Manager { return m.portfolio }
func (m *Manager) Positions() *position.Manager  { return m.positions }
func (m *Manager) Ledger() *transaction.Ledger   { return m.ledger }
func (m *Manager) Risk() *risk.Engine            { return m.risk }
func (m *Manager) Metrics() *obs.Metrics         { return m.metrics }
func (m *Manager) Broker() *bus.Broker           { return m.broker }
func (m *Manager) Now() float64                  { return model.Timestamp(m.clock.Now()) }

// Drain runs the pending scheduling turns: fired price event hooks, market
// order fills and subscriber deliveries.
func (m *Manager) Drain() int {
	return m.scheduler.Drain()
}

// SetMarketStatus stores the trading rules of a symbol.
func (m *Manager) SetMarketStatus(ms model.MarketStatus) error {
	sym, err := model.ParseSymbol(ms.Symbol)
	if err != nil {
		return err
	}
	ms.Symbol = sym.String()
	m.mu.Lock()
	m.markets[ms.Symbol] = ms
	m.mu.Unlock()
	_, err = m.registry.Add(ms.Symbol)
	return err
}

func (m *Manager) marketStatus(symbol string) (model.MarketStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.markets[symbol]
	return ms, ok
}

func (m *Manager) isFuture(symbol string) bool {
	return m.positions.HasContract(symbol)
}

func (m *Manager) publish(channel enum.Channel, symbol string, payload any) {
	m.broker.Publish(channel, symbol, payload)
}

// onTransaction applies every position transaction to the portfolio.
func (m *Manager) onTransaction(tx transaction.Transaction) {
	m.portfolio.Portfolio().Apply(portfolio.Delta{Currency: tx.Currency, Amount: tx.Amount})
	m.metrics.Inc(obs.EventTransaction)
	switch tx.Type {
	case enum.TransactionTypeLiquidation:
		m.metrics.Inc(obs.EventLiquidation)
	case enum.TransactionTypeFundingFee:
		m.metrics.Inc(obs.EventFunding)
	}
	m.publish(enum.ChannelTransactions, tx.Symbol, tx)
}

// Engine

func (m *Manager) Clock() clock.Clock        { return m.clock }
func (m *Manager) Scheduler() *bus.Scheduler { return m.scheduler }

func (m *Manager) SymbolData(symbol string) (*market.SymbolData, error) {
	return m.registry.Get(symbol)
}

func (m *Manager) selfManaged(typ enum.OrderType) bool {
	return m.cfg.Simulated || (m.cfg.SelfManagedStops && typ.IsStop())
}

func (m *Manager) ArmsLocally(o *order.Order) bool {
	return m.selfManaged(o.Type())
}

func (m *Manager) SynthesizesOnTrigger(o *order.Order) bool {
	return !m.cfg.Simulated && m.ArmsLocally(o)
}

// Fee charges the taker rate for every order but limit orders. Spot fees are
// paid in the received currency, futures fees in the settlement currency.
func (m *Manager) Fee(o *order.Order, quantity, price decimal.Decimal) model.Fee {
	taker := o.Type() != enum.OrderTypeLimit
	fee := model.Fee{IsTaker: taker}
	sym, err := model.ParseSymbol(o.Symbol())
	if err != nil {
		return fee
	}

	if c, err := m.positions.Contract(o.Symbol()); err == nil {
		rate := c.MakerFee
		if taker {
			rate = c.TakerFee
		}
		size := quantity.Mul(c.ContractSize)
		fee.Currency = c.SettlementCurrency()
		if c.Type.IsInverse() {
			fee.Cost = model.Div(size, price).Mul(rate)
		} else {
			fee.Cost = size.Mul(price).Mul(rate)
		}
		return fee
	}

	rate := m.cfg.MakerFee
	if taker {
		rate = m.cfg.TakerFee
	}
	if o.Side() == enum.OrderSideBuy {
		fee.Currency = sym.Base
		fee.Cost = quantity.Mul(rate)
	} else {
		fee.Currency = sym.Quote
		fee.Cost = quantity.Mul(price).Mul(rate)
	}
	return fee
}

func (m *Manager) OnPartialFill(o *order.Order, quantity, price decimal.Decimal, fee model.Fee) {
	m.metrics.Inc(obs.EventOrderPartiallyFilled)
	m.onFill(o, quantity, price, fee)
}

func (m *Manager) OnFill(o *order.Order, quantity, price decimal.Decimal, fee model.Fee) {
	if o.ReplacedBy() != "" {
		m.metrics.Inc(obs.EventOrderReplaced)
		m.groups.OnFill(o, quantity)
		m.publish(enum.ChannelOrders, o.Symbol(), o.ToDict())
		return
	}
	m.metrics.Inc(obs.EventOrderFilled)
	m.onFill(o, quantity, price, fee)
	m.chained.OnStatus(o, enum.OrderStatusFilled)
}

func (m *Manager) onFill(o *order.Order, quantity, price decimal.Decimal, fee model.Fee) {
	t := trade.FromFill(o, quantity, price, fee, m.Now(), m.cfg.Simulated)
	m.trades.Add(t)
	m.metrics.Inc(obs.EventTrade)

	if !o.IsAlreadyCountedInAvailableFunds() {
		if err := m.settle(o, quantity, price, fee); err != nil {
			logs.Errorf("settle fill of order %s, err: %+v", o.ID(), err)
		}
	}

	m.groups.OnFill(o, quantity)
	m.publish(enum.ChannelTrades, o.Symbol(), t)
	m.publish(enum.ChannelOrders, o.Symbol(), o.ToDict())
}

func (m *Manager) OnCancel(o *order.Order) {
	m.metrics.Inc(obs.EventOrderCanceled)
	m.chained.OnStatus(o, o.Status())
	m.publish(enum.ChannelOrders, o.Symbol(), o.ToDict())
}

func (m *Manager) OnClose(o *order.Order) {
	m.portfolio.Release(o)
	m.groups.OnClose(o)
	m.orders.Close(o)
}

// Replace creates the order executing a triggered stop. The stop's reserved
// funds move to the replacement and its chained orders follow it.
func (m *Manager) Replace(o *order.Order, p order.Params) (*order.Order, error) {
	m.portfolio.Release(o)
	next, err := m.createOrder(context.Background(), p, false)
	if err != nil {
		return nil, err
	}
	m.chained.Retarget(o, next)
	return next, nil
}

// GroupActions

func (m *Manager) CancelOrder(o *order.Order) error {
	return m.cancelOrder(context.Background(), o)
}

func (m *Manager) EditOrder(o *order.Order, quantity decimal.Decimal) error {
	_, err := m.editOrder(context.Background(), o, quantity, decimal.Zero)
	return err
}

// Creator

func (m *Manager) CreateOrder(p order.Params) (*order.Order, error) {
	return m.createOrder(context.Background(), p, true)
}

// MarketStatus returns the trading rules of symbol. Simulated sessions trade
// unknown symbols without limits.
func (m *Manager) MarketStatus(symbol string) (model.MarketStatus, error) {
	if ms, ok := m.marketStatus(symbol); ok {
		return ms, nil
	}
	if m.cfg.Simulated {
		return model.MarketStatus{Symbol: symbol, Active: true}, nil
	}
	return m.LoadMarket(context.Background(), symbol)
}

func (m *Manager) MarkPrice(symbol string) (decimal.Decimal, bool) {
	return m.registry.MarkPrice(symbol)
}
