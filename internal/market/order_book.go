package market

import (
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
)

type bookLevel struct {
	price  decimal.Decimal
	amount decimal.Decimal
	orders map[string]decimal.Decimal
}

type bookOrder struct {
	side  enum.OrderSide
	price string
}

// OrderBookManager mirrors an exchange book. It accepts level snapshots and
// deltas (L2) as well as per order adds, updates and deletes (L3).
type OrderBookManager struct {
	mu        sync.RWMutex
	bids      map[string]*bookLevel
	asks      map[string]*bookLevel
	orders    map[string]bookOrder
	timestamp float64
}

func NewOrderBookManager() *OrderBookManager {
	return &OrderBookManager{
		bids:   make(map[string]*bookLevel),
		asks:   make(map[string]*bookLevel),
		orders: make(map[string]bookOrder),
	}
}

func (b *OrderBookManager) side(side enum.OrderSide) map[string]*bookLevel {
	if side == enum.OrderSideSell {
		return b.asks
	}
	return b.bids
}

// HandleSnapshot replaces the whole book.
func (b *OrderBookManager) HandleSnapshot(snapshot model.OrderBookSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.bids)
	clear(b.asks)
	clear(b.orders)
	for _, l := range snapshot.Bids {
		b.applyLevel(enum.OrderSideBuy, l)
	}
	for _, l := range snapshot.Asks {
		b.applyLevel(enum.OrderSideSell, l)
	}
	b.timestamp = snapshot.Timestamp
}

// HandleDelta applies level updates. A zero amount removes the level.
func (b *OrderBookManager) HandleDelta(side enum.OrderSide, levels []model.BookLevel, timestamp float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range levels {
		b.applyLevel(side, l)
	}
	b.timestamp = timestamp
}

func (b *OrderBookManager) applyLevel(side enum.OrderSide, l model.BookLevel) {
	if l.ID != "" {
		b.addOrder(side, l)
		return
	}
	levels := b.side(side)
	key := l.Price.String()
	if l.Amount.Sign() <= 0 {
		delete(levels, key)
		return
	}
	levels[key] = &bookLevel{price: l.Price, amount: l.Amount}
}

// AddOrders inserts individual book orders.
func (b *OrderBookManager) AddOrders(side enum.OrderSide, orders []model.BookLevel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range orders {
		b.addOrder(side, o)
	}
}

func (b *OrderBookManager) addOrder(side enum.OrderSide, o model.BookLevel) {
	if _, ok := b.orders[o.ID]; ok {
		b.deleteOrder(o.ID)
	}
	if o.Amount.Sign() <= 0 {
		return
	}
	levels := b.side(side)
	key := o.Price.String()
	lvl, ok := levels[key]
	if !ok {
		lvl = &bookLevel{price: o.Price}
		levels[key] = lvl
	}
	if lvl.orders == nil {
		lvl.orders = make(map[string]decimal.Decimal)
	}
	lvl.orders[o.ID] = o.Amount
	lvl.amount = lvl.amount.Add(o.Amount)
	b.orders[o.ID] = bookOrder{side: side, price: key}
}

// UpdateOrders changes the amount of known book orders. Unknown ids are added.
func (b *OrderBookManager) UpdateOrders(side enum.OrderSide, orders []model.BookLevel) {
	b.AddOrders(side, orders)
}

// DeleteOrders removes book orders by id.
func (b *OrderBookManager) DeleteOrders(ids []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		b.deleteOrder(id)
	}
}

func (b *OrderBookManager) deleteOrder(id string) {
	ref, ok := b.orders[id]
	if !ok {
		return
	}
	delete(b.orders, id)
	levels := b.side(ref.side)
	lvl, ok := levels[ref.price]
	if !ok {
		return
	}
	lvl.amount = lvl.amount.Sub(lvl.orders[id])
	delete(lvl.orders, id)
	if lvl.amount.Sign() <= 0 || len(lvl.orders) == 0 {
		delete(levels, ref.price)
	}
}

// Levels returns up to limit levels of a side, best first. A non positive limit
// returns every level.
func (b *OrderBookManager) Levels(side enum.OrderSide, limit int) []model.BookLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	levels := b.side(side)
	out := make([]model.BookLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, model.BookLevel{Price: l.price, Amount: l.amount})
	}
	slices.SortFunc(out, func(x, y model.BookLevel) int {
		if side == enum.OrderSideSell {
			return x.Price.Cmp(y.Price)
		}
		return y.Price.Cmp(x.Price)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (b *OrderBookManager) BestBid() (model.BookLevel, bool) {
	return b.best(enum.OrderSideBuy)
}

func (b *OrderBookManager) BestAsk() (model.BookLevel, bool) {
	return b.best(enum.OrderSideSell)
}

func (b *OrderBookManager) best(side enum.OrderSide) (model.BookLevel, bool) {
	levels := b.Levels(side, 1)
	if len(levels) == 0 {
		return model.BookLevel{}, false
	}
	return levels[0], true
}

// Spread returns best ask minus best bid.
func (b *OrderBookManager) Spread() (decimal.Decimal, bool) {
	bid, ok := b.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}

func (b *OrderBookManager) Timestamp() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.timestamp
}

func (b *OrderBookManager) Reset() {
	b.HandleSnapshot(model.OrderBookSnapshot{})
}
