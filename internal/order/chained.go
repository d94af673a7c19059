package order

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// DefaultOutdatedPriceAllowance shifts chained limit prices that would fill
// immediately on creation.
var DefaultOutdatedPriceAllowance = decimal.RequireFromString("0.005")

// Creator creates chained orders once their trigger fires.
type Creator interface {
	CreateOrder(p Params) (*Order, error)
	MarketStatus(symbol string) (model.MarketStatus, error)
	MarkPrice(symbol string) (decimal.Decimal, bool)
}

// Chained is an order waiting for another order to reach a status.
type Chained struct {
	ID        string
	TriggerID string
	On        enum.OrderStatus
	Params    Params
	Status    enum.ChainedStatus
	Order     *Order
	Err       error
}

// ChainedOrders holds the chained orders of a session, keyed by trigger order.
type ChainedOrders struct {
	mu        sync.Mutex
	byTrigger map[string][]*Chained
	creator   Creator
	allowance decimal.Decimal
}

func NewChainedOrders(creator Creator, allowance decimal.Decimal) *ChainedOrders {
	if allowance.Sign() <= 0 {
		allowance = DefaultOutdatedPriceAllowance
	}
	return &ChainedOrders{
		byTrigger: make(map[string][]*Chained),
		creator:   creator,
		allowance: allowance,
	}
}

// Add chains p to trigger. p is created when trigger reaches on, which
// defaults to filled.
func (c *ChainedOrders) Add(trigger *Order, on enum.OrderStatus, p Params) (*Chained, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if trigger.IsTerminal() {
		return nil, errors.Wrapf(exception.ErrOrderNotOpen, "trigger order: %s", trigger.ID())
	}
	if !on.IsAvailable() {
		on = enum.OrderStatusFilled
	}
	ch := &Chained{
		ID:        uuid.NewString(),
		TriggerID: trigger.ID(),
		On:        on,
		Params:    p,
		Status:    enum.ChainedStatusDisarmed,
	}
	c.mu.Lock()
	c.byTrigger[trigger.ID()] = append(c.byTrigger[trigger.ID()], ch)
	c.mu.Unlock()
	return ch, nil
}

// Of returns the chained orders waiting on trigger.
func (c *ChainedOrders) Of(triggerID string) []*Chained {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Chained(nil), c.byTrigger[triggerID]...)
}

// Retarget moves the chained orders of from to to. Used when a triggered stop
// is taken over by a new order.
func (c *ChainedOrders) Retarget(from, to *Order) {
	c.Attach(to, c.Detach(from))
}

// Detach removes and returns the chained orders waiting on trigger, so they
// survive its cancellation.
func (c *ChainedOrders) Detach(trigger *Order) []*Chained {
	c.mu.Lock()
	defer c.mu.Unlock()
	chained := c.byTrigger[trigger.ID()]
	delete(c.byTrigger, trigger.ID())
	return chained
}

// Attach makes chained wait on trigger.
func (c *ChainedOrders) Attach(trigger *Order, chained []*Chained) {
	if len(chained) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range chained {
		ch.TriggerID = trigger.ID()
	}
	c.byTrigger[trigger.ID()] = append(c.byTrigger[trigger.ID()], chained...)
}

// OnStatus activates the chained orders of trigger waiting for status. Once
// the trigger is filled or canceled the remaining ones are dropped. It returns
// the chained orders that were settled.
func (c *ChainedOrders) OnStatus(trigger *Order, status enum.OrderStatus) []*Chained {
	final := status == enum.OrderStatusFilled || status.IsCanceledFamily()
	c.mu.Lock()
	chained := c.byTrigger[trigger.ID()]
	if final {
		delete(c.byTrigger, trigger.ID())
	}
	c.mu.Unlock()

	done := make([]*Chained, 0, len(chained))
	for _, ch := range chained {
		if ch.Status != enum.ChainedStatusDisarmed {
			continue
		}
		switch {
		case ch.On == status:
			c.activate(ch)
		case final:
			ch.Status = enum.ChainedStatusDropped
		default:
			continue
		}
		done = append(done, ch)
	}
	return done
}

func (c *ChainedOrders) activate(ch *Chained) {
	p := ch.Params
	ms, err := c.creator.MarketStatus(p.Symbol)
	if err != nil {
		c.reject(ch, err)
		return
	}
	if mark, ok := c.creator.MarkPrice(p.Symbol); ok {
		if p.UpdatePriceIfOutdated(mark, ms, c.allowance) {
			logs.Infof("chained order %s price moved to %s, mark: %s", ch.ID, p.Price, mark)
		}
	}
	if p.Type == enum.OrderTypeLimit {
		if err := ms.Check(p.Quantity, p.Price); err != nil {
			c.reject(ch, err)
			return
		}
	}
	o, err := c.creator.CreateOrder(p)
	if err != nil {
		c.reject(ch, err)
		return
	}
	ch.Params = p
	ch.Order = o
	ch.Status = enum.ChainedStatusCreated
}

func (c *ChainedOrders) reject(ch *Chained, err error) {
	logs.Errorf("create chained order %s on %s, err: %+v", ch.ID, ch.TriggerID, err)
	ch.Status = enum.ChainedStatusRejected
	ch.Err = err
}
