package order

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// GroupActions carries out the sibling actions decided by a group.
type GroupActions interface {
	CancelOrder(o *Order) error
	EditOrder(o *Order, quantity decimal.Decimal) error
}

// Group is a set of orders sharing a coordination policy.
type Group struct {
	id      string
	kind    enum.GroupKind
	members []*Order
	ratios  map[string]decimal.Decimal
}

func (g *Group) ID() string           { return g.id }
func (g *Group) Kind() enum.GroupKind { return g.kind }

// Members returns the orders of the group in the order they joined.
func (g *Group) Members() []*Order { return slices.Clone(g.members) }

// Groups owns the order groups of a session.
type Groups struct {
	mu      sync.Mutex
	groups  map[string]*Group
	actions GroupActions
}

func NewGroups(actions GroupActions) *Groups {
	return &Groups{
		groups:  make(map[string]*Group),
		actions: actions,
	}
}

// Create starts an empty group of kind.
func (gs *Groups) Create(kind enum.GroupKind) (*Group, error) {
	if !kind.IsAvailable() {
		return nil, errors.Wrapf(exception.ErrInvalidArgument, "unknown group kind: %d", kind)
	}
	g := &Group{
		id:     uuid.NewString(),
		kind:   kind,
		ratios: make(map[string]decimal.Decimal),
	}
	gs.mu.Lock()
	gs.groups[g.id] = g
	gs.mu.Unlock()
	return g, nil
}

func (gs *Groups) Get(id string) (*Group, error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	g, ok := gs.groups[id]
	if !ok {
		return nil, errors.Wrapf(exception.ErrGroupNotFound, "id: %s", id)
	}
	return g, nil
}

// Add puts o in the group groupID. Balanced groups use ratio, or the order
// quantity when ratio is zero. An order belongs to at most one group.
func (gs *Groups) Add(o *Order, groupID string, ratio decimal.Decimal) error {
	g, err := gs.Get(groupID)
	if err != nil {
		return err
	}
	if o.IsTerminal() {
		return errors.Wrapf(exception.ErrOrderNotOpen, "order: %s", o.ID())
	}
	if !o.setGroup(groupID) {
		return errors.Wrapf(exception.ErrOrderAlreadyGroup, "order: %s, group: %s", o.ID(), o.GroupID())
	}
	if ratio.Sign() <= 0 {
		ratio = o.OriginQuantity()
	}

	gs.mu.Lock()
	defer gs.mu.Unlock()
	if !slices.Contains(g.members, o) {
		g.members = append(g.members, o)
	}
	g.ratios[o.ID()] = ratio
	return nil
}

// Ratio returns the ratio o holds in its group, zero outside of groups.
func (gs *Groups) Ratio(o *Order) decimal.Decimal {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	g, ok := gs.groups[o.GroupID()]
	if !ok {
		return decimal.Zero
	}
	return g.ratios[o.ID()]
}

// OnFill applies the group policy after member o received quantity.
func (gs *Groups) OnFill(o *Order, quantity decimal.Decimal) {
	g := gs.groupOf(o)
	if g == nil || quantity.Sign() <= 0 {
		return
	}
	switch g.kind {
	case enum.GroupKindOneCancelsTheOther:
		gs.cancelSiblings(g, o)
	case enum.GroupKindBalanced:
		gs.rebalance(g, o, quantity)
	}
}

// OnClose forgets o. Groups without members are dropped.
func (gs *Groups) OnClose(o *Order) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	g, ok := gs.groups[o.GroupID()]
	if !ok {
		return
	}
	g.members = slices.DeleteFunc(g.members, func(m *Order) bool { return m == o })
	delete(g.ratios, o.ID())
	if len(g.members) == 0 {
		delete(gs.groups, g.id)
	}
}

func (gs *Groups) groupOf(o *Order) *Group {
	id := o.GroupID()
	if id == "" {
		return nil
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.groups[id]
}

func (gs *Groups) siblings(g *Group, o *Order) ([]*Order, map[string]decimal.Decimal) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	siblings := make([]*Order, 0, len(g.members))
	for _, m := range g.members {
		if m != o {
			siblings = append(siblings, m)
		}
	}
	ratios := make(map[string]decimal.Decimal, len(g.ratios))
	for id, r := range g.ratios {
		ratios[id] = r
	}
	return siblings, ratios
}

func (gs *Groups) cancelSiblings(g *Group, o *Order) {
	siblings, _ := gs.siblings(g, o)
	for _, s := range siblings {
		if s.IsTerminal() {
			continue
		}
		if err := gs.actions.CancelOrder(s); err != nil {
			logs.Errorf("cancel oco sibling %s of %s, err: %+v", s.ID(), o.ID(), err)
		}
	}
}

// rebalance shrinks every sibling by quantity scaled by the ratio between the
// sibling and o.
func (gs *Groups) rebalance(g *Group, o *Order, quantity decimal.Decimal) {
	siblings, ratios := gs.siblings(g, o)
	ratio := ratios[o.ID()]
	if ratio.Sign() <= 0 {
		return
	}
	for _, s := range siblings {
		if s.IsTerminal() {
			continue
		}
		next := s.OriginQuantity().Sub(model.Div(quantity.Mul(ratios[s.ID()]), ratio))
		if next.LessThanOrEqual(s.FilledQuantity()) || next.Sign() <= 0 {
			if err := gs.actions.CancelOrder(s); err != nil {
				logs.Errorf("cancel balanced sibling %s of %s, err: %+v", s.ID(), o.ID(), err)
			}
			continue
		}
		if err := gs.actions.EditOrder(s, next); err != nil {
			logs.Errorf("resize balanced sibling %s of %s, err: %+v", s.ID(), o.ID(), err)
		}
	}
}
