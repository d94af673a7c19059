package position

import (
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/transaction"
	"github.com/yanun0323/trading-core/pkg/clock"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// Position is the exposure on one futures contract and side. Size is signed:
// positive for long exposure, negative for short.
type Position struct {
	mu       sync.RWMutex
	contract Contract
	calc     calculator
	side     enum.PositionSide
	ledger   *transaction.Ledger
	clock    clock.Clock

	status           enum.PositionStatus
	size             decimal.Decimal
	entryPrice       decimal.Decimal
	exitPrice        decimal.Decimal
	markPrice        decimal.Decimal
	alreadyReduced   decimal.Decimal
	realizedPnl      decimal.Decimal
	unrealizedPnl    decimal.Decimal
	value            decimal.Decimal
	initialMargin    decimal.Decimal
	liquidationPrice decimal.Decimal
	bankruptcyPrice  decimal.Decimal
	fundingRate      decimal.Decimal
	feesPaid         decimal.Decimal
	fundingPaid      decimal.Decimal
	updatedAt        float64
}

// NewLinear builds a position on a linear contract.
func NewLinear(c Contract, side enum.PositionSide, ledger *transaction.Ledger, clk clock.Clock) (*Position, error) {
	if c.Type.IsInverse() {
		return nil, errors.Wrapf(exception.ErrInvalidPosition, "linear position on inverse contract %s", c.Symbol)
	}
	return newPosition(c, side, linear{}, ledger, clk)
}

// NewInverse builds a position on an inverse contract.
func NewInverse(c Contract, side enum.PositionSide, ledger *transaction.Ledger, clk clock.Clock) (*Position, error) {
	if c.Type.IsFuture() && !c.Type.IsInverse() {
		return nil, errors.Wrapf(exception.ErrInvalidPosition, "inverse position on linear contract %s", c.Symbol)
	}
	return newPosition(c, side, inverse{}, ledger, clk)
}

// New builds the position matching the contract type.
func New(c Contract, side enum.PositionSide, ledger *transaction.Ledger, clk clock.Clock) (*Position, error) {
	if c.Type.IsInverse() {
		return NewInverse(c, side, ledger, clk)
	}
	return NewLinear(c, side, ledger, clk)
}

func newPosition(c Contract, side enum.PositionSide, calc calculator, ledger *transaction.Ledger, clk clock.Clock) (*Position, error) {
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if !side.IsAvailable() {
		side = enum.PositionSideBoth
	}
	if ledger == nil {
		ledger = transaction.NewLedger(nil)
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Position{
		contract: c,
		calc:     calc,
		side:     side,
		ledger:   ledger,
		clock:    clk,
		status:   enum.PositionStatusClosed,
	}, nil
}

// Fill is an execution applied to a position.
type Fill struct {
	OrderID    string
	Side       enum.OrderSide
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Fee        model.Fee
	ReduceOnly bool
}

// UpdateFromFill applies f. Fills against the current exposure realize PnL;
// the part exceeding the size opens the opposite exposure unless the fill is
// reduce only or the position is one side of a hedge.
func (p *Position) UpdateFromFill(f Fill) ([]transaction.Transaction, error) {
	if f.Quantity.Sign() <= 0 || f.Price.Sign() <= 0 {
		return nil, errors.Wrapf(exception.ErrInvalidFill, "position %s, quantity: %s, price: %s", p.contract.Symbol, f.Quantity, f.Price)
	}
	delta := f.Quantity
	if f.Side == enum.OrderSideSell {
		delta = delta.Neg()
	}

	p.mu.Lock()
	increasing := p.size.IsZero() || p.size.Sign() == delta.Sign()
	if increasing && f.ReduceOnly {
		p.mu.Unlock()
		return nil, errors.Wrapf(exception.ErrReduceOnlyRejected, "position %s has nothing to reduce", p.contract.Symbol)
	}
	now := model.Timestamp(p.clock.Now())
	p.updatedAt = now
	var txs []transaction.Transaction
	if fee := f.Fee.Cost; fee.Sign() != 0 {
		p.feesPaid = p.feesPaid.Add(fee)
		tx := p.newTx(now, f.OrderID, enum.TransactionTypeTradingFee, fee.Neg(), decimal.Zero)
		if f.Fee.Currency != "" {
			tx.Currency = f.Fee.Currency
		}
		txs = append(txs, tx)
	}

	if increasing {
		p.increaseLocked(delta, f.Price)
	} else {
		closed := decimal.Min(delta.Abs(), p.size.Abs())
		if delta.Sign() < 0 {
			closed = closed.Neg()
		}
		txs = append(txs, p.decreaseLocked(now, f.OrderID, closed, f.Price))
		rest := delta.Sub(closed)
		if !rest.IsZero() && !f.ReduceOnly && p.side == enum.PositionSideBoth {
			p.increaseLocked(rest, f.Price)
		}
	}
	p.refreshLocked()
	p.mu.Unlock()
	return p.append(txs), nil
}

func (p *Position) increaseLocked(delta, price decimal.Decimal) {
	if p.size.IsZero() {
		p.entryPrice = price
	} else {
		p.entryPrice = p.calc.averagePrice(p.size, p.entryPrice, delta, price)
	}
	p.size = p.size.Add(delta)
	p.status = enum.PositionStatusOpen
}

func (p *Position) decreaseLocked(now float64, orderID string, closed, price decimal.Decimal) transaction.Transaction {
	// closed has the opposite sign of size
	realized := p.calc.pnl(closed.Neg().Mul(p.contract.ContractSize), p.entryPrice, price)
	if p.alreadyReduced.IsZero() {
		p.exitPrice = price
	} else {
		p.exitPrice = p.calc.averagePrice(p.alreadyReduced, p.exitPrice, closed, price)
	}
	p.alreadyReduced = p.alreadyReduced.Add(closed)
	p.realizedPnl = p.realizedPnl.Add(realized)
	p.size = p.size.Add(closed)

	tx := p.newTx(now, orderID, enum.TransactionTypeRealizedPnl, realized, closed)
	if p.size.IsZero() {
		p.resetLocked(enum.PositionStatusClosed)
	}
	return tx
}

func (p *Position) resetLocked(status enum.PositionStatus) {
	p.status = status
	p.size = decimal.Zero
	p.entryPrice = decimal.Zero
	p.exitPrice = decimal.Zero
	p.alreadyReduced = decimal.Zero
	p.unrealizedPnl = decimal.Zero
	p.value = decimal.Zero
	p.initialMargin = decimal.Zero
	p.liquidationPrice = decimal.Zero
	p.bankruptcyPrice = decimal.Zero
}

// refreshLocked recomputes the mark dependent values.
func (p *Position) refreshLocked() {
	if p.size.IsZero() {
		return
	}
	long := p.size.Sign() > 0
	notional := p.size.Mul(p.contract.ContractSize)
	p.liquidationPrice = decimal.Zero
	if p.contract.MarginType == enum.MarginTypeIsolated || p.contract.MarginType == enum.MarginTypeCross {
		p.liquidationPrice = p.calc.liquidationPrice(long, p.entryPrice, p.contract.Leverage, p.contract.MaintenanceMarginRate, p.fundingRate)
	}
	p.bankruptcyPrice = p.calc.bankruptcyPrice(long, p.entryPrice, p.contract.Leverage)

	mark := p.markPrice
	if mark.Sign() <= 0 {
		mark = p.entryPrice
	}
	p.unrealizedPnl = p.calc.pnl(notional, p.entryPrice, mark)
	p.value = p.calc.value(notional, mark)
	p.initialMargin = model.Div(p.value, p.contract.Leverage)
}

// SetMarkPrice recomputes PnL, value, margin and liquidation price at mark. A
// mark crossing the liquidation price liquidates the whole size.
func (p *Position) SetMarkPrice(mark decimal.Decimal) ([]transaction.Transaction, error) {
	if mark.Sign() <= 0 {
		return nil, errors.Wrapf(exception.ErrInvalidArgument, "position %s mark price: %s", p.contract.Symbol, mark)
	}
	p.mu.Lock()
	p.markPrice = mark
	p.refreshLocked()
	if !p.shouldLiquidateLocked() {
		p.mu.Unlock()
		return nil, nil
	}
	now := model.Timestamp(p.clock.Now())
	p.status = enum.PositionStatusLiquidating
	loss := p.unrealizedPnl
	tx := p.newTx(now, "", enum.TransactionTypeLiquidation, loss, p.size.Neg())
	tx.AverageExitPrice = mark
	p.realizedPnl = p.realizedPnl.Add(loss)
	size, liquidation := p.size, p.liquidationPrice
	p.resetLocked(enum.PositionStatusLiquidated)
	p.updatedAt = now
	p.mu.Unlock()

	logs.Infof("position liquidated, symbol: %s, size: %s, mark: %s, liquidation price: %s", p.contract.Symbol, size, mark, liquidation)
	return p.append([]transaction.Transaction{tx}), nil
}

func (p *Position) shouldLiquidateLocked() bool {
	if p.size.IsZero() || p.liquidationPrice.Sign() <= 0 {
		return false
	}
	if p.size.Sign() > 0 {
		return p.markPrice.LessThanOrEqual(p.liquidationPrice)
	}
	return p.markPrice.GreaterThanOrEqual(p.liquidationPrice)
}

// SetFundingRate records the rate used by liquidation prices.
func (p *Position) SetFundingRate(rate decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fundingRate = rate
	p.refreshLocked()
}

// ApplyFunding pays or receives funding at rate on the current value. Longs pay
// positive rates.
func (p *Position) ApplyFunding(rate decimal.Decimal) (transaction.Transaction, bool) {
	p.mu.Lock()
	if p.size.IsZero() || rate.IsZero() {
		p.mu.Unlock()
		return transaction.Transaction{}, false
	}
	amount := p.value.Mul(rate)
	if p.size.Sign() > 0 {
		amount = amount.Neg()
	}
	now := model.Timestamp(p.clock.Now())
	p.fundingPaid = p.fundingPaid.Sub(amount)
	tx := p.newTx(now, "", enum.TransactionTypeFundingFee, amount, decimal.Zero)
	p.mu.Unlock()
	return p.append([]transaction.Transaction{tx})[0], true
}

// Sync replaces the position with the exchange view.
func (p *Position) Sync(size, entry, mark decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if size.IsZero() {
		p.resetLocked(enum.PositionStatusClosed)
		p.markPrice = mark
		return
	}
	p.size = size
	p.entryPrice = entry
	if mark.Sign() > 0 {
		p.markPrice = mark
	}
	p.status = enum.PositionStatusOpen
	p.refreshLocked()
}

// FeeToOpen returns the taker fee paid to open quantity at price.
func (p *Position) FeeToOpen(quantity, price decimal.Decimal) decimal.Decimal {
	return p.calc.fee(p.contract.TakerFee, quantity.Mul(p.contract.ContractSize), price)
}

// TwoWayTakerFee returns the taker fee of opening and closing quantity at
// price.
func (p *Position) TwoWayTakerFee(quantity, price decimal.Decimal) decimal.Decimal {
	return p.FeeToOpen(quantity, price).Mul(model.Two)
}

// MarginFor returns the initial margin quantity at price requires.
func (p *Position) MarginFor(quantity, price decimal.Decimal) decimal.Decimal {
	return model.Div(p.calc.value(quantity.Mul(p.contract.ContractSize), price), p.contract.Leverage)
}

// SetLeverage changes the leverage of the contract.
func (p *Position) SetLeverage(leverage decimal.Decimal) error {
	if leverage.Sign() <= 0 {
		return errors.Wrapf(exception.ErrInvalidLeverage, "position %s, leverage: %s", p.contract.Symbol, leverage)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contract.Leverage = leverage
	p.refreshLocked()
	return nil
}

func (p *Position) newTx(now float64, orderID string, typ enum.TransactionType, amount, delta decimal.Decimal) transaction.Transaction {
	return transaction.Transaction{
		Timestamp:             now,
		Symbol:                p.contract.Symbol,
		Side:                  p.side,
		Type:                  typ,
		Currency:              p.contract.SettlementCurrency(),
		Amount:                amount,
		QuantityDelta:         delta,
		CumulativeReducedSize: p.alreadyReduced,
		AverageExitPrice:      p.exitPrice,
		OrderID:               orderID,
	}
}

func (p *Position) append(txs []transaction.Transaction) []transaction.Transaction {
	for i := range txs {
		txs[i] = p.ledger.Append(txs[i])
	}
	return txs
}
