package position

import (
	"github.com/shopspring/decimal"

	"github.com/yanun0323/trading-core/internal/model/enum"
)

func (p *Position) Symbol() string          { return p.contract.Symbol }
func (p *Position) Side() enum.PositionSide { return p.side }

func (p *Position) Contract() Contract {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.contract
}

func (p *Position) Status() enum.PositionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *Position) Size() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.size
}

func (p *Position) EntryPrice() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.entryPrice
}

func (p *Position) ExitPrice() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitPrice
}

func (p *Position) MarkPrice() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.markPrice
}

func (p *Position) AlreadyReducedSize() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.alreadyReduced
}

func (p *Position) RealizedPnl() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.realizedPnl
}

func (p *Position) UnrealizedPnl() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unrealizedPnl
}

func (p *Position) Value() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

func (p *Position) InitialMargin() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialMargin
}

func (p *Position) LiquidationPrice() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.liquidationPrice
}

func (p *Position) BankruptcyPrice() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bankruptcyPrice
}

func (p *Position) FeesPaid() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.feesPaid
}

func (p *Position) FundingPaid() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fundingPaid
}

func (p *Position) IsOpen() bool {
	return p.Status() == enum.PositionStatusOpen
}

// Dict is the serializable view of a position.
type Dict struct {
	Symbol           string  `json:"symbol"`
	Side             string  `json:"side"`
	Status           string  `json:"status"`
	MarginType       string  `json:"marginType"`
	Leverage         string  `json:"leverage"`
	Size             string  `json:"size"`
	EntryPrice       string  `json:"entryPrice"`
	ExitPrice        string  `json:"exitPrice"`
	MarkPrice        string  `json:"markPrice"`
	RealizedPnl      string  `json:"realizedPnl"`
	UnrealizedPnl    string  `json:"unrealizedPnl"`
	Value            string  `json:"value"`
	InitialMargin    string  `json:"initialMargin"`
	LiquidationPrice string  `json:"liquidationPrice"`
	Timestamp        float64 `json:"timestamp"`
}

func (p *Position) ToDict() Dict {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Dict{
		Symbol:           p.contract.Symbol,
		Side:             p.side.String(),
		Status:           p.status.String(),
		MarginType:       p.contract.MarginType.String(),
		Leverage:         p.contract.Leverage.String(),
		Size:             p.size.String(),
		EntryPrice:       p.entryPrice.String(),
		ExitPrice:        p.exitPrice.String(),
		MarkPrice:        p.markPrice.String(),
		RealizedPnl:      p.realizedPnl.String(),
		UnrealizedPnl:    p.unrealizedPnl.String(),
		Value:            p.value.String(),
		InitialMargin:    p.initialMargin.String(),
		LiquidationPrice: p.liquidationPrice.String(),
		Timestamp:        p.updatedAt,
	}
}
