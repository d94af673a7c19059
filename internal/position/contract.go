package position

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// DefaultMaintenanceMarginRate is used by contracts loaded without one.
var DefaultMaintenanceMarginRate = decimal.RequireFromString("0.01")

// Contract describes a futures contract and the account settings applied to
// it.
type Contract struct {
	Symbol                string
	Type                  enum.ContractType
	MarginType            enum.MarginType
	PositionMode          enum.PositionMode
	Leverage              decimal.Decimal
	ContractSize          decimal.Decimal
	MaintenanceMarginRate decimal.Decimal
	MakerFee              decimal.Decimal
	TakerFee              decimal.Decimal
	// ExpiresAt is zero for perpetual contracts.
	ExpiresAt float64
}

// WithDefaults fills the unset optional fields.
func (c Contract) WithDefaults() Contract {
	if !c.MarginType.IsAvailable() {
		c.MarginType = enum.MarginTypeIsolated
	}
	if !c.PositionMode.IsAvailable() {
		c.PositionMode = enum.PositionModeOneWay
	}
	if c.Leverage.Sign() <= 0 {
		c.Leverage = model.One
	}
	if c.ContractSize.Sign() <= 0 {
		c.ContractSize = model.One
	}
	if c.MaintenanceMarginRate.Sign() <= 0 {
		c.MaintenanceMarginRate = DefaultMaintenanceMarginRate
	}
	return c
}

func (c Contract) Validate() error {
	if _, err := model.ParseSymbol(c.Symbol); err != nil {
		return err
	}
	if !c.Type.IsFuture() {
		return errors.Wrapf(exception.ErrInvalidPosition, "contract %s is not a future, type: %s", c.Symbol, c.Type)
	}
	if c.Leverage.Sign() < 0 {
		return errors.Wrapf(exception.ErrInvalidLeverage, "contract: %s, leverage: %s", c.Symbol, c.Leverage)
	}
	return nil
}

// SettlementCurrency returns the currency margins and PnL are expressed in.
func (c Contract) SettlementCurrency() string {
	s, err := model.ParseSymbol(c.Symbol)
	if err != nil {
		return ""
	}
	if c.Type.IsInverse() {
		return s.Base
	}
	return s.SettlementCurrency()
}
