package enum

type PositionSide uint8

const (
	_positionSide_beg PositionSide = iota
	PositionSideBoth
	PositionSideLong
	PositionSideShort
	_positionSide_end
)

func (s PositionSide) IsAvailable() bool {
	return s > _positionSide_beg && s < _positionSide_end
}

func (s PositionSide) String() string {
	switch s {
	case PositionSideBoth:
		return "both"
	case PositionSideLong:
		return "long"
	case PositionSideShort:
		return "short"
	default:
		return ""
	}
}

func ParsePositionSide(s string) PositionSide {
	for v := _positionSide_beg + 1; v < _positionSide_end; v++ {
		if v.String() == s {
			return v
		}
	}
	return _positionSide_beg
}

type PositionMode uint8

const (
	_positionMode_beg PositionMode = iota
	PositionModeOneWay
	PositionModeHedge
	_positionMode_end
)

func (m PositionMode) IsAvailable() bool {
	return m > _positionMode_beg && m < _positionMode_end
}

type MarginType uint8

const (
	_marginType_beg MarginType = iota
	MarginTypeIsolated
	MarginTypeCross
	_marginType_end
)

func (m MarginType) IsAvailable() bool {
	return m > _marginType_beg && m < _marginType_end
}

func (m MarginType) String() string {
	switch m {
	case MarginTypeIsolated:
		return "isolated"
	case MarginTypeCross:
		return "cross"
	default:
		return ""
	}
}

func ParseMarginType(s string) MarginType {
	switch s {
	case "isolated":
		return MarginTypeIsolated
	case "cross":
		return MarginTypeCross
	default:
		return _marginType_beg
	}
}

type ContractType uint8

const (
	_contractType_beg ContractType = iota
	ContractTypeSpot
	ContractTypeLinearPerpetual
	ContractTypeInversePerpetual
	ContractTypeLinearExpirable
	ContractTypeInverseExpirable
	_contractType_end
)

func (c ContractType) IsAvailable() bool {
	return c > _contractType_beg && c < _contractType_end
}

func (c ContractType) String() string {
	switch c {
	case ContractTypeSpot:
		return "spot"
	case ContractTypeLinearPerpetual:
		return "linear_perpetual"
	case ContractTypeInversePerpetual:
		return "inverse_perpetual"
	case ContractTypeLinearExpirable:
		return "linear_expirable"
	case ContractTypeInverseExpirable:
		return "inverse_expirable"
	default:
		return ""
	}
}

func ParseContractType(s string) ContractType {
	for v := _contractType_beg + 1; v < _contractType_end; v++ {
		if v.String() == s {
			return v
		}
	}
	return _contractType_beg
}

func (c ContractType) IsFuture() bool {
	return c.IsAvailable() && c != ContractTypeSpot
}

func (c ContractType) IsInverse() bool {
	return c == ContractTypeInversePerpetual || c == ContractTypeInverseExpirable
}

func (c ContractType) IsPerpetual() bool {
	return c == ContractTypeLinearPerpetual || c == ContractTypeInversePerpetual
}

type PositionStatus uint8

const (
	_positionStatus_beg PositionStatus = iota
	PositionStatusOpen
	PositionStatusClosed
	PositionStatusLiquidating
	PositionStatusADL
	PositionStatusLiquidated
	_positionStatus_end
)

func (s PositionStatus) IsAvailable() bool {
	return s > _positionStatus_beg && s < _positionStatus_end
}

func (s PositionStatus) String() string {
	switch s {
	case PositionStatusOpen:
		return "open"
	case PositionStatusClosed:
		return "closed"
	case PositionStatusLiquidating:
		return "liquidating"
	case PositionStatusADL:
		return "adl"
	case PositionStatusLiquidated:
		return "liquidated"
	default:
		return ""
	}
}

type TransactionType uint8

const (
	_transactionType_beg TransactionType = iota
	TransactionTypeTradingFee
	TransactionTypeRealizedPnl
	TransactionTypeFundingFee
	TransactionTypeLiquidation
	TransactionTypeTransfer
	_transactionType_end
)

func (t TransactionType) IsAvailable() bool {
	return t > _transactionType_beg && t < _transactionType_end
}

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeTradingFee:
		return "trading_fee"
	case TransactionTypeRealizedPnl:
		return "realized_pnl"
	case TransactionTypeFundingFee:
		return "funding_fee"
	case TransactionTypeLiquidation:
		return "liquidation"
	case TransactionTypeTransfer:
		return "transfer"
	default:
		return ""
	}
}

func ParseTransactionType(s string) TransactionType {
	for v := _transactionType_beg + 1; v < _transactionType_end; v++ {
		if v.String() == s {
			return v
		}
	}
	return _transactionType_beg
}
