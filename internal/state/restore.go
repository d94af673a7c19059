package state

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/position"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// Balances returns the total of every asset of a snapshot, suitable as a
// starting portfolio.
func Balances(snap Snapshot) (map[string]decimal.Decimal, error) {
	balances := make(map[string]decimal.Decimal, len(snap.Assets))
	for _, a := range snap.Assets {
		total, err := decimal.NewFromString(a.Total)
		if err != nil {
			return nil, errors.Wrapf(err, "parse total of %s", a.Currency)
		}
		balances[a.Currency] = total
	}
	return balances, nil
}

// RestorePositions syncs the positions of a snapshot into a manager. The
// contracts must be loaded beforehand.
func RestorePositions(m *position.Manager, snap Snapshot) error {
	for _, d := range snap.Positions {
		side := enum.ParsePositionSide(d.Side)
		if !side.IsAvailable() {
			return errors.Wrapf(exception.ErrInvalidArgument, "unknown position side: %s", d.Side)
		}
		p, err := m.Get(d.Symbol, side)
		if err != nil {
			return errors.Wrapf(err, "restore position of %s", d.Symbol)
		}
		size, err := decimal.NewFromString(d.Size)
		if err != nil {
			return errors.Wrapf(err, "parse size of %s", d.Symbol)
		}
		entry, err := decimal.NewFromString(d.EntryPrice)
		if err != nil {
			return errors.Wrapf(err, "parse entry price of %s", d.Symbol)
		}
		mark, _ := decimal.NewFromString(d.MarkPrice)
		p.Sync(size, entry, mark)
	}
	return nil
}
