package state

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/internal/order"
	"github.com/yanun0323/trading-core/internal/portfolio"
	"github.com/yanun0323/trading-core/internal/position"
	"github.com/yanun0323/trading-core/pkg/exception"
)

// Snapshot captures the orders, positions and portfolio of an exchange
// session at a point in time.
type Snapshot struct {
	Timestamp    float64         `json:"timestamp"`
	Exchange     string          `json:"exchange"`
	Value        string          `json:"value"`
	Assets       []AssetEntry    `json:"assets"`
	Positions    []position.Dict `json:"positions"`
	OpenOrders   []order.Dict    `json:"openOrders"`
	ClosedOrders []order.Dict    `json:"closedOrders"`
}

// AssetEntry is a single currency balance.
type AssetEntry struct {
	Currency  string `json:"currency"`
	Total     string `json:"total"`
	Available string `json:"available"`
}

// View is the read side of an exchange session.
type View interface {
	Name() string
	Now() float64
	GetOpenOrders(symbol string) []*order.Order
	ClosedOrders() []*order.Order
	GetPositions(symbol string) []*position.Position
	Assets() map[string]portfolio.Asset
	PortfolioValue() decimal.Decimal
}

// Capture builds a snapshot from a session view.
func Capture(v View) Snapshot {
	snap := Snapshot{
		Timestamp: v.Now(),
		Exchange:  v.Name(),
		Value:     v.PortfolioValue().String(),
	}

	assets := v.Assets()
	for currency, a := range assets {
		snap.Assets = append(snap.Assets, AssetEntry{
			Currency:  currency,
			Total:     a.Total.String(),
			Available: a.Available.String(),
		})
	}
	sort.Slice(snap.Assets, func(i, j int) bool {
		return snap.Assets[i].Currency < snap.Assets[j].Currency
	})

	for _, p := range v.GetPositions("") {
		if p.Size().IsZero() {
			continue
		}
		snap.Positions = append(snap.Positions, p.ToDict())
	}
	sort.Slice(snap.Positions, func(i, j int) bool {
		if snap.Positions[i].Symbol != snap.Positions[j].Symbol {
			return snap.Positions[i].Symbol < snap.Positions[j].Symbol
		}
		return snap.Positions[i].Side < snap.Positions[j].Side
	})

	for _, o := range v.GetOpenOrders("") {
		snap.OpenOrders = append(snap.OpenOrders, o.ToDict())
	}
	for _, o := range v.ClosedOrders() {
		snap.ClosedOrders = append(snap.ClosedOrders, o.ToDict())
	}
	return snap
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := sonic.ConfigStd.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "mkdir, dir: %s", dir)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "read snapshot, path: %s", path)
	}
	var snap Snapshot
	if err := sonic.ConfigStd.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, errors.Wrapf(err, "unmarshal snapshot, path: %s", path)
	}
	return snap, nil
}

// CompareSnapshots checks that two snapshots hold the same balances,
// positions and open orders.
func CompareSnapshots(expected, actual Snapshot) error {
	if len(expected.Assets) != len(actual.Assets) {
		return errors.Wrapf(exception.ErrSnapshotMismatch, "asset count, expected: %d, actual: %d", len(expected.Assets), len(actual.Assets))
	}
	assets := make(map[string]AssetEntry, len(expected.Assets))
	for _, a := range expected.Assets {
		assets[a.Currency] = a
	}
	for _, a := range actual.Assets {
		want, ok := assets[a.Currency]
		if !ok {
			return errors.Wrapf(exception.ErrSnapshotMismatch, "unexpected asset: %s", a.Currency)
		}
		if !equalDecimal(want.Total, a.Total) || !equalDecimal(want.Available, a.Available) {
			return errors.Wrapf(exception.ErrSnapshotMismatch, "asset %s, expected: %s/%s, actual: %s/%s",
				a.Currency, want.Total, want.Available, a.Total, a.Available)
		}
	}

	if len(expected.Positions) != len(actual.Positions) {
		return errors.Wrapf(exception.ErrSnapshotMismatch, "position count, expected: %d, actual: %d", len(expected.Positions), len(actual.Positions))
	}
	positions := make(map[string]position.Dict, len(expected.Positions))
	for _, p := range expected.Positions {
		positions[p.Symbol+"|"+p.Side] = p
	}
	for _, p := range actual.Positions {
		want, ok := positions[p.Symbol+"|"+p.Side]
		if !ok {
			return errors.Wrapf(exception.ErrSnapshotMismatch, "unexpected position: %s %s", p.Symbol, p.Side)
		}
		if !equalDecimal(want.Size, p.Size) {
			return errors.Wrapf(exception.ErrSnapshotMismatch, "position %s %s size, expected: %s, actual: %s", p.Symbol, p.Side, want.Size, p.Size)
		}
	}

	if len(expected.OpenOrders) != len(actual.OpenOrders) {
		return errors.Wrapf(exception.ErrSnapshotMismatch, "open order count, expected: %d, actual: %d", len(expected.OpenOrders), len(actual.OpenOrders))
	}
	orders := make(map[string]order.Dict, len(expected.OpenOrders))
	for _, o := range expected.OpenOrders {
		orders[o.ID] = o
	}
	for _, o := range actual.OpenOrders {
		want, ok := orders[o.ID]
		if !ok {
			return errors.Wrapf(exception.ErrSnapshotMismatch, "unexpected open order: %s", o.ID)
		}
		if want.Status != o.Status || !equalDecimal(want.Filled, o.Filled) {
			return errors.Wrapf(exception.ErrSnapshotMismatch, "order %s, expected: %s %s, actual: %s %s", o.ID, want.Status, want.Filled, o.Status, o.Filled)
		}
	}
	return nil
}

func equalDecimal(a, b string) bool {
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return da.Equal(db)
}
