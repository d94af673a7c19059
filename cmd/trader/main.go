package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"github.com/yanun0323/trading-core/internal/bus"
	"github.com/yanun0323/trading-core/internal/exchange"
	"github.com/yanun0323/trading-core/internal/ledger"
	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/obs"
	"github.com/yanun0323/trading-core/internal/ops"
	"github.com/yanun0323/trading-core/internal/order"
	"github.com/yanun0323/trading-core/internal/replay"
	"github.com/yanun0323/trading-core/internal/state"
	"github.com/yanun0323/trading-core/internal/transaction"
	"github.com/yanun0323/trading-core/pkg/clock"
)

type flags struct {
	configPath   string
	envPath      string
	replayPath   string
	queueSize    int
	snapshotPath string
	restorePath  string
	profileAddr  string
	ocoSymbol    string
	ocoQuantity  string
	ocoBand      string
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to JSON config")
	flag.StringVar(&f.envPath, "env", ".env", "Env file overlaying TRADING_* variables")
	flag.StringVar(&f.replayPath, "replay", "", "JSONL market data to replay")
	flag.IntVar(&f.queueSize, "queue-size", 1024, "Replay event queue capacity")
	flag.StringVar(&f.snapshotPath, "snapshot", "", "Write the session snapshot to this path on exit")
	flag.StringVar(&f.restorePath, "restore", "", "Restore balances and positions from a snapshot")
	flag.StringVar(&f.profileAddr, "pyroscope", "", "Pyroscope server address (empty=disable)")
	flag.StringVar(&f.ocoSymbol, "oco-symbol", "", "Place a buy limit / buy stop OCO pair on this symbol at the first mark price")
	flag.StringVar(&f.ocoQuantity, "oco-qty", "0.01", "Quantity of each OCO leg")
	flag.StringVar(&f.ocoBand, "oco-band", "1", "Distance of the OCO legs from the mark price, in percent")
	flag.Parse()

	if err := run(f); err != nil {
		log.Fatalf("trader failed: %+v", err)
	}
}

func run(f flags) error {
	if f.profileAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trading-core/trader",
			ServerAddress:   f.profileAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return errors.Wrap(err, "start pyroscope")
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	loaded, err := ops.Load(f.configPath, f.envPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sys.Shutdown():
			logs.Infof("shutdown requested")
			cancel()
		case <-ctx.Done():
		}
	}()

	initial := loaded.Portfolio
	var restored *state.Snapshot
	if f.restorePath != "" {
		snap, err := state.ReadSnapshot(f.restorePath)
		if err != nil {
			return err
		}
		if initial, err = state.Balances(snap); err != nil {
			return err
		}
		restored = &snap
	}

	metrics := obs.NewMetrics()
	opts := []exchange.Option{exchange.WithMetrics(metrics)}
	clk := clock.NewManual(time.Now())
	if f.replayPath != "" {
		opts = append(opts, exchange.WithClock(clk))
	}
	if loaded.LedgerDSN != "" {
		db, err := ledger.Open(ledger.Options{DSN: loaded.LedgerDSN})
		if err != nil {
			return err
		}
		sink, err := ledger.NewSink(db, loaded.Exchange.Name)
		if err != nil {
			return err
		}
		defer sink.Close()
		opts = append(opts, exchange.WithLedgerSink(sink))
	}

	m, err := exchange.NewManager(loaded.Exchange, initial, opts...)
	if err != nil {
		return err
	}
	for _, ms := range loaded.Markets {
		if err := m.SetMarketStatus(ms); err != nil {
			return err
		}
	}
	for _, c := range loaded.Contracts {
		if err := m.LoadContract(ctx, c); err != nil {
			return err
		}
	}
	if restored != nil {
		if err := state.RestorePositions(m.Positions(), *restored); err != nil {
			return err
		}
		logs.Infof("restored snapshot %s, assets: %d, positions: %d", f.restorePath, len(restored.Assets), len(restored.Positions))
	}

	trader := exchange.NewTrader(m)
	unsubscribe, err := trader.Subscribe(enum.ChannelTransactions, func(e bus.Event) {
		if tx, ok := e.Payload.(transaction.Transaction); ok {
			logs.Infof("transaction %s on %s, amount: %s %s", tx.Type, tx.Symbol, tx.Amount, tx.Currency)
		}
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	if f.ocoSymbol != "" {
		if err := armDemoOCO(ctx, trader, f); err != nil {
			return err
		}
	}

	if f.replayPath != "" {
		if err := runReplay(ctx, m, clk, f); err != nil {
			return err
		}
	}

	snap := state.Capture(trader)
	logs.Infof("session %s done, value: %s, open orders: %d, closed orders: %d, positions: %d",
		snap.Exchange, snap.Value, len(snap.OpenOrders), len(snap.ClosedOrders), len(snap.Positions))
	for _, a := range snap.Assets {
		logs.Infof("asset %s, total: %s, available: %s", a.Currency, a.Total, a.Available)
	}
	if f.snapshotPath != "" {
		if err := state.WriteSnapshot(f.snapshotPath, snap); err != nil {
			return err
		}
		logs.Infof("snapshot written to %s", f.snapshotPath)
	}

	ms := metrics.Snapshot()
	logs.Infof("metrics: events=%v risk_reasons=%v order_flow=%+v risk_eval=%+v feed=%+v",
		ms.EventCounts, ms.RiskReasonCounts, ms.OrderFlowLatency, ms.RiskEvalLatency, ms.FeedLatency)
	return nil
}

func runReplay(ctx context.Context, m *exchange.Manager, clk *clock.Manual, f flags) error {
	file, err := os.Open(f.replayPath)
	if err != nil {
		return errors.Wrapf(err, "open replay, path: %s", f.replayPath)
	}
	defer file.Close()

	q := bus.NewQueue(f.queueSize)
	readErr := make(chan error, 1)
	go func() {
		n, err := replay.Read(ctx, file, q)
		logs.Infof("replay read %d records from %s", n, f.replayPath)
		readErr <- err
	}()

	start := time.Now()
	applied, failed := replay.NewPlayer(m, clk).Run(ctx, q)
	logs.Infof("replay done, applied: %d, failed: %d, elapsed: %s", applied, failed, time.Since(start))

	select {
	case err := <-readErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// armDemoOCO places a buy limit below and a buy stop above the first mark
// price of the symbol, grouped so that the first fill cancels the other.
func armDemoOCO(ctx context.Context, trader *exchange.Trader, f flags) error {
	sym, err := model.ParseSymbol(f.ocoSymbol)
	if err != nil {
		return err
	}
	qty, err := decimal.NewFromString(f.ocoQuantity)
	if err != nil {
		return errors.Wrap(err, "parse oco quantity")
	}
	band, err := decimal.NewFromString(f.ocoBand)
	if err != nil {
		return errors.Wrap(err, "parse oco band")
	}
	offset := model.Div(band, model.Hundred)

	var unsubscribe func()
	armed := false
	unsubscribe, err = trader.Subscribe(enum.ChannelMarkPrice, func(e bus.Event) {
		mark, ok := e.Payload.(decimal.Decimal)
		if armed || !ok || e.Symbol != sym.String() {
			return
		}
		armed = true
		defer unsubscribe()

		group, err := trader.CreateGroup(enum.GroupKindOneCancelsTheOther)
		if err != nil {
			logs.Errorf("create oco group, err: %+v", err)
			return
		}
		legs := []order.Params{
			{
				Symbol:   sym.String(),
				Side:     enum.OrderSideBuy,
				Type:     enum.OrderTypeLimit,
				Quantity: qty,
				Price:    mark.Mul(model.One.Sub(offset)),
				Tag:      "demo-oco",
				GroupID:  group.ID(),
			},
			{
				Symbol:    sym.String(),
				Side:      enum.OrderSideBuy,
				Type:      enum.OrderTypeStopLoss,
				Quantity:  qty,
				StopPrice: mark.Mul(model.One.Add(offset)),
				Tag:       "demo-oco",
				GroupID:   group.ID(),
			},
		}
		for _, p := range legs {
			o, err := trader.SubmitOrder(ctx, p)
			if err != nil {
				logs.Errorf("submit oco leg on %s, err: %+v", sym, err)
				continue
			}
			logs.Infof("oco leg %s placed, type: %s, price: %s, stop: %s", o.ID(), o.Type(), o.OriginPrice(), o.StopPrice())
		}
	})
	return err
}
