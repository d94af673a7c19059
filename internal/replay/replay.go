// Package replay feeds recorded market data into an exchange session, one
// JSON record per line.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/yanun0323/trading-core/internal/bus"
	"github.com/yanun0323/trading-core/internal/exchange"
	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/pkg/clock"
	"github.com/yanun0323/trading-core/pkg/exception"
	"github.com/yanun0323/trading-core/pkg/scanner"
)

const maxLineSize = 1 << 20

var channels = map[string]enum.Channel{
	"trade":   enum.ChannelRecentTrades,
	"mark":    enum.ChannelMarkPrice,
	"ticker":  enum.ChannelTicker,
	"book":    enum.ChannelOrderBook,
	"kline":   enum.ChannelKline,
	"funding": enum.ChannelPositions,
}

// Record is one recorded market event. Fields unused by its type stay zero.
type Record struct {
	Type      string          `json:"type"`
	Symbol    string          `json:"symbol"`
	Timestamp float64         `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Side      string          `json:"side"`
	Source    string          `json:"source"`

	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
	Bid    decimal.Decimal `json:"bid"`
	Ask    decimal.Decimal `json:"ask"`

	Bids []model.BookLevel `json:"bids"`
	Asks []model.BookLevel `json:"asks"`

	Rate   decimal.Decimal `json:"rate"`
	Settle bool            `json:"settle"`
}

// Decode parses one line into a bus event carrying a Record.
func Decode(line []byte) (bus.Event, error) {
	kind, ok := scanner.StringField(line, "type")
	if !ok {
		return bus.Event{}, errors.Wrap(exception.ErrInvalidArgument, "record without type")
	}
	channel, ok := channels[string(kind)]
	if !ok {
		return bus.Event{}, errors.Wrapf(exception.ErrInvalidArgument, "unknown record type: %s", kind)
	}
	var rec Record
	if err := sonic.Unmarshal(line, &rec); err != nil {
		return bus.Event{}, errors.Wrap(err, "decode record")
	}
	if rec.Symbol == "" {
		return bus.Event{}, errors.Wrapf(exception.ErrInvalidSymbol, "%s record without symbol", kind)
	}
	return bus.Event{Channel: channel, Symbol: rec.Symbol, Payload: rec}, nil
}

// Read publishes every record of r to q and closes q. Blank lines and lines
// starting with # are skipped.
func Read(ctx context.Context, r io.Reader, q *bus.Queue) (int, error) {
	defer q.Close()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	n, lineNo := 0, 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		e, err := Decode(line)
		if err != nil {
			return n, errors.Wrapf(err, "line %d", lineNo)
		}
		if err := q.Publish(ctx, e); err != nil {
			return n, err
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, errors.Wrap(err, "scan records")
	}
	return n, nil
}

// Player applies records to an exchange session.
type Player struct {
	m       *exchange.Manager
	clock   *clock.Manual
	started bool
}

// NewPlayer returns a player driving m. When clk is set it jumps to the
// first record timestamp and then only moves forward.
func NewPlayer(m *exchange.Manager, clk *clock.Manual) *Player {
	return &Player{m: m, clock: clk}
}

// Apply hands e to the session and runs the turns it scheduled.
func (p *Player) Apply(e bus.Event) error {
	rec, ok := e.Payload.(Record)
	if !ok {
		return errors.Wrapf(exception.ErrTypeUnsupported, "payload: %T", e.Payload)
	}
	if p.clock != nil && rec.Timestamp > 0 {
		if ts := model.ToTime(rec.Timestamp); !p.started || ts.After(p.clock.Now()) {
			p.clock.Set(ts)
		}
		p.started = true
	}
	ts := rec.Timestamp
	if ts <= 0 {
		ts = p.m.Now()
	}

	var err error
	switch e.Channel {
	case enum.ChannelRecentTrades:
		_, err = p.m.HandleRecentTrades(rec.Symbol, []model.RecentTrade{{
			Price:     rec.Price,
			Amount:    rec.Amount,
			Cost:      rec.Price.Mul(rec.Amount),
			Timestamp: ts,
			Side:      enum.ParseOrderSide(rec.Side),
		}})
	case enum.ChannelMarkPrice:
		source := enum.MarkPriceSourceExchange
		if rec.Source != "" {
			source = enum.ParseMarkPriceSource(rec.Source)
		}
		_, err = p.m.HandleMarkPrice(rec.Symbol, rec.Price, source)
	case enum.ChannelTicker:
		_, err = p.m.HandleTicker(rec.Symbol, model.Ticker{
			Symbol:    rec.Symbol,
			Last:      rec.Price,
			Bid:       rec.Bid,
			Ask:       rec.Ask,
			Close:     rec.Close,
			Volume:    rec.Volume,
			Timestamp: ts,
		})
	case enum.ChannelOrderBook:
		err = p.m.HandleOrderBook(rec.Symbol, model.OrderBookSnapshot{Bids: rec.Bids, Asks: rec.Asks, Timestamp: ts})
	case enum.ChannelKline:
		err = p.m.HandleKline(rec.Symbol, model.Candle{
			Time:   ts,
			Open:   rec.Open,
			High:   rec.High,
			Low:    rec.Low,
			Close:  rec.Close,
			Volume: rec.Volume,
		})
	case enum.ChannelPositions:
		err = p.m.HandleFundingRate(rec.Symbol, rec.Rate, rec.Settle)
	default:
		err = errors.Wrapf(exception.ErrUnknownChannel, "channel: %s", e.Channel)
	}
	p.m.Drain()
	return err
}

// Run applies the events of q until q is closed or ctx is done. Failed
// records are logged and skipped.
func (p *Player) Run(ctx context.Context, q *bus.Queue) (applied, failed int) {
	q.Run(ctx, func(e bus.Event) {
		if err := p.Apply(e); err != nil {
			failed++
			logs.Errorf("apply %s record of %s, err: %+v", e.Channel, e.Symbol, err)
			return
		}
		applied++
	})
	return applied, failed
}
