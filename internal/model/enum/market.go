package enum

// MarkPriceSource is ordered by authority: a lower value wins over a higher one.
type MarkPriceSource uint8

const (
	_markPriceSource_beg MarkPriceSource = iota
	MarkPriceSourceExchange
	MarkPriceSourceRecentTradeAverage
	MarkPriceSourceTickerClose
	_markPriceSource_end
)

func (s MarkPriceSource) IsAvailable() bool {
	return s > _markPriceSource_beg && s < _markPriceSource_end
}

func (s MarkPriceSource) String() string {
	switch s {
	case MarkPriceSourceExchange:
		return "exchange_mark_price"
	case MarkPriceSourceRecentTradeAverage:
		return "recent_trade_average"
	case MarkPriceSourceTickerClose:
		return "ticker_close_price"
	default:
		return ""
	}
}

func ParseMarkPriceSource(s string) MarkPriceSource {
	for v := _markPriceSource_beg + 1; v < _markPriceSource_end; v++ {
		if v.String() == s {
			return v
		}
	}
	return _markPriceSource_beg
}

// MarkPriceSources lists every source from the most to the least authoritative.
func MarkPriceSources() []MarkPriceSource {
	out := make([]MarkPriceSource, 0, int(_markPriceSource_end)-1)
	for s := _markPriceSource_beg + 1; s < _markPriceSource_end; s++ {
		out = append(out, s)
	}
	return out
}

type Channel uint8

const (
	_channel_beg Channel = iota
	ChannelMarkPrice
	ChannelRecentTrades
	ChannelKline
	ChannelTicker
	ChannelOrderBook
	ChannelOrders
	ChannelTrades
	ChannelPositions
	ChannelPortfolio
	ChannelTransactions
	_channel_end
)

func (c Channel) IsAvailable() bool {
	return c > _channel_beg && c < _channel_end
}

func (c Channel) String() string {
	switch c {
	case ChannelMarkPrice:
		return "mark_price"
	case ChannelRecentTrades:
		return "recent_trades"
	case ChannelKline:
		return "kline"
	case ChannelTicker:
		return "ticker"
	case ChannelOrderBook:
		return "order_book"
	case ChannelOrders:
		return "orders"
	case ChannelTrades:
		return "trades"
	case ChannelPositions:
		return "positions"
	case ChannelPortfolio:
		return "portfolio"
	case ChannelTransactions:
		return "transactions"
	default:
		return ""
	}
}
