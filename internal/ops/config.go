package ops

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/internal/exchange"
	"github.com/yanun0323/trading-core/internal/market"
	"github.com/yanun0323/trading-core/internal/model"
	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/internal/order"
	"github.com/yanun0323/trading-core/internal/position"
	"github.com/yanun0323/trading-core/internal/risk"
	"github.com/yanun0323/trading-core/internal/trade"
	"github.com/yanun0323/trading-core/pkg/exception"
)

const envPrefix = "TRADING_"

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Exchange         string                     `json:"exchange"`
	Simulated        *bool                      `json:"simulated"`
	ReferenceMarket  string                     `json:"referenceMarket"`
	Portfolio        map[string]decimal.Decimal `json:"portfolio"`
	Markets          []MarketConfig             `json:"markets" validate:"dive"`
	Fees             FeeConfig                  `json:"fees"`
	Prices           PricesConfig               `json:"prices"`
	Orders           OrdersConfig               `json:"orders"`
	Collections      CollectionsConfig          `json:"collections"`
	Risk             RiskConfig                 `json:"risk"`
	Ledger           LedgerConfig               `json:"ledger"`
	SelfManagedStops *bool                      `json:"selfManagedStops"`
}

// MarketConfig describes one tradable symbol.
type MarketConfig struct {
	Symbol          string          `json:"symbol" validate:"required,contains=/"`
	Active          *bool           `json:"active"`
	PricePrecision  int32           `json:"pricePrecision" validate:"gte=0"`
	AmountPrecision int32           `json:"amountPrecision" validate:"gte=0"`
	Amount          model.Limits    `json:"amount"`
	Price           model.Limits    `json:"price"`
	Cost            model.Limits    `json:"cost"`
	Contract        *ContractConfig `json:"contract"`
}

// ContractConfig describes the futures contract of a market.
type ContractConfig struct {
	Type                  string          `json:"type" validate:"required,oneof=linear_perpetual inverse_perpetual linear_expirable inverse_expirable"`
	MarginType            string          `json:"marginType" validate:"omitempty,oneof=isolated cross"`
	PositionMode          string          `json:"positionMode" validate:"omitempty,oneof=one_way hedge"`
	Leverage              decimal.Decimal `json:"leverage"`
	ContractSize          decimal.Decimal `json:"contractSize"`
	MaintenanceMarginRate decimal.Decimal `json:"maintenanceMarginRate"`
	ExpiresAt             float64         `json:"expiresAt" validate:"gte=0"`
}

// FeeConfig defines the maker and taker fee rates.
type FeeConfig struct {
	Maker decimal.Decimal `json:"maker"`
	Taker decimal.Decimal `json:"taker"`
}

// PricesConfig tunes the mark price sources.
type PricesConfig struct {
	Validity                   map[string]string `json:"validity"`
	AllowedLag                 string            `json:"allowedLag"`
	DropFirstRecentTradeSample *bool             `json:"dropFirstRecentTradeSample"`
}

// OrdersConfig tunes order behavior.
type OrdersConfig struct {
	OutdatedPriceAllowance decimal.Decimal `json:"outdatedPriceAllowance"`
	TrailingPercent        decimal.Decimal `json:"trailingPercent"`
}

// CollectionsConfig bounds the in-memory histories.
type CollectionsConfig struct {
	ClosedOrders int `json:"closedOrders" validate:"gte=0"`
	Trades       int `json:"trades" validate:"gte=0"`
	Positions    int `json:"positions" validate:"gte=0"`
	RecentTrades int `json:"recentTrades" validate:"gte=0"`
}

// RiskConfig mirrors risk.Config with a readable rate window.
type RiskConfig struct {
	KillSwitch           bool            `json:"killSwitch"`
	MaxOrderQty          decimal.Decimal `json:"maxOrderQty"`
	MaxOrderNotional     decimal.Decimal `json:"maxOrderNotional"`
	MaxPosition          decimal.Decimal `json:"maxPosition"`
	OrderRateLimit       int             `json:"orderRateLimit" validate:"gte=0"`
	OrderRateWindow      string          `json:"orderRateWindow"`
	MaxPriceDeviationBps int64           `json:"maxPriceDeviationBps" validate:"gte=0"`
}

// LedgerConfig enables the postgres transaction ledger.
type LedgerConfig struct {
	DSN string `json:"dsn"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Exchange  exchange.Config
	Portfolio map[string]decimal.Decimal
	Markets   []model.MarketStatus
	Contracts []position.Contract
	LedgerDSN string
}

var validate = validator.New()

// Load reads a JSON config file, overlays TRADING_* environment variables
// (from envPath when it exists) and resolves defaults. An empty path starts
// from defaults.
func Load(path, envPath string) (Loaded, error) {
	var cfg FileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Loaded{}, errors.Wrapf(err, "read config, path: %s", path)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Loaded{}, errors.Wrapf(err, "decode config, path: %s", path)
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return Loaded{}, errors.Wrapf(err, "load env, path: %s", envPath)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Loaded{}, err
	}

	return Resolve(cfg)
}

// Resolve validates a decoded config and applies defaults.
func Resolve(cfg FileConfig) (Loaded, error) {
	if err := validate.Struct(cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "validate config")
	}

	prices, err := resolvePrices(cfg.Prices)
	if err != nil {
		return Loaded{}, err
	}
	rk, err := resolveRisk(cfg.Risk)
	if err != nil {
		return Loaded{}, err
	}

	marketCfg := market.DefaultConfig()
	marketCfg.Prices = prices
	if cfg.Collections.RecentTrades > 0 {
		marketCfg.RecentTradesSize = cfg.Collections.RecentTrades
	}

	ex := exchange.Config{
		Name:                   cfg.Exchange,
		Simulated:              boolOr(cfg.Simulated, true),
		ReferenceMarket:        cfg.ReferenceMarket,
		Market:                 marketCfg,
		MakerFee:               cfg.Fees.Maker,
		TakerFee:               cfg.Fees.Taker,
		OutdatedPriceAllowance: cfg.Orders.OutdatedPriceAllowance,
		TrailingPercent:        cfg.Orders.TrailingPercent,
		SelfManagedStops:       boolOr(cfg.SelfManagedStops, false),
		ClosedOrdersSize:       intOr(cfg.Collections.ClosedOrders, order.DefaultClosedOrdersCapacity),
		TradesSize:             intOr(cfg.Collections.Trades, trade.DefaultCapacity),
		PositionsSize:          intOr(cfg.Collections.Positions, position.DefaultCapacity),
		Risk:                   rk,
	}
	if ex.Name == "" {
		ex.Name = "simulated"
	}
	if ex.ReferenceMarket == "" {
		ex.ReferenceMarket = "USDT"
	}
	if ex.OutdatedPriceAllowance.Sign() <= 0 {
		ex.OutdatedPriceAllowance = order.DefaultOutdatedPriceAllowance
	}
	if ex.TrailingPercent.Sign() <= 0 {
		ex.TrailingPercent = order.DefaultTrailingPercent
	}

	loaded := Loaded{
		Exchange:  ex,
		Portfolio: cfg.Portfolio,
		LedgerDSN: cfg.Ledger.DSN,
	}
	for _, m := range cfg.Markets {
		sym, err := model.ParseSymbol(m.Symbol)
		if err != nil {
			return Loaded{}, err
		}
		status := model.MarketStatus{
			Symbol:          sym.String(),
			Active:          boolOr(m.Active, true),
			PricePrecision:  m.PricePrecision,
			AmountPrecision: m.AmountPrecision,
			Amount:          m.Amount,
			Price:           m.Price,
			Cost:            m.Cost,
		}
		if m.Contract != nil {
			c, err := resolveContract(sym, *m.Contract, cfg.Fees)
			if err != nil {
				return Loaded{}, err
			}
			status.ContractSize = c.ContractSize
			loaded.Contracts = append(loaded.Contracts, c)
		}
		loaded.Markets = append(loaded.Markets, status)
	}

	return loaded, nil
}

func resolveContract(sym model.Symbol, cfg ContractConfig, fees FeeConfig) (position.Contract, error) {
	c := position.Contract{
		Symbol:                sym.String(),
		Type:                  enum.ParseContractType(cfg.Type),
		MarginType:            enum.ParseMarginType(cfg.MarginType),
		Leverage:              cfg.Leverage,
		ContractSize:          cfg.ContractSize,
		MaintenanceMarginRate: cfg.MaintenanceMarginRate,
		MakerFee:              fees.Maker,
		TakerFee:              fees.Taker,
		ExpiresAt:             cfg.ExpiresAt,
	}
	if cfg.PositionMode == "hedge" {
		c.PositionMode = enum.PositionModeHedge
	}
	c = c.WithDefaults()
	if c.Type.IsInverse() != sym.IsInverse() {
		return position.Contract{}, errors.Wrapf(exception.ErrInvalidPosition, "contract type %s mismatches symbol %s", c.Type, sym)
	}
	if err := c.Validate(); err != nil {
		return position.Contract{}, err
	}
	return c, nil
}

func resolvePrices(cfg PricesConfig) (market.PricesConfig, error) {
	prices := market.DefaultPricesConfig()
	for name, raw := range cfg.Validity {
		source := enum.ParseMarkPriceSource(name)
		if !source.IsAvailable() {
			return market.PricesConfig{}, errors.Wrapf(exception.ErrUnknownPriceSource, "source: %s", name)
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return market.PricesConfig{}, errors.Wrapf(err, "parse validity of %s", name)
		}
		prices.Validity[source] = d
	}
	if cfg.AllowedLag != "" {
		d, err := time.ParseDuration(cfg.AllowedLag)
		if err != nil {
			return market.PricesConfig{}, errors.Wrap(err, "parse allowed lag")
		}
		prices.AllowedLag = d
	}
	prices.DropFirstRecentTradeSample = boolOr(cfg.DropFirstRecentTradeSample, prices.DropFirstRecentTradeSample)
	return prices, nil
}

func resolveRisk(cfg RiskConfig) (risk.Config, error) {
	rk := risk.Config{
		KillSwitch:           cfg.KillSwitch,
		MaxOrderQty:          cfg.MaxOrderQty,
		MaxOrderNotional:     cfg.MaxOrderNotional,
		MaxPosition:          cfg.MaxPosition,
		OrderRateLimit:       cfg.OrderRateLimit,
		MaxPriceDeviationBps: cfg.MaxPriceDeviationBps,
	}
	if cfg.OrderRateWindow != "" {
		d, err := time.ParseDuration(cfg.OrderRateWindow)
		if err != nil {
			return risk.Config{}, errors.Wrap(err, "parse order rate window")
		}
		rk.OrderRateWindow = d
	}
	return rk, nil
}

func applyEnv(cfg *FileConfig) error {
	if v, ok := lookupEnv("EXCHANGE"); ok {
		cfg.Exchange = v
	}
	if v, ok := lookupEnv("REFERENCE_MARKET"); ok {
		cfg.ReferenceMarket = v
	}
	if v, ok := lookupEnv("LEDGER_DSN"); ok {
		cfg.Ledger.DSN = v
	}
	if v, ok := lookupEnv("PRICES_ALLOWED_LAG"); ok {
		cfg.Prices.AllowedLag = v
	}

	bools := map[string]**bool{
		"SIMULATED":                      &cfg.Simulated,
		"SELF_MANAGED_STOPS":             &cfg.SelfManagedStops,
		"DROP_FIRST_RECENT_TRADE_SAMPLE": &cfg.Prices.DropFirstRecentTradeSample,
	}
	for key, dst := range bools {
		v, ok := lookupEnv(key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "parse %s%s", envPrefix, key)
		}
		*dst = &b
	}

	if v, ok := lookupEnv("KILL_SWITCH"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "parse %sKILL_SWITCH", envPrefix)
		}
		cfg.Risk.KillSwitch = b
	}

	decimals := map[string]*decimal.Decimal{
		"CHAINED_ORDERS_OUTDATED_PRICE_ALLOWANCE": &cfg.Orders.OutdatedPriceAllowance,
		"TRAILING_PERCENT":                        &cfg.Orders.TrailingPercent,
		"MAKER_FEE":                               &cfg.Fees.Maker,
		"TAKER_FEE":                               &cfg.Fees.Taker,
	}
	for key, dst := range decimals {
		v, ok := lookupEnv(key)
		if !ok {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return errors.Wrapf(err, "parse %s%s", envPrefix, key)
		}
		*dst = d
	}

	// TRADING_PORTFOLIO=USDT:1000,BTC:0.5
	if v, ok := lookupEnv("PORTFOLIO"); ok {
		portfolio, err := parsePortfolio(v)
		if err != nil {
			return err
		}
		cfg.Portfolio = portfolio
	}
	return nil
}

func parsePortfolio(s string) (map[string]decimal.Decimal, error) {
	result := make(map[string]decimal.Decimal)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		currency, amount, ok := strings.Cut(item, ":")
		if !ok || currency == "" {
			return nil, errors.Wrapf(exception.ErrInvalidArgument, "portfolio item: %s", item)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, errors.Wrapf(err, "portfolio amount of %s", currency)
		}
		result[currency] = d
	}
	return result, nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
