package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"marketbot/internal/models"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	secretsKeyENV     = "SECRETS_KEY"
)

// Config ...
type Config struct {
	DB string `yaml:"db_dsn"`

	Telegram struct {
		Token string `yaml:"token"`
	} `yaml:"telegram"`

	Exchange struct {
		RestURL   string `yaml:"rest_url"`   // e.g. https://testnet.binance.vision
		StreamURL string `yaml:"stream_url"` // e.g. wss://stream.binance.com:9443
	} `yaml:"exchange"`

	// 32-byte hex key for AES-GCM credential decryption.
	SecretsKey string `yaml:"secrets_key"`

	// Assets the reconciler values and symbols it tracks trades for.
	AllowedAssets  []string `yaml:"allowed_assets"`
	TrackedSymbols []string `yaml:"tracked_symbols"`

	// Market data. Durations come from env (CANDLE_PERIOD etc.), not the
	// yaml file.
	CandlePeriod   time.Duration `yaml:"-"`
	WindowCapacity int           `yaml:"window_capacity"`

	// Scheduler cadence
	ReconcileInterval time.Duration `yaml:"-"`
	DecisionInterval  time.Duration `yaml:"-"`

	// Trade pagination
	TradePageSize int `yaml:"trade_page_size"`
	TradePageCap  int `yaml:"trade_page_cap"`

	// Jaeger agent
	Tracing struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"tracing"`

	// Per-risk-tier strategy presets ("bots").
	Bots []models.StrategyConfig `yaml:"bots"`
}

func NewConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	config := Config{
		AllowedAssets:  []string{"BTC", "ETH", "XRP", "SOL", "BNB"},
		TrackedSymbols: []string{"BTCUSDT", "ETHUSDT", "XRPUSDT", "SOLUSDT", "BNBUSDT"},

		CandlePeriod:   durationFromEnv("CANDLE_PERIOD", "1s"),
		WindowCapacity: intFromEnv("WINDOW_CAPACITY", 100),

		ReconcileInterval: durationFromEnv("RECONCILE_INTERVAL", "60s"),
		DecisionInterval:  durationFromEnv("DECISION_INTERVAL", "15m"),

		TradePageSize: intFromEnv("TRADE_PAGE_SIZE", 500),
		TradePageCap:  intFromEnv("TRADE_PAGE_CAP", 50),
	}
	config.Exchange.RestURL = v.GetString("EXCHANGE_REST_URL")
	config.Exchange.StreamURL = v.GetString("EXCHANGE_STREAM_URL")

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}
	if key := os.Getenv(secretsKeyENV); key != "" {
		config.SecretsKey = key
	}
	if config.Exchange.RestURL == "" {
		config.Exchange.RestURL = "https://testnet.binance.vision"
	}
	if config.Exchange.StreamURL == "" {
		config.Exchange.StreamURL = "wss://stream.binance.com:9443"
	}

	if len(config.Bots) == 0 {
		config.Bots = DefaultBots(config.TrackedSymbols)
	}
	for i := range config.Bots {
		if config.Bots[i].ID == 0 {
			config.Bots[i].ID = int64(i + 1)
		}
		applyBotDefaults(&config.Bots[i])
		if err := config.Bots[i].Validate(config.WindowCapacity); err != nil {
			return nil, err
		}
	}

	return &config, nil
}

// DefaultBots mirrors the three stock risk tiers created at first boot.
func DefaultBots(symbols []string) []models.StrategyConfig {
	tiers := []struct {
		risk models.RiskLevel
		maS  int
		maM  int
	}{
		{models.RiskLow, 7, 25},
		{models.RiskMedium, 5, 15},
		{models.RiskHigh, 3, 9},
	}

	bots := make([]models.StrategyConfig, 0, len(symbols)*len(tiers))
	var id int64
	for _, sym := range symbols {
		for _, t := range tiers {
			id++
			bots = append(bots, models.StrategyConfig{
				ID:            id,
				Symbol:        sym,
				RiskLevel:     t.risk,
				MaShortPeriod: t.maS,
				MaMidPeriod:   t.maM,
			})
		}
	}
	for i := range bots {
		applyBotDefaults(&bots[i])
	}
	return bots
}

func applyBotDefaults(b *models.StrategyConfig) {
	if b.MaShortPeriod == 0 {
		b.MaShortPeriod = 7
	}
	if b.MaMidPeriod == 0 {
		b.MaMidPeriod = 25
	}
	if b.MaLongPeriod == 0 {
		b.MaLongPeriod = 99
	}
	if b.RSIPeriod == 0 {
		b.RSIPeriod = 14
	}
	if b.MacdFast == 0 {
		b.MacdFast = 12
	}
	if b.MacdSlow == 0 {
		b.MacdSlow = 26
	}
	if b.MacdSignalPeriod == 0 {
		b.MacdSignalPeriod = 9
	}
	if b.TimeInterval == "" {
		b.TimeInterval = "15m"
	}
	if b.RSIBuyBelow == 0 {
		b.RSIBuyBelow = 50
	}
	if b.RSISellAbove == 0 {
		b.RSISellAbove = 30
	}
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := def
	if v := os.Getenv(key); v != "" {
		val = v
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
