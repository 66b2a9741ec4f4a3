package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"blofin_bot/pkg/logger"
	"blofin_bot/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
)

// Config ...
type Config struct {
	Service struct {
		Name string `yaml:"name"`
	} `yaml:"service"`

	Logger  logger.Config  `yaml:"logger"`
	Tracing tracing.Config `yaml:"tracing"`

	Exchange struct {
		APIKey     string        `yaml:"api_key"`
		SecretKey  string        `yaml:"secret_key"`
		Passphrase string        `yaml:"passphrase"`
		BaseURL    string        `yaml:"base_url"`
		Demo       bool          `yaml:"demo"`
		Timeout    time.Duration `yaml:"timeout"`
		RatePerSec float64       `yaml:"rate_per_sec"`
		Burst      int           `yaml:"burst"`
	} `yaml:"exchange"`

	Trading struct {
		// Сколько от equity теряем по стопу: 1.0 => 1%
		RiskPct         float64 `yaml:"risk_pct"`
		DefaultLeverage int     `yaml:"default_leverage"`
		MaxLeverage     int     `yaml:"max_leverage"`
		MarginMode      string  `yaml:"margin_mode"`
		// SetLeverage: выставлять плечо перед входом (ошибка не фатальна)
		SetLeverage bool `yaml:"set_leverage"`
		// CloseOnUnprotected: закрыть позицию, если стоп выставить не удалось
		CloseOnUnprotected bool `yaml:"close_on_unprotected"`
		// Watchlist: символы, спецификации которых прогреваются при старте
		Watchlist []string `yaml:"watchlist"`
	} `yaml:"trading"`

	Monitor struct {
		Interval            time.Duration `yaml:"interval"`
		CascadeRetryMax     time.Duration `yaml:"cascade_retry_max"`
		CascadeRetryInitial time.Duration `yaml:"cascade_retry_initial"`
		ResumeOnStart       bool          `yaml:"resume_on_start"`
		CleanupOrphans      bool          `yaml:"cleanup_orphans"`
	} `yaml:"monitor"`

	Notify struct {
		Telegram struct {
			Token  string `yaml:"token"`
			ChatID int64  `yaml:"chat_id"`
		} `yaml:"telegram"`
		Discord struct {
			Webhook string `yaml:"webhook"`
		} `yaml:"discord"`
		Kafka struct {
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic"`
		} `yaml:"kafka"`
	} `yaml:"notify"`

	HTTP struct {
		Addr           string   `yaml:"addr"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`

	Health struct {
		Addr string `yaml:"addr"`
	} `yaml:"health"`
}

// secrets: только из окружения (.env или переменные процесса).
type secrets struct {
	APIKey          string        `envconfig:"BLOFIN_API_KEY"`
	SecretKey       string        `envconfig:"BLOFIN_SECRET_KEY"`
	Passphrase      string        `envconfig:"BLOFIN_PASSPHRASE"`
	BaseURL         string        `envconfig:"BLOFIN_BASE_URL"`
	Demo            bool          `envconfig:"BLOFIN_DEMO"`
	TelegramToken   string        `envconfig:"TELEGRAM_TOKEN"`
	TelegramChatID  int64         `envconfig:"TELEGRAM_CHAT_ID"`
	DiscordWebhook  string        `envconfig:"DISCORD_WEBHOOK"`
	HTTPAPIKey      string        `envconfig:"API_KEY"`
	RiskPct         float64       `envconfig:"RISK_PCT"`
	DefaultLeverage int           `envconfig:"LEVERAGE"`
	MonitorInterval time.Duration `envconfig:"MONITOR_INTERVAL"`
}

func defaults() Config {
	var c Config
	c.Service.Name = "blofin_bot"
	c.Logger = logger.Config{Level: "info", Encoding: "json"}
	c.Tracing = tracing.Config{Host: "localhost", Port: 6831}

	c.Exchange.Timeout = 10 * time.Second
	c.Exchange.RatePerSec = 10
	c.Exchange.Burst = 10

	c.Trading.RiskPct = 1.0
	c.Trading.DefaultLeverage = 10
	c.Trading.MaxLeverage = 50
	c.Trading.MarginMode = "cross"
	c.Trading.SetLeverage = true

	c.Monitor.Interval = 30 * time.Second
	c.Monitor.CascadeRetryMax = 30 * time.Second
	c.Monitor.CascadeRetryInitial = 500 * time.Millisecond
	c.Monitor.ResumeOnStart = true

	c.Notify.Kafka.Topic = "blofin.fills"

	c.HTTP.Addr = ":8000"
	c.Health.Addr = ":8080"
	return c
}

func NewConfig() (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	config := defaults()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	dir := os.Getenv(configDirENV)
	if dir == "" {
		dir = "configs"
	}
	if err := config.loadFile(filepath.Join(dir, configFileName)); err != nil {
		return nil, err
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open config file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	if err := yaml.NewDecoder(file).Decode(c); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

// applyEnv накрывает файл значениями из окружения; незаданные переменные не трогают поля.
func (c *Config) applyEnv() error {
	s := secrets{
		APIKey:          c.Exchange.APIKey,
		SecretKey:       c.Exchange.SecretKey,
		Passphrase:      c.Exchange.Passphrase,
		BaseURL:         c.Exchange.BaseURL,
		Demo:            c.Exchange.Demo,
		TelegramToken:   c.Notify.Telegram.Token,
		TelegramChatID:  c.Notify.Telegram.ChatID,
		DiscordWebhook:  c.Notify.Discord.Webhook,
		HTTPAPIKey:      c.HTTP.APIKey,
		RiskPct:         c.Trading.RiskPct,
		DefaultLeverage: c.Trading.DefaultLeverage,
		MonitorInterval: c.Monitor.Interval,
	}
	if err := envconfig.Process("", &s); err != nil {
		return fmt.Errorf("env config: %w", err)
	}

	c.Exchange.APIKey = s.APIKey
	c.Exchange.SecretKey = s.SecretKey
	c.Exchange.Passphrase = s.Passphrase
	c.Exchange.BaseURL = s.BaseURL
	c.Exchange.Demo = s.Demo
	c.Notify.Telegram.Token = s.TelegramToken
	c.Notify.Telegram.ChatID = s.TelegramChatID
	c.Notify.Discord.Webhook = s.DiscordWebhook
	c.HTTP.APIKey = s.HTTPAPIKey
	c.Trading.RiskPct = s.RiskPct
	c.Trading.DefaultLeverage = s.DefaultLeverage
	c.Monitor.Interval = s.MonitorInterval
	return nil
}

func (c *Config) Validate() error {
	if c.Trading.RiskPct <= 0 || c.Trading.RiskPct > 100 {
		return fmt.Errorf("trading.risk_pct must be in (0, 100], got %v", c.Trading.RiskPct)
	}
	if c.Trading.DefaultLeverage < 1 || c.Trading.DefaultLeverage > 125 {
		return fmt.Errorf("trading.default_leverage must be in [1, 125], got %d", c.Trading.DefaultLeverage)
	}
	if c.Trading.MaxLeverage < c.Trading.DefaultLeverage {
		c.Trading.MaxLeverage = c.Trading.DefaultLeverage
	}
	switch c.Trading.MarginMode {
	case "cross", "isolated":
	default:
		return fmt.Errorf("trading.margin_mode must be cross or isolated, got %q", c.Trading.MarginMode)
	}
	if c.Monitor.Interval < time.Second {
		return fmt.Errorf("monitor.interval must be >= 1s, got %s", c.Monitor.Interval)
	}
	return nil
}

// ExchangeBaseURL: явный base_url важнее флага demo.
func (c *Config) ExchangeBaseURL() string {
	if c.Exchange.BaseURL != "" {
		return c.Exchange.BaseURL
	}
	if c.Exchange.Demo {
		return "https://demo-trading-openapi.blofin.com"
	}
	return "https://openapi.blofin.com"
}
