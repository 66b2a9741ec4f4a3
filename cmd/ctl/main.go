// ctl: ручные операции со счётом BloFin (позиции, заявки, отмена и перестановка защиты).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	blofin "blofin_bot/internal/modules/blofin_client/service"
	"blofin_bot/pkg/logger"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const usage = `usage: ctl [flags] <command> [args]

commands:
  status                      баланс, позиции и заявки разом
  positions [INST]            открытые позиции
  pending [INST]              активные TP/SL
  cancel INST ALGO_ID         отменить одну TP/SL заявку
  cancel-all INST             отменить все TP/SL по символу
  protect INST --sl PRICE [--tp P1,P2,P3]
                              снять старую защиту и поставить новую на всю позицию
  close INST                  закрыть позицию по рынку

flags:
`

func main() {
	fs := pflag.NewFlagSet("ctl", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	fs.String("config", "configs/values_local.yaml", "yaml config file")
	fs.Bool("demo", false, "use demo trading endpoint")
	fs.Duration("timeout", 30*time.Second, "overall command timeout")
	fs.Float64("sl", 0, "stop loss trigger for protect")
	fs.Float64Slice("tp", nil, "take profit triggers for protect")
	fs.String("margin", "", "margin mode (cross|isolated), config value by default")
	fs.Bool("json", false, "print raw JSON")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(2)
	}

	v, err := loadViper(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: v.GetString("logger.level"), Encoding: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, v.GetDuration("timeout"))
	defer cancel()

	tps, err := fs.GetFloat64Slice("tp")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	c := &cli{
		client: newClient(v, log),
		v:      v,
		out:    os.Stdout,
		json:   v.GetBool("json"),
		tps:    tps,
	}
	if err := c.run(ctx, strings.ToLower(args[0]), args[1:]); err != nil {
		log.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

// loadViper: флаги важнее окружения, окружение важнее файла.
func loadViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	v.SetDefault("logger.level", "warn")
	v.SetDefault("exchange.timeout", 10*time.Second)
	v.SetDefault("exchange.rate_per_sec", 5)
	v.SetDefault("exchange.burst", 5)
	v.SetDefault("trading.margin_mode", "cross")

	v.SetConfigFile(v.GetString("config"))
	// без файла работаем на флагах и окружении
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	for key, env := range map[string]string{
		"exchange.api_key":    "BLOFIN_API_KEY",
		"exchange.secret_key": "BLOFIN_SECRET_KEY",
		"exchange.passphrase": "BLOFIN_PASSPHRASE",
		"exchange.base_url":   "BLOFIN_BASE_URL",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func newClient(v *viper.Viper, log *zap.Logger) *blofin.Client {
	base := v.GetString("exchange.base_url")
	if base == "" {
		base = "https://openapi.blofin.com"
		if v.GetBool("demo") || v.GetBool("exchange.demo") {
			base = "https://demo-trading-openapi.blofin.com"
		}
	}
	margin := v.GetString("margin")
	if margin == "" {
		margin = v.GetString("trading.margin_mode")
	}
	return blofin.New(blofin.Config{
		APIKey:     v.GetString("exchange.api_key"),
		SecretKey:  v.GetString("exchange.secret_key"),
		Passphrase: v.GetString("exchange.passphrase"),
		BaseURL:    base,
		Timeout:    v.GetDuration("exchange.timeout"),
		RatePerSec: v.GetFloat64("exchange.rate_per_sec"),
		Burst:      v.GetInt("exchange.burst"),
		MarginMode: margin,
	}, blofin.WithLogger(log.Named("blofin")))
}
