package main

import (
	"context"
	"log"

	"blofin_bot/internal/modules/api"
	"blofin_bot/internal/modules/blofin_client"
	"blofin_bot/internal/modules/bootstrap"
	"blofin_bot/internal/modules/config"
	"blofin_bot/internal/modules/health"
	"blofin_bot/internal/modules/monitor"
	telegram "blofin_bot/internal/modules/telegram_bot"
	"blofin_bot/internal/notify"
	"blofin_bot/internal/runner"
	"blofin_bot/pkg/logger"
	"blofin_bot/pkg/metrics"
	"blofin_bot/pkg/tracing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger.SetServiceName(cfg.Service.Name)
	return logger.New(cfg.Logger)
}

func initTracing(lc fx.Lifecycle, cfg *config.Config) error {
	tracing.SetServiceName(cfg.Service.Name)
	_, closer, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closer()
			return nil
		},
	})
	return nil
}

func main() {
	app := fx.New(
		config.Module(),
		fx.Provide(
			newLogger,
			metrics.NewRegistered,
		),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Invoke(initTracing),

		blofin_client.Module(),
		notify.Module(),
		monitor.Module(),
		runner.Module(),
		telegram.Module(),
		api.Module(),
		health.Module(),
		bootstrap.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}
