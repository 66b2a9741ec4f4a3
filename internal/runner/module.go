package runner

import (
	blofin "blofin_bot/internal/modules/blofin_client/service"
	"blofin_bot/internal/modules/config"
	monitor "blofin_bot/internal/modules/monitor/service"
	"blofin_bot/internal/notify"
	"blofin_bot/pkg/metrics"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewRunnerExecutor(
	cfg *config.Config,
	client *blofin.Client,
	mon *monitor.Monitor,
	n notify.Notifier,
	log *zap.Logger,
	m *metrics.Metrics,
) *Executor {
	return NewExecutor(client, mon, n, Config{
		RiskPct:            cfg.Trading.RiskPct,
		DefaultLeverage:    cfg.Trading.DefaultLeverage,
		MaxLeverage:        cfg.Trading.MaxLeverage,
		MarginMode:         cfg.Trading.MarginMode,
		SetLeverage:        cfg.Trading.SetLeverage,
		CloseOnUnprotected: cfg.Trading.CloseOnUnprotected,
	}, log.Named("executor"), m)
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			NewRunnerExecutor,
		),
	)
}
