package blofin_client

import (
	"blofin_bot/internal/modules/blofin_client/service"
	"blofin_bot/internal/modules/config"
	"blofin_bot/pkg/metrics"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewClient(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) *service.Client {
	return service.New(service.Config{
		APIKey:     cfg.Exchange.APIKey,
		SecretKey:  cfg.Exchange.SecretKey,
		Passphrase: cfg.Exchange.Passphrase,
		BaseURL:    cfg.ExchangeBaseURL(),
		Timeout:    cfg.Exchange.Timeout,
		RatePerSec: cfg.Exchange.RatePerSec,
		Burst:      cfg.Exchange.Burst,
		MarginMode: cfg.Trading.MarginMode,
	},
		service.WithLogger(log.Named("blofin")),
		service.WithMetrics(m),
	)
}

func Module() fx.Option {
	return fx.Module("blofin_client",
		fx.Provide(
			NewClient,
		),
	)
}
