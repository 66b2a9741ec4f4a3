package bootstrap

import (
	"context"
	"time"

	blofin "blofin_bot/internal/modules/blofin_client/service"
	bootstrap "blofin_bot/internal/modules/bootstrap/service"
	"blofin_bot/internal/modules/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewWarmuper(client *blofin.Client, log *zap.Logger) *bootstrap.Warmuper {
	return bootstrap.NewWarmuper(client, log.Named("warmup"))
}

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			NewWarmuper,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, wu *bootstrap.Warmuper, log *zap.Logger) {
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					// прогрев не блокирует старт: без кэша клиент сам сходит за спецификацией
					go func() {
						wctx, done := context.WithTimeout(ctx, time.Minute)
						defer done()
						n, err := wu.Warmup(wctx, cfg.Trading.Watchlist)
						if err != nil {
							log.Warn("warmup failed", zap.Int("ready", n), zap.Error(err))
							return
						}
						log.Info("warmup done", zap.Int("symbols", n))
					}()
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
