package telegram

import (
	"context"

	blofin "blofin_bot/internal/modules/blofin_client/service"
	"blofin_bot/internal/modules/config"
	monitor "blofin_bot/internal/modules/monitor/service"
	"blofin_bot/internal/modules/telegram_bot/service"
	"blofin_bot/internal/notify"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewTelegram(cfg *config.Config, client *blofin.Client, log *zap.Logger) (*service.Telegram, error) {
	return service.NewTelegram(
		cfg.Notify.Telegram.Token,
		cfg.Notify.Telegram.ChatID,
		client,
		log.Named("telegram"),
	)
}

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			NewTelegram,
			// телеграм: один из получателей уведомлений
			fx.Annotate(
				func(t *service.Telegram) notify.Notifier { return t },
				fx.ResultTags(`group:"notifiers"`),
			),
		),
		fx.Invoke(func(lc fx.Lifecycle, t *service.Telegram, mon *monitor.Monitor) {
			t.SetStats(mon)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						t.Start(ctx)
					}()
					return nil
				},
				OnStop: func(context.Context) error {
					t.Stop()
					cancel()
					<-done
					return nil
				},
			})
		}),
	)
}
