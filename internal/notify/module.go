package notify

import (
	"context"
	"net/http"
	"time"

	"blofin_bot/internal/modules/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg *config.Config
	Log *zap.Logger
	// Доп. получатели из других модулей (телеграм, websocket).
	Extra []Notifier `group:"notifiers"`
}

// NewNotifier собирает все включённые каналы в один. Лог есть всегда.
func NewNotifier(lc fx.Lifecycle, p Params) Notifier {
	out := Multi{NewLog(p.Log.Named("events"))}

	if hook := p.Cfg.Notify.Discord.Webhook; hook != "" {
		out = append(out, NewDiscord(hook, &http.Client{Timeout: 10 * time.Second}))
	}
	if brokers := p.Cfg.Notify.Kafka.Brokers; len(brokers) > 0 {
		k := NewKafka(NewKafkaWriter(brokers, p.Cfg.Notify.Kafka.Topic))
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error { return k.Close() },
		})
		out = append(out, k)
	}
	for _, n := range p.Extra {
		if n != nil {
			out = append(out, n)
		}
	}
	p.Log.Info("notifiers ready", zap.Int("count", len(out)))
	return out
}

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(NewNotifier),
	)
}
