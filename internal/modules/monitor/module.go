package monitor

import (
	"context"
	"sync"
	"time"

	blofin "blofin_bot/internal/modules/blofin_client/service"
	"blofin_bot/internal/modules/config"
	health "blofin_bot/internal/modules/health/service"
	"blofin_bot/internal/modules/monitor/service"
	"blofin_bot/internal/notify"
	"blofin_bot/pkg/metrics"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewMonitor(
	cfg *config.Config,
	client *blofin.Client,
	n notify.Notifier,
	state *health.State,
	log *zap.Logger,
	m *metrics.Metrics,
) *service.Monitor {
	return service.New(client, n, service.Config{
		Interval:            cfg.Monitor.Interval,
		CascadeRetryMax:     cfg.Monitor.CascadeRetryMax,
		CascadeRetryInitial: cfg.Monitor.CascadeRetryInitial,
	}, log.Named("monitor"),
		service.WithMetrics(m),
		service.WithPollHook(func(t time.Time, err error) {
			state.TouchTick(t)
			state.SetExchangeOK(err == nil)
		}),
	)
}

// Run: при старте восстанавливаем слежение по бирже, затем крутим опрос до остановки.
func Run(lc fx.Lifecycle, cfg *config.Config, mon *service.Monitor, state *health.State, log *zap.Logger) {
	var (
		cancel context.CancelFunc
		wg     sync.WaitGroup
	)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.Monitor.ResumeOnStart {
				if n, err := mon.Resume(ctx); err != nil {
					log.Warn("resume tracking failed", zap.Error(err))
				} else {
					log.Info("resume tracking", zap.Int("restored", n))
				}
			}
			if cfg.Monitor.CleanupOrphans {
				if n, err := mon.CleanupOrphans(ctx); err != nil {
					log.Warn("orphan cleanup failed", zap.Int("cancelled", n), zap.Error(err))
				}
			}

			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())
			wg.Add(1)
			go func() {
				defer wg.Done()
				mon.Run(runCtx)
			}()
			state.SetReady(true)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			state.SetReady(false)
			if cancel != nil {
				cancel()
			}
			wg.Wait()
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("monitor",
		fx.Provide(
			NewMonitor,
		),
		fx.Invoke(Run),
	)
}
