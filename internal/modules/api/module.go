package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"blofin_bot/internal/modules/api/service"
	blofin "blofin_bot/internal/modules/blofin_client/service"
	"blofin_bot/internal/modules/config"
	monitor "blofin_bot/internal/modules/monitor/service"
	"blofin_bot/internal/notify"
	"blofin_bot/internal/runner"
	"blofin_bot/pkg/metrics"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewHub(log *zap.Logger) *service.Hub {
	return service.NewHub(log.Named("ws"))
}

func NewServer(
	cfg *config.Config,
	exec *runner.Executor,
	client *blofin.Client,
	mon *monitor.Monitor,
	hub *service.Hub,
	m *metrics.Metrics,
	log *zap.Logger,
) *service.Server {
	return service.NewServer(exec, client, mon, hub, m.Registry, service.Config{
		APIKey:         cfg.HTTP.APIKey,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, log.Named("api"))
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, s *service.Server, hub *service.Hub, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("api listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("api server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			hub.Close()
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("api",
		fx.Provide(
			NewHub,
			NewServer,
			fx.Annotate(
				func(h *service.Hub) notify.Notifier { return h },
				fx.ResultTags(`group:"notifiers"`),
			),
		),
		fx.Invoke(RunHTTP),
	)
}
