package tracing

import (
	"context"
	"fmt"

	"blofin_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	jCfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
)

var (
	serviceName = "default"
)

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

type Config struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// InitTracer поднимает jaeger и ставит его глобальным трейсером.
// При Enabled=false остаётся NoopTracer, а closer ничего не делает.
func InitTracer(conf Config) (opentracing.Tracer, func(), error) {
	if !conf.Enabled {
		return opentracing.GlobalTracer(), func() {}, nil
	}

	cfg := &jCfg.Configuration{
		ServiceName: serviceName,
		Sampler: &jCfg.SamplerConfig{
			Type:  "const",
			Param: 1,
		},
		Reporter: &jCfg.ReporterConfig{
			LogSpans:           true,
			LocalAgentHostPort: fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		},
	}

	jMetricsFactory := metrics.NullFactory
	tracer, closer, err := cfg.NewTracer(
		jCfg.Metrics(jMetricsFactory),
	)
	if err != nil {
		return nil, nil, err
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, func() {
		if err := closer.Close(); err != nil {
			logger.Error("Error closing Jaeger tracer: %v", err)
		}
	}, nil
}

// StartClientSpan открывает span исходящего HTTP-запроса к бирже.
func StartClientSpan(ctx context.Context, method, path string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, method+" "+path)
	ext.SpanKindRPCClient.Set(span)
	ext.HTTPMethod.Set(span, method)
	ext.HTTPUrl.Set(span, path)
	ext.Component.Set(span, "blofin")
	return span, ctx
}

// FinishWithError помечает span ошибкой (если есть) и закрывает его.
func FinishWithError(span opentracing.Span, status int, err error) {
	if status != 0 {
		ext.HTTPStatusCode.Set(span, uint16(status))
	}
	if err != nil {
		ext.Error.Set(span, true)
		span.SetTag("error.message", err.Error())
	}
	span.Finish()
}

// StartSpan: внутренний span (исполнение сигнала, цикл монитора).
func StartSpan(ctx context.Context, name string) (opentracing.Span, context.Context) {
	return opentracing.StartSpanFromContext(ctx, name)
}
