package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"blofin_bot/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source: откуда берём спецификации и цены при прогреве.
type Source interface {
	LoadInstruments(ctx context.Context) error
	GetInstrument(ctx context.Context, instID string) (models.InstrumentSpec, error)
	Ticker(ctx context.Context, instID string) (models.Ticker, error)
}

// Warmuper заранее наполняет кэш инструментов, чтобы первый сигнал не ждал /instruments.
type Warmuper struct {
	src Source
	log *zap.Logger

	// ограничитель параллелизма, чтобы не словить rate limit
	limit int
}

func NewWarmuper(src Source, log *zap.Logger) *Warmuper {
	return &Warmuper{src: src, log: log, limit: 8}
}

// Warmup: общий список инструментов, затем проверка каждого символа из watchlist.
// Неизвестный символ считается ошибкой, лучше узнать о ней при старте, а не на сигнале.
func (w *Warmuper) Warmup(ctx context.Context, symbols []string) (int, error) {
	if err := w.src.LoadInstruments(ctx); err != nil {
		return 0, fmt.Errorf("warmup instruments: %w", err)
	}
	if len(symbols) == 0 {
		return 0, nil
	}

	var ok atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.limit)
	for _, sym := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		g.Go(func() error {
			spec, err := w.src.GetInstrument(gctx, sym)
			if err != nil {
				return fmt.Errorf("warmup %s: %w", sym, err)
			}
			t, err := w.src.Ticker(gctx, sym)
			if err != nil {
				return fmt.Errorf("warmup ticker %s: %w", sym, err)
			}
			w.log.Debug("instrument ready",
				zap.String("inst_id", spec.InstID),
				zap.Float64("lot", spec.LotSize),
				zap.Float64("tick", spec.TickSize),
				zap.Float64("last", t.Last),
			)
			ok.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(ok.Load()), err
}
