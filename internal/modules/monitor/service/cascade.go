package service

import (
	"context"
	"time"

	"blofin_bot/internal/models"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// popLevel снимает следующий уровень каскада. Когда очередь пустеет, каскад удаляется.
func (m *Monitor) popLevel(instID string) (models.CascadeConfig, models.CascadeLevel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cascades[instID]
	if !ok || len(c.Queue) == 0 {
		delete(m.cascades, instID)
		m.gaugesLocked()
		return models.CascadeConfig{}, models.CascadeLevel{}, false
	}
	lvl := c.Queue[0]
	c.Queue = c.Queue[1:]
	cfg := *c
	if len(c.Queue) == 0 {
		delete(m.cascades, instID)
		m.gaugesLocked()
	}
	return cfg, lvl, true
}

// placeNext выставляет следующий TP со стопом символа. Transient-ошибки повторяются
// с экспоненциальной паузой, остальные сразу уходят в уведомление.
func (m *Monitor) placeNext(ctx context.Context, instID string) {
	cfg, lvl, ok := m.popLevel(instID)
	if !ok {
		return
	}

	req := models.OrderRequest{
		InstID:     cfg.InstID,
		Side:       cfg.CloseSide,
		Kind:       models.KindTpSl,
		TpTrigger:  lvl.Price,
		SlTrigger:  cfg.SLPrice,
		Size:       lvl.Size,
		MarginMode: cfg.MarginMode,
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.cfg.CascadeRetryInitial
	eb.MaxInterval = m.cfg.CascadeRetryMax

	attempt := 0
	res, err := backoff.Retry(ctx, func() (models.TpSlResult, error) {
		attempt++
		r, err := m.ex.SetTpSlPair(ctx, req)
		if err != nil && !models.IsRetryable(err) {
			return r, backoff.Permanent(err)
		}
		return r, err
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxElapsedTime(m.cfg.CascadeRetryMax),
		backoff.WithNotify(func(err error, d time.Duration) {
			m.log.Warn("cascade level placement failed, retrying",
				zap.String("inst_id", instID),
				zap.String("role", string(lvl.Role)),
				zap.Duration("in", d),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		m.mu.Lock()
		m.stats.CascadeFailed++
		m.mu.Unlock()
		m.log.Error("cascade level not placed",
			zap.String("inst_id", instID),
			zap.String("role", string(lvl.Role)),
			zap.Float64("price", lvl.Price),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		ev := models.FailureEvent{
			InstID:  instID,
			Stage:   models.StageCascade,
			Class:   models.ErrorClass(err),
			Message: string(lvl.Role) + ": " + err.Error(),
			At:      m.now(),
		}
		if nerr := m.notifier.NotifyFailure(ctx, ev); nerr != nil {
			m.log.Warn("notify failure", zap.Error(nerr))
		}
		return
	}

	m.mu.Lock()
	m.stats.CascadePlaced++
	m.mu.Unlock()

	size := lvl.Contracts
	if size == 0 && lvl.Size > 0 {
		size = lvl.Size
	}

	m.Track(models.TrackedOrder{
		OrderID:      res.AlgoID,
		InstID:       cfg.InstID,
		Role:         lvl.Role,
		TriggerPrice: lvl.Price,
		Size:         size,
		Side:         cfg.CloseSide,
		EntryPrice:   cfg.EntryPrice,
	})
}
