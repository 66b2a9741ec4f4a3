package notify

import (
	"context"
	stderrors "errors"

	"blofin_bot/internal/models"

	"go.uber.org/zap"
)

// Notifier получает события исполнения и монитора.
// Ошибка доставки не должна влиять на торговлю: вызывающий её только логирует.
type Notifier interface {
	NotifyExecution(ctx context.Context, res *models.ExecutionResult) error
	NotifyFill(ctx context.Context, ev models.FillEvent) error
	NotifyFailure(ctx context.Context, ev models.FailureEvent) error
}

// Multi рассылает событие во все каналы и собирает ошибки.
type Multi []Notifier

func (m Multi) NotifyExecution(ctx context.Context, res *models.ExecutionResult) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyExecution(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (m Multi) NotifyFill(ctx context.Context, ev models.FillEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyFill(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (m Multi) NotifyFailure(ctx context.Context, ev models.FailureEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyFailure(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Log: всё пишет в zap. Используется всегда, остальные каналы по конфигу.
type Log struct {
	log *zap.Logger
}

func NewLog(l *zap.Logger) *Log { return &Log{log: l} }

func (l *Log) NotifyExecution(_ context.Context, res *models.ExecutionResult) error {
	l.log.Info("execution",
		zap.String("signal_id", res.SignalID),
		zap.String("inst_id", res.InstID),
		zap.String("side", res.Side),
		zap.String("status", string(res.Status)),
		zap.Float64("entry", res.EntryPrice),
		zap.String("entry_order_id", res.EntryOrderID),
		zap.Int("take_profits", len(res.TakeProfits)),
		zap.Bool("cascading", res.Cascading),
		zap.Strings("warnings", res.Warnings),
	)
	return nil
}

func (l *Log) NotifyFill(_ context.Context, ev models.FillEvent) error {
	l.log.Info("order filled",
		zap.String("inst_id", ev.InstID),
		zap.String("role", string(ev.Role)),
		zap.String("order_id", ev.OrderID),
		zap.Float64("trigger", ev.TriggerPrice),
		zap.Float64("size", ev.Size),
		zap.Float64("pnl", ev.Pnl),
		zap.Bool("profit", ev.IsProfit),
	)
	return nil
}

func (l *Log) NotifyFailure(_ context.Context, ev models.FailureEvent) error {
	lvl := l.log.Warn
	if ev.Unprotected {
		lvl = l.log.Error
	}
	lvl("execution failure",
		zap.String("signal_id", ev.SignalID),
		zap.String("inst_id", ev.InstID),
		zap.String("stage", string(ev.Stage)),
		zap.String("class", ev.Class),
		zap.Bool("unprotected", ev.Unprotected),
		zap.String("message", ev.Message),
	)
	return nil
}

// Nop: для тестов и CLI.
type Nop struct{}

func (Nop) NotifyExecution(context.Context, *models.ExecutionResult) error { return nil }
func (Nop) NotifyFill(context.Context, models.FillEvent) error             { return nil }
func (Nop) NotifyFailure(context.Context, models.FailureEvent) error       { return nil }
