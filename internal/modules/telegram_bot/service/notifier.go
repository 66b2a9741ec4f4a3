package service

import (
	"context"

	"blofin_bot/internal/models"
	"blofin_bot/internal/notify"
)

var _ notify.Notifier = (*Telegram)(nil)

func (t *Telegram) NotifyExecution(ctx context.Context, res *models.ExecutionResult) error {
	return t.notify(ctx, notify.FormatExecution(res))
}

func (t *Telegram) NotifyFill(ctx context.Context, ev models.FillEvent) error {
	return t.notify(ctx, notify.FormatFill(ev))
}

func (t *Telegram) NotifyFailure(ctx context.Context, ev models.FailureEvent) error {
	return t.notify(ctx, notify.FormatFailure(ev))
}

func (t *Telegram) notify(ctx context.Context, text string) error {
	if !t.Enabled() {
		return nil
	}
	_, err := t.Send(ctx, t.chatID, text)
	return err
}
