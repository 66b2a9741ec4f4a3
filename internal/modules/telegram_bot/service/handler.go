package service

import (
	"context"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const helpText = "Команды:\n" +
	"/positions — открытые позиции\n" +
	"/balance — баланс\n" +
	"/pending [SYM] — активные TP/SL\n" +
	"/stats — монитор\n" +
	"/close SYM — закрыть позицию по рынку"

func (t *Telegram) handleUpdate(ctx context.Context, update tgbot.Update) {
	if msg := update.Message; msg != nil {
		chatID := msg.Chat.ID
		// чужие чаты молча игнорируем
		if chatID != t.chatID {
			t.log.Warn("telegram: foreign chat", zap.Int64("chat_id", chatID))
			return
		}
		if !msg.IsCommand() {
			return
		}
		var err error
		switch msg.Command() {
		case "start", "help":
			_, err = t.Send(ctx, chatID, helpText)
		case "positions":
			err = t.handlePositions(ctx, chatID)
		case "balance":
			err = t.handleBalance(ctx, chatID)
		case "pending":
			err = t.handlePending(ctx, chatID, msg.CommandArguments())
		case "stats":
			err = t.handleStats(ctx, chatID)
		case "close":
			// ждёт нажатия кнопки, поэтому не держим цикл апдейтов
			go t.handleClose(ctx, chatID, msg.CommandArguments())
		default:
			_, err = t.Send(ctx, chatID, "Неизвестная команда\n\n"+helpText)
		}
		if err != nil {
			t.log.Warn("telegram command failed", zap.String("command", msg.Command()), zap.Error(err))
		}
		return
	}

	if cb := update.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.Message.Chat == nil || cb.Message.Chat.ID != t.chatID {
			return
		}
		t.handleCallback(cb.Message.Chat.ID, cb)
	}
}

func (t *Telegram) handleCallback(chatID int64, cb *tgbot.CallbackQuery) {
	_, _ = t.bot.Request(tgbot.NewCallback(cb.ID, ""))
	if strings.Contains(cb.Data, "::") {
		t.handleConfirmCallback(chatID, cb.Data)
	}
}

// handleConfirmCallback обрабатывает callback-и вида CONF::token / REJ::token.
func (t *Telegram) handleConfirmCallback(chatID int64, data string) {
	verb, token := parseConfirmData(data)
	if verb == "" || token == "" {
		return
	}

	t.mu.Lock()
	p, ok := t.pendings[token]
	delete(t.pendings, token)
	var msgID int
	if ok {
		msgID = p.msgID
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	accepted := verb == "CONF"
	p.ch <- accepted

	status := "Отклонено"
	emoji := "❌"
	if accepted {
		status = "Подтверждено"
		emoji = "✅"
	}

	_ = t.editReplyMarkupRemove(chatID, msgID)
	_ = t.editText(chatID, msgID, fmt.Sprintf("%s\n\n%s %s", p.prompt, emoji, status))
}

func parseConfirmData(data string) (verb, token string) {
	verb, token, ok := strings.Cut(data, "::")
	if !ok {
		return "", ""
	}
	return verb, token
}

func (t *Telegram) handlePositions(ctx context.Context, chatID int64) error {
	list, err := t.ex.Positions(ctx, "")
	if err != nil {
		_, _ = t.SendF(ctx, chatID, "Ошибка биржи: %v", err)
		return err
	}
	_, err = t.Send(ctx, chatID, formatPositions(list))
	return err
}

func (t *Telegram) handleBalance(ctx context.Context, chatID int64) error {
	acc, err := t.ex.Balance(ctx)
	if err != nil {
		_, _ = t.SendF(ctx, chatID, "Ошибка биржи: %v", err)
		return err
	}
	_, err = t.Send(ctx, chatID, formatBalance(acc))
	return err
}

func (t *Telegram) handlePending(ctx context.Context, chatID int64, arg string) error {
	inst := strings.ToUpper(strings.TrimSpace(arg))
	list, err := t.ex.PendingTpSl(ctx, inst)
	if err != nil {
		_, _ = t.SendF(ctx, chatID, "Ошибка биржи: %v", err)
		return err
	}
	_, err = t.Send(ctx, chatID, formatPending(list))
	return err
}

func (t *Telegram) handleStats(ctx context.Context, chatID int64) error {
	t.mu.Lock()
	src := t.stats
	t.mu.Unlock()
	if src == nil {
		_, err := t.Send(ctx, chatID, "Монитор не подключён")
		return err
	}
	_, err := t.Send(ctx, chatID, formatStats(src.Stats(), src.Tracked()))
	return err
}

func (t *Telegram) handleClose(ctx context.Context, chatID int64, arg string) {
	inst := strings.ToUpper(strings.TrimSpace(arg))
	if inst == "" {
		_, _ = t.Send(ctx, chatID, "Использование: /close SYM, например /close BTC-USDT")
		return
	}
	prompt := fmt.Sprintf("Закрыть позицию %s по рынку?", inst)
	if !t.Confirm(ctx, chatID, prompt, "✅ Закрыть", t.timeout) {
		return
	}
	if err := t.ex.ClosePosition(ctx, inst, t.ex.MarginMode()); err != nil {
		t.log.Error("telegram close position", zap.String("inst_id", inst), zap.Error(err))
		_, _ = t.SendF(ctx, chatID, "❌ %s не закрыта: %v", inst, err)
		return
	}
	_, _ = t.SendF(ctx, chatID, "✅ %s закрыта", inst)
}
