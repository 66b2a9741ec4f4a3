package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"blofin_bot/internal/models"
	monitor "blofin_bot/internal/modules/monitor/service"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Backend: запросы к бирже для команд бота.
type Backend interface {
	Positions(ctx context.Context, instID string) ([]models.Position, error)
	Balance(ctx context.Context) (models.AccountSnapshot, error)
	PendingTpSl(ctx context.Context, instID string) ([]models.PendingTpSl, error)
	ClosePosition(ctx context.Context, instID, marginMode string) error
	MarginMode() string
}

// StatsSource: монитор; подключается после сборки графа, чтобы не было цикла
// монитор -> уведомления -> телеграм -> монитор.
type StatsSource interface {
	Stats() monitor.Stats
	Tracked() []models.TrackedOrder
}

// botAPI: часть *tgbot.BotAPI, которой пользуемся.
type botAPI interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
	Request(c tgbot.Chattable) (*tgbot.APIResponse, error)
	GetUpdatesChan(config tgbot.UpdateConfig) tgbot.UpdatesChannel
	StopReceivingUpdates()
}

type pending struct {
	ch     chan bool
	msgID  int
	prompt string
}

// Telegram: уведомления в один чат и команды оператора из него же.
// Без токена бот выключен: методы ничего не делают.
type Telegram struct {
	bot     botAPI
	chatID  int64
	ex      Backend
	stats   StatsSource
	log     *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	pendings map[string]*pending
}

func NewTelegram(token string, chatID int64, ex Backend, log *zap.Logger) (*Telegram, error) {
	t := &Telegram{
		chatID:   chatID,
		ex:       ex,
		log:      log,
		timeout:  time.Minute,
		pendings: make(map[string]*pending),
	}
	if token == "" {
		log.Info("telegram disabled: no token")
		return t, nil
	}
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	t.bot = b
	return t, nil
}

func (t *Telegram) SetStats(s StatsSource) {
	t.mu.Lock()
	t.stats = s
	t.mu.Unlock()
}

func (t *Telegram) Enabled() bool { return t.bot != nil && t.chatID != 0 }

func (t *Telegram) Send(ctx context.Context, chatID int64, msg string) (tgbot.Message, error) {
	if t.bot == nil {
		return tgbot.Message{}, nil
	}
	return t.bot.Send(tgbot.NewMessage(chatID, msg))
}

func (t *Telegram) SendF(ctx context.Context, chatID int64, format string, args ...any) (tgbot.Message, error) {
	return t.Send(ctx, chatID, fmt.Sprintf(format, args...))
}

func (t *Telegram) editReplyMarkupRemove(chatID int64, msgID int) error {
	rm := tgbot.InlineKeyboardMarkup{InlineKeyboard: [][]tgbot.InlineKeyboardButton{}}
	edit := tgbot.NewEditMessageReplyMarkup(chatID, msgID, rm)
	_, err := t.bot.Request(edit)
	return err
}

func (t *Telegram) editText(chatID int64, msgID int, text string) error {
	edit := tgbot.NewEditMessageText(chatID, msgID, text)
	_, err := t.bot.Request(edit)
	return err
}

// Confirm: сообщение с кнопками и ожиданием callback.
func (t *Telegram) Confirm(ctx context.Context, chatID int64, prompt, yes string, timeout time.Duration) bool {
	token := strconv.FormatInt(time.Now().UnixNano(), 36)
	p := &pending{
		ch:     make(chan bool, 1),
		prompt: prompt,
	}

	t.mu.Lock()
	t.pendings[token] = p
	t.mu.Unlock()

	btnYes := tgbot.NewInlineKeyboardButtonData(yes, "CONF::"+token)
	btnNo := tgbot.NewInlineKeyboardButtonData("❌ Отмена", "REJ::"+token)
	kb := tgbot.NewInlineKeyboardMarkup(tgbot.NewInlineKeyboardRow(btnYes, btnNo))

	msg := tgbot.NewMessage(chatID, prompt)
	msg.ReplyMarkup = kb

	sent, _ := t.bot.Send(msg)
	t.mu.Lock()
	p.msgID = sent.MessageID
	t.mu.Unlock()

	tmr := time.NewTimer(timeout)
	defer tmr.Stop()

	select {
	case ok := <-p.ch:
		return ok
	case <-tmr.C:
		_ = t.editReplyMarkupRemove(chatID, p.msgID)
		_ = t.editText(chatID, p.msgID, fmt.Sprintf("%s\n\n⏳ Таймаут", prompt))
		t.dropPending(token)
		return false
	case <-ctx.Done():
		_ = t.editReplyMarkupRemove(chatID, p.msgID)
		_ = t.editText(chatID, p.msgID, fmt.Sprintf("%s\n\n⛔️ Отменено", prompt))
		t.dropPending(token)
		return false
	}
}

func (t *Telegram) dropPending(token string) {
	t.mu.Lock()
	delete(t.pendings, token)
	t.mu.Unlock()
}

// Start читает апдейты до остановки.
func (t *Telegram) Start(ctx context.Context) {
	if t.bot == nil {
		return
	}
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) Stop() {
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
}
