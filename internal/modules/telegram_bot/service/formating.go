package service

import (
	"fmt"
	"strings"
	"time"

	"blofin_bot/internal/models"
	monitor "blofin_bot/internal/modules/monitor/service"
)

func formatPositions(list []models.Position) string {
	if len(list) == 0 {
		return "Открытых позиций нет"
	}
	var b strings.Builder
	b.WriteString("📊 Позиции\n")
	for _, p := range list {
		fmt.Fprintf(&b, "\n%s %s x%g\n  Размер: %g @ %s\n  Mark: %s | uPnL: %s (%s%%)\n",
			p.InstID, positionLabel(p), p.Leverage,
			p.Size, f6(p.AvgPrice), f6(p.MarkPrice),
			signed(p.UnrealizedPnl), f2(p.UnrealizedPnlRatio*100),
		)
	}
	return b.String()
}

func positionLabel(p models.Position) string {
	if p.PositionSide == "short" || p.Size < 0 {
		return "SHORT"
	}
	return "LONG"
}

func formatBalance(acc models.AccountSnapshot) string {
	return fmt.Sprintf("💰 Баланс\n\nEquity: %s %s\nДоступно: %s %s",
		f2(acc.Equity), acc.Currency, f2(acc.Available), acc.Currency)
}

func formatPending(list []models.PendingTpSl) string {
	if len(list) == 0 {
		return "Активных TP/SL нет"
	}
	var b strings.Builder
	b.WriteString("📋 TP/SL\n")
	for _, o := range list {
		fmt.Fprintf(&b, "\n%s %s", o.InstID, o.AlgoID)
		if o.TpTrigger > 0 {
			fmt.Fprintf(&b, " TP=%s", f6(o.TpTrigger))
		}
		if o.SlTrigger > 0 {
			fmt.Fprintf(&b, " SL=%s", f6(o.SlTrigger))
		}
		fmt.Fprintf(&b, " size=%g", o.Size)
	}
	return b.String()
}

func formatStats(s monitor.Stats, tracked []models.TrackedOrder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛰 Монитор\n\nОрдеров: %d | Каскадов: %d\nОпросов: %d (пропущено %d, ошибок %d)\nСработало: %d | Каскад: %d ок / %d ошибок",
		s.Tracked, len(s.Cascading), s.Polls, s.PollSkipped, s.PollErrors, s.Fills, s.CascadePlaced, s.CascadeFailed)
	if !s.LastPoll.IsZero() {
		fmt.Fprintf(&b, "\nПоследний опрос: %s", s.LastPoll.UTC().Format(time.RFC3339))
	}
	for _, o := range tracked {
		fmt.Fprintf(&b, "\n  %s %s @ %s", o.InstID, o.Role, f6(o.TriggerPrice))
	}
	return b.String()
}

func f2(v float64) string { return fmt.Sprintf("%.2f", v) }

func f6(v float64) string { return fmt.Sprintf("%.6g", v) }

func signed(v float64) string {
	if v > 0 {
		return "+" + fmt.Sprintf("%.4f", v)
	}
	return fmt.Sprintf("%.4f", v)
}
