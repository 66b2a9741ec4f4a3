package notify

import (
	"fmt"
	"strings"

	"blofin_bot/internal/models"
)

func fillTitle(ev models.FillEvent) string {
	if ev.Role.IsTakeProfit() {
		return fmt.Sprintf("🎯 %s %s HIT", ev.InstID, ev.Role)
	}
	return fmt.Sprintf("🛑 %s STOP LOSS HIT", ev.InstID)
}

// FormatFill: текст о сработавшем TP/SL.
func FormatFill(ev models.FillEvent) string {
	sign := "+"
	if ev.Pnl < 0 {
		sign = ""
	}
	return fmt.Sprintf("%s\nЦена: %.6g | Размер: %.6g | PnL: %s%.4f USDT",
		fillTitle(ev), ev.TriggerPrice, ev.Size, sign, ev.Pnl)
}

func FormatFailure(ev models.FailureEvent) string {
	head := "⚠️"
	if ev.Unprotected {
		head = "🚨 ПОЗИЦИЯ БЕЗ СТОПА"
	}
	return fmt.Sprintf("%s [%s] %s (%s): %s", head, ev.InstID, ev.Stage, ev.Class, ev.Message)
}

func FormatExecution(res *models.ExecutionResult) string {
	var b strings.Builder
	switch res.Status {
	case models.StatusExecuted:
		b.WriteString("✅ ")
	case models.StatusPartial:
		b.WriteString("⚠️ ")
	case models.StatusUnprotected:
		b.WriteString("🚨 ")
	default:
		b.WriteString("❌ ")
	}
	fmt.Fprintf(&b, "[%s] %s %s @ %.6g", res.InstID, strings.ToUpper(res.Side), res.Status, res.EntryPrice)
	if res.Sizing != nil {
		fmt.Fprintf(&b, " | size=%.6g risk=%.2f lev=%.0fx", res.Sizing.Contracts, res.Sizing.RiskAmount, res.Sizing.Leverage)
	}
	if res.StopLoss != nil {
		fmt.Fprintf(&b, " | SL=%.6g", res.StopLoss.SlTrigger)
	}
	for _, tp := range res.TakeProfits {
		fmt.Fprintf(&b, " | TP%d=%.6g", tp.Level, tp.TpTrigger)
	}
	if res.Cascading {
		b.WriteString(" (cascade)")
	}
	if res.Error != "" {
		fmt.Fprintf(&b, "\nОшибка: %s", res.Error)
	}
	return b.String()
}
