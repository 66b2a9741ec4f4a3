package runner

import (
	"context"
	"fmt"
	"strings"

	"blofin_bot/internal/helper"
	"blofin_bot/internal/models"

	"github.com/shopspring/decimal"
)

// entryPrice: цена из сигнала, а для рыночного сигнала без цены берём тикер:
// ask для покупки, bid для продажи, last если стакана нет.
func (e *Executor) entryPrice(ctx context.Context, sig models.TradeSignal) (float64, error) {
	if sig.EntryPrice > 0 {
		return sig.EntryPrice, nil
	}
	t, err := e.ex.Ticker(ctx, sig.Symbol)
	if err != nil {
		return 0, fmt.Errorf("ticker %s: %w", sig.Symbol, err)
	}
	px := t.Last
	if side, _ := models.NormalizeSide(sig.Side); side == models.SideBuy && t.Ask > 0 {
		px = t.Ask
	} else if side == models.SideSell && t.Bid > 0 {
		px = t.Bid
	}
	if px <= 0 {
		return 0, fmt.Errorf("%w: no price for %s", models.ErrExchangeRejection, sig.Symbol)
	}
	return px, nil
}

// takeProfitLadder: уровни TP. В режиме ThreeTier при одном TP1 достраиваем
// TP2/TP3 на двойном и тройном расстоянии от входа.
func takeProfitLadder(sig models.TradeSignal, entry, tick float64) []float64 {
	tps := sig.TakeProfits()
	if !sig.ThreeTier || len(tps) != 1 || entry <= 0 {
		return tps
	}
	dist := tps[0] - entry
	for _, k := range []float64{2, 3} {
		px := helper.RoundToTick(entry+dist*k, tick)
		if px <= 0 {
			break
		}
		tps = append(tps, px)
	}
	return tps
}

func (e *Executor) leverage(sig models.TradeSignal) int {
	lev := sig.Leverage
	if lev <= 0 {
		lev = e.cfg.DefaultLeverage
	}
	if e.cfg.MaxLeverage > 0 && lev > e.cfg.MaxLeverage {
		lev = e.cfg.MaxLeverage
	}
	if lev < 1 {
		lev = 1
	}
	return lev
}

func (e *Executor) marginMode(sig models.TradeSignal) string {
	switch m := strings.ToLower(strings.TrimSpace(sig.MarginMode)); m {
	case models.MarginCross, models.MarginIsolated:
		return m
	}
	if e.cfg.MarginMode != "" {
		return e.cfg.MarginMode
	}
	return models.MarginCross
}

// cascadeFraction: доля оставшейся позиции для уровня i из n (-0.33, -0.5, -1).
func cascadeFraction(i, n int) float64 {
	left := n - i
	if left <= 1 {
		return -1
	}
	return decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(left))).Round(2).Neg().InexactFloat64()
}
