package models

import (
	"fmt"
	"strings"
)

// TradeSignal: нормализованный сигнал на вход. Разбор текста сюда не входит.
type TradeSignal struct {
	SignalID    string  `json:"signalId"`
	Source      string  `json:"source"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	EntryPrice  float64 `json:"entryPrice,omitempty"`
	StopLoss    float64 `json:"stopLoss"`
	TakeProfit  float64 `json:"takeProfit"`
	TakeProfit2 float64 `json:"takeProfit2,omitempty"`
	TakeProfit3 float64 `json:"takeProfit3,omitempty"`
	Size        float64 `json:"size,omitempty"`
	Leverage    int     `json:"leverage,omitempty"`
	RiskPct     float64 `json:"riskPct,omitempty"`
	MarginMode  string  `json:"marginMode,omitempty"`

	// ThreeTier: достроить TP2/TP3 на 2R/3R от TP1, если они не заданы.
	ThreeTier bool `json:"threeTier,omitempty"`
	// Cascade: TP выставляются по одному, следующий уровень после срабатывания предыдущего.
	Cascade bool `json:"cascade,omitempty"`
}

func (s TradeSignal) Direction() string { return Direction(s.Side) }

// TakeProfits возвращает заданные уровни TP по порядку, без нулей.
func (s TradeSignal) TakeProfits() []float64 {
	out := make([]float64, 0, 3)
	for _, tp := range []float64{s.TakeProfit, s.TakeProfit2, s.TakeProfit3} {
		if tp > 0 {
			out = append(out, tp)
		}
	}
	return out
}

// Validate проверяет сигнал до любых обращений к бирже.
// Для long: SL < entry < TP, для short наоборот. Без entry проверяется только SL против TP.
func (s TradeSignal) Validate() error {
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidSignal)
	}
	// сигнал говорит о направлении позиции; buy/sell остаются словарём ордеров
	switch strings.ToLower(strings.TrimSpace(s.Side)) {
	case DirLong, DirShort:
	default:
		return fmt.Errorf("%w: side %q must be long or short", ErrInvalidSignal, s.Side)
	}
	if s.StopLoss <= 0 {
		return fmt.Errorf("%w: stop loss is required", ErrInvalidSignal)
	}
	tps := s.TakeProfits()
	if len(tps) == 0 {
		return fmt.Errorf("%w: take profit is required", ErrInvalidSignal)
	}
	if s.EntryPrice < 0 || s.Size < 0 || s.Leverage < 0 || s.RiskPct < 0 {
		return fmt.Errorf("%w: negative numeric field", ErrInvalidSignal)
	}

	long := s.Direction() == DirLong
	ref := s.EntryPrice
	if ref == 0 {
		ref = s.StopLoss
	}
	if s.EntryPrice > 0 {
		if long && s.StopLoss >= s.EntryPrice {
			return fmt.Errorf("%w: long stop %.8g must be below entry %.8g", ErrInvalidSignal, s.StopLoss, s.EntryPrice)
		}
		if !long && s.StopLoss <= s.EntryPrice {
			return fmt.Errorf("%w: short stop %.8g must be above entry %.8g", ErrInvalidSignal, s.StopLoss, s.EntryPrice)
		}
	}
	for i, tp := range tps {
		if long && tp <= ref {
			return fmt.Errorf("%w: long TP%d %.8g must be above %.8g", ErrInvalidSignal, i+1, tp, ref)
		}
		if !long && tp >= ref {
			return fmt.Errorf("%w: short TP%d %.8g must be below %.8g", ErrInvalidSignal, i+1, tp, ref)
		}
	}
	return nil
}
