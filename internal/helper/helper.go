package helper

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceDecimals: триггер-цены уходят на биржу с точностью до 6 знаков,
// иначе BloFin отклоняет значения вроде 96424.99999999999.
const PriceDecimals = 6

// RoundToTick округляет цену к ближайшему шагу.
func RoundToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	return decimal.NewFromFloat(px).Div(decimal.NewFromFloat(tick)).Round(0).
		Mul(decimal.NewFromFloat(tick)).InexactFloat64()
}

func RoundPrice(px float64) float64 {
	return decimal.NewFromFloat(px).Round(PriceDecimals).InexactFloat64()
}

// FormatPrice: строка цены для тела запроса.
func FormatPrice(px float64) string {
	return decimal.NewFromFloat(px).Round(PriceDecimals).String()
}

// FormatSize: строка размера без хвостовых нулей и экспоненты.
func FormatSize(sz float64) string {
	return decimal.NewFromFloat(sz).String()
}

// CeilContracts: TP/SL эндпоинт принимает только целые контракты, округляем вверх.
func CeilContracts(sz float64) float64 {
	if sz <= 0 {
		return sz
	}
	return math.Ceil(sz - 1e-9)
}

// ParseFloat терпимо относится к пустым строкам из ответов биржи.
func ParseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
