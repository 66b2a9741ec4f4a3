package models

import (
	"github.com/shopspring/decimal"
)

// InstrumentSpec: торговые параметры контракта. Неизменяемы после загрузки.
type InstrumentSpec struct {
	InstID        string  `json:"instId"`
	MinSize       float64 `json:"minSize"`
	LotSize       float64 `json:"lotSize"`
	TickSize      float64 `json:"tickSize"`
	ContractValue float64 `json:"contractValue"`
	ContractType  string  `json:"contractType"`

	// Default == true, если биржа не отдала спецификацию и подставлены дефолты.
	Default bool `json:"default,omitempty"`
}

// DefaultInstrumentSpec: разрешающие дефолты на случай, когда спецификацию получить не удалось.
func DefaultInstrumentSpec(instID string) InstrumentSpec {
	return InstrumentSpec{
		InstID:        instID,
		MinSize:       1,
		LotSize:       1,
		TickSize:      0.01,
		ContractValue: 1,
		ContractType:  "linear",
		Default:       true,
	}
}

type RoundMode int

const (
	// RoundStrict: результат ниже minSize даёт ErrPositionTooSmall.
	RoundStrict RoundMode = iota
	// RoundPermissive: результат ниже minSize поднимается до minSize.
	RoundPermissive
)

func (m RoundMode) String() string {
	if m == RoundPermissive {
		return "permissive"
	}
	return "strict"
}

// RoundSize округляет размер до ближайшего кратного lotSize.
// Отрицательные значения (доли позиции, например -0.5) возвращаются как есть.
func (s InstrumentSpec) RoundSize(raw float64, mode RoundMode) (float64, error) {
	if raw < 0 {
		return raw, nil
	}

	lot := decimal.NewFromFloat(s.LotSize)
	if !lot.IsPositive() {
		lot = decimal.NewFromInt(1)
	}
	minSz := decimal.NewFromFloat(s.MinSize)
	if !minSz.IsPositive() {
		minSz = lot
	}

	steps := decimal.NewFromFloat(raw).Div(lot).Round(0)
	sz := steps.Mul(lot)

	if sz.LessThan(minSz) {
		if mode == RoundStrict {
			return 0, &SizeError{InstID: s.InstID, Raw: raw, Rounded: sz.InexactFloat64(), Min: s.MinSize}
		}
		sz = minSz
	}
	return sz.InexactFloat64(), nil
}

// SizeError: размер после округления меньше минимального.
type SizeError struct {
	InstID  string
	Raw     float64
	Rounded float64
	Min     float64
}

func (e *SizeError) Error() string {
	return "size " + decimal.NewFromFloat(e.Raw).String() + " for " + e.InstID +
		" rounds to " + decimal.NewFromFloat(e.Rounded).String() +
		", below minimum " + decimal.NewFromFloat(e.Min).String()
}

func (e *SizeError) Unwrap() error { return ErrPositionTooSmall }
