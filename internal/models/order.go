package models

import (
	"strings"
	"time"
)

const (
	DirLong  = "long"
	DirShort = "short"

	SideBuy  = "buy"
	SideSell = "sell"

	MarginCross    = "cross"
	MarginIsolated = "isolated"
)

type OrderKind string

const (
	KindMarket OrderKind = "market"
	KindLimit  OrderKind = "limit"
	KindTpSl   OrderKind = "tpsl"
)

// NormalizeSide приводит long/short/buy/sell (в любом регистре) к buy/sell.
func NormalizeSide(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long":
		return SideBuy, true
	case "sell", "short":
		return SideSell, true
	}
	return "", false
}

// Direction возвращает направление позиции, которое открывает сторона ордера.
func Direction(side string) string {
	if s, _ := NormalizeSide(side); s == SideSell {
		return DirShort
	}
	return DirLong
}

// CloseSide: сторона ордера, закрывающего позицию направления dir.
func CloseSide(dir string) string {
	if Direction(dir) == DirShort {
		return SideBuy
	}
	return SideSell
}

// OrderRequest собирается исполнителем и превращается клиентом в конкретный запрос.
type OrderRequest struct {
	InstID     string
	Side       string
	Kind       OrderKind
	Size       float64
	Price      float64
	TpTrigger  float64
	SlTrigger  float64
	MarginMode string
	ReduceOnly bool
}

type OrderResult struct {
	OrderID  string    `json:"orderId"`
	InstID   string    `json:"instId"`
	Side     string    `json:"side"`
	Kind     OrderKind `json:"kind"`
	Size     float64   `json:"size"`
	Price    float64   `json:"price,omitempty"`
	Status   string    `json:"status"`
	PlacedAt time.Time `json:"placedAt"`
}

// TpSlResult: одна пара TP/SL, выставленная на бирже.
type TpSlResult struct {
	AlgoID    string  `json:"algoId"`
	InstID    string  `json:"instId"`
	CloseSide string  `json:"closeSide"`
	TpTrigger float64 `json:"tpTrigger,omitempty"`
	SlTrigger float64 `json:"slTrigger,omitempty"`
	Size      float64 `json:"size"`
	Level     int     `json:"level,omitempty"`
}

// PendingTpSl: активная TP/SL заявка из листинга биржи.
type PendingTpSl struct {
	AlgoID       string  `json:"algoId"`
	InstID       string  `json:"instId"`
	PositionSide string  `json:"positionSide"`
	TpTrigger    float64 `json:"tpTrigger"`
	SlTrigger    float64 `json:"slTrigger"`
	Size         float64 `json:"size"`
	State        string  `json:"state"`
}
