package models

import (
	"strconv"
	"time"
)

type OrderRole string

const (
	RoleSL  OrderRole = "SL"
	RoleTP1 OrderRole = "TP1"
	RoleTP2 OrderRole = "TP2"
	RoleTP3 OrderRole = "TP3"
)

// TPRole возвращает роль для уровня n (1-based).
func TPRole(n int) OrderRole {
	switch n {
	case 1:
		return RoleTP1
	case 2:
		return RoleTP2
	case 3:
		return RoleTP3
	}
	return OrderRole("TP" + strconv.Itoa(n))
}

func (r OrderRole) IsTakeProfit() bool { return len(r) >= 2 && r[:2] == "TP" }

// TrackedOrder: TP/SL заявка под наблюдением монитора.
type TrackedOrder struct {
	OrderID      string    `json:"orderId"`
	InstID       string    `json:"instId"`
	Role         OrderRole `json:"role"`
	TriggerPrice float64   `json:"triggerPrice"`
	Size         float64   `json:"size"`
	// Side: сторона закрывающего ордера (sell закрывает long).
	Side         string    `json:"side"`
	EntryPrice   float64   `json:"entryPrice"`
	TrackedSince time.Time `json:"trackedSince"`
}

// Pnl по цене срабатывания. Без цены входа считаем 0.
func (o TrackedOrder) Pnl() float64 {
	if o.EntryPrice <= 0 {
		return 0
	}
	if o.Side == SideBuy {
		return (o.EntryPrice - o.TriggerPrice) * o.Size
	}
	return (o.TriggerPrice - o.EntryPrice) * o.Size
}

// CascadeLevel: следующий TP. Size уходит на биржу как есть (может быть долей, -0.5),
// Contracts: оценка в контрактах для PnL.
type CascadeLevel struct {
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Contracts float64   `json:"contracts"`
	Role      OrderRole `json:"role"`
}

// CascadeConfig: очередь следующих TP для символа.
type CascadeConfig struct {
	InstID     string  `json:"instId"`
	EntryPrice float64 `json:"entryPrice"`
	SLPrice    float64 `json:"slPrice"`
	MarginMode string  `json:"marginMode"`
	// CloseSide: сторона закрывающих ордеров.
	CloseSide string         `json:"closeSide"`
	Queue     []CascadeLevel `json:"queue"`
}
