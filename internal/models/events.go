package models

import "time"

// FillEvent: TP/SL сработал (заявка пропала из pending).
type FillEvent struct {
	OrderID      string    `json:"orderId"`
	InstID       string    `json:"symbol"`
	Role         OrderRole `json:"role"`
	TriggerPrice float64   `json:"triggerPrice"`
	Size         float64   `json:"size"`
	Pnl          float64   `json:"pnl"`
	IsProfit     bool      `json:"isProfit"`
	At           time.Time `json:"at"`
}

type FailureStage string

const (
	StageValidate   FailureStage = "validate"
	StageSizing     FailureStage = "sizing"
	StageEntry      FailureStage = "entry"
	StageStopLoss   FailureStage = "stop_loss"
	StageTakeProfit FailureStage = "take_profit"
	StageCascade    FailureStage = "cascade"
)

// FailureEvent: ошибка исполнения, о которой нужно сообщить наружу.
type FailureEvent struct {
	SignalID string       `json:"signalId,omitempty"`
	InstID   string       `json:"symbol"`
	Stage    FailureStage `json:"stage"`
	Class    string       `json:"class"`
	Message  string       `json:"message"`
	// Unprotected: позиция открыта, но стоп не выставлен.
	Unprotected bool      `json:"unprotected"`
	At          time.Time `json:"at"`
}
