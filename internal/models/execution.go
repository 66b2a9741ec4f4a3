package models

import "time"

// SizingResult: результат расчёта размера по риску.
type SizingResult struct {
	InstID       string  `json:"instId"`
	Contracts    float64 `json:"contracts"`
	RawUnits     float64 `json:"rawUnits"`
	RawContracts float64 `json:"rawContracts"`
	RiskAmount   float64 `json:"riskAmount"`
	RiskPerUnit  float64 `json:"riskPerUnit"`
	Notional     float64 `json:"notional"`
	Margin       float64 `json:"margin"`
	Leverage     float64 `json:"leverage"`
	Equity       float64 `json:"equity"`
	Available    float64 `json:"available"`
}

type ExecutionStatus string

const (
	StatusNotExecuted ExecutionStatus = "not_executed"
	// StatusUnprotected: вход исполнен, стоп не выставлен.
	StatusUnprotected ExecutionStatus = "executed_unprotected"
	// StatusPartial: вход и стоп есть, часть TP не выставлена.
	StatusPartial  ExecutionStatus = "executed_partial"
	StatusExecuted ExecutionStatus = "executed"
)

// ExecutionResult возвращается всегда, даже при ошибке, чтобы было видно, на каком шаге остановились.
type ExecutionResult struct {
	SignalID     string          `json:"signalId"`
	InstID       string          `json:"instId"`
	Side         string          `json:"side"`
	Status       ExecutionStatus `json:"status"`
	EntryPrice   float64         `json:"entryPrice"`
	Sizing       *SizingResult   `json:"sizing,omitempty"`
	EntryOrderID string          `json:"entryOrderId,omitempty"`
	StopLoss     *TpSlResult     `json:"stopLoss,omitempty"`
	TakeProfits  []TpSlResult    `json:"takeProfits,omitempty"`
	Cascading    bool            `json:"cascading,omitempty"`
	Closed       bool            `json:"closed,omitempty"`
	Error        string          `json:"error,omitempty"`
	Warnings     []string        `json:"warnings,omitempty"`
	StartedAt    time.Time       `json:"startedAt"`
	FinishedAt   time.Time       `json:"finishedAt"`
}

func (r *ExecutionResult) Executed() bool {
	return r != nil && r.Status != StatusNotExecuted
}

func (r *ExecutionResult) Warn(msg string) { r.Warnings = append(r.Warnings, msg) }
