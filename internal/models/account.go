package models

// AccountSnapshot запрашивается заново для каждого расчёта размера, не кешируется.
type AccountSnapshot struct {
	Equity    float64 `json:"equity"`
	Available float64 `json:"available"`
	Currency  string  `json:"currency"`
}

// Position: представление открытой позиции со стороны биржи. Size со знаком.
type Position struct {
	InstID             string  `json:"instId"`
	Size               float64 `json:"size"`
	AvgPrice           float64 `json:"avgPrice"`
	MarkPrice          float64 `json:"markPrice"`
	UnrealizedPnl      float64 `json:"unrealizedPnl"`
	UnrealizedPnlRatio float64 `json:"unrealizedPnlRatio"`
	Leverage           float64 `json:"leverage"`
	InitialMargin      float64 `json:"initialMargin"`
	MarginMode         string  `json:"marginMode"`
	PositionSide       string  `json:"positionSide"`
}

func (p Position) IsLong() bool { return p.Size > 0 }

// Direction возвращает "long"/"short" по знаку размера.
func (p Position) Direction() string {
	if p.Size < 0 {
		return DirShort
	}
	return DirLong
}

type Ticker struct {
	InstID string  `json:"instId"`
	Last   float64 `json:"last"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}
