package service

import (
	"context"
	"net/url"

	"blofin_bot/internal/helper"
	"blofin_bot/internal/models"
)

const positionsPath = "/api/v1/copytrading/account/positions-by-contract"

type positionWire struct {
	InstID             string `json:"instId"`
	Positions          string `json:"positions"`
	AveragePrice       string `json:"averagePrice"`
	MarkPrice          string `json:"markPrice"`
	UnrealizedPnl      string `json:"unrealizedPnl"`
	UnrealizedPnlRatio string `json:"unrealizedPnlRatio"`
	Leverage           string `json:"leverage"`
	InitialMargin      string `json:"initialMargin"`
	MarginMode         string `json:"marginMode"`
	PositionSide       string `json:"positionSide"`
}

// Positions: открытые позиции; позиции с нулевым размером отбрасываются.
// instID == "": все символы.
func (c *Client) Positions(ctx context.Context, instID string) ([]models.Position, error) {
	var q url.Values
	if instID != "" {
		q = url.Values{}
		q.Set("instId", instID)
	}

	data, err := c.get(ctx, positionsPath, q)
	if err != nil {
		return nil, err
	}
	list, err := decodeList[positionWire](positionsPath, data)
	if err != nil {
		return nil, err
	}

	out := make([]models.Position, 0, len(list))
	for _, w := range list {
		sz := helper.ParseFloat(w.Positions)
		if sz == 0 {
			continue
		}
		out = append(out, models.Position{
			InstID:             w.InstID,
			Size:               sz,
			AvgPrice:           helper.ParseFloat(w.AveragePrice),
			MarkPrice:          helper.ParseFloat(w.MarkPrice),
			UnrealizedPnl:      helper.ParseFloat(w.UnrealizedPnl),
			UnrealizedPnlRatio: helper.ParseFloat(w.UnrealizedPnlRatio),
			Leverage:           helper.ParseFloat(w.Leverage),
			InitialMargin:      helper.ParseFloat(w.InitialMargin),
			MarginMode:         w.MarginMode,
			PositionSide:       w.PositionSide,
		})
	}
	return out, nil
}
