package service

import (
	"context"
	"net/url"

	"blofin_bot/internal/helper"
	"blofin_bot/internal/models"
)

const pendingTpSlPath = "/api/v1/copytrading/trade/pending-tpsl-by-contract"

type pendingTpSlWire struct {
	AlgoID         string `json:"algoId"`
	InstID         string `json:"instId"`
	PositionSide   string `json:"positionSide"`
	TpTriggerPrice string `json:"tpTriggerPrice"`
	SlTriggerPrice string `json:"slTriggerPrice"`
	Size           string `json:"size"`
	State          string `json:"state"`
}

// PendingTpSl: активные TP/SL; instID == "", по всем символам.
func (c *Client) PendingTpSl(ctx context.Context, instID string) ([]models.PendingTpSl, error) {
	var q url.Values
	if instID != "" {
		q = url.Values{}
		q.Set("instId", instID)
	}

	data, err := c.get(ctx, pendingTpSlPath, q)
	if err != nil {
		return nil, err
	}
	list, err := decodeList[pendingTpSlWire](pendingTpSlPath, data)
	if err != nil {
		return nil, err
	}

	out := make([]models.PendingTpSl, 0, len(list))
	for _, w := range list {
		if w.AlgoID == "" {
			continue
		}
		out = append(out, models.PendingTpSl{
			AlgoID:       w.AlgoID,
			InstID:       w.InstID,
			PositionSide: w.PositionSide,
			TpTrigger:    helper.ParseFloat(w.TpTriggerPrice),
			SlTrigger:    helper.ParseFloat(w.SlTriggerPrice),
			Size:         helper.ParseFloat(w.Size),
			State:        w.State,
		})
	}
	return out, nil
}

// PendingTpSlIDs: множество algoId активных заявок, для монитора.
func (c *Client) PendingTpSlIDs(ctx context.Context) (map[string]struct{}, error) {
	list, err := c.PendingTpSl(ctx, "")
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(list))
	for _, p := range list {
		ids[p.AlgoID] = struct{}{}
	}
	return ids, nil
}
