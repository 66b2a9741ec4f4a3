package service

import (
	"context"

	"blofin_bot/internal/helper"
	"blofin_bot/internal/models"
)

const balancePath = "/api/v1/copytrading/account/balance"

type balanceWire struct {
	TotalEquity string `json:"totalEquity"`
	Details     []struct {
		Currency  string `json:"currency"`
		Equity    string `json:"equity"`
		Available string `json:"available"`
	} `json:"details"`
}

// Balance: свежий снимок счёта, без кеша.
func (c *Client) Balance(ctx context.Context) (models.AccountSnapshot, error) {
	data, err := c.get(ctx, balancePath, nil)
	if err != nil {
		return models.AccountSnapshot{}, err
	}

	var w balanceWire
	if err := decodeFirst(balancePath, data, &w); err != nil {
		return models.AccountSnapshot{}, err
	}

	snap := models.AccountSnapshot{
		Equity:   helper.ParseFloat(w.TotalEquity),
		Currency: "USDT",
	}
	if len(w.Details) > 0 {
		d := w.Details[0]
		if eq := helper.ParseFloat(d.Equity); eq > 0 {
			snap.Equity = eq
		}
		snap.Available = helper.ParseFloat(d.Available)
		if d.Currency != "" {
			snap.Currency = d.Currency
		}
	}
	return snap, nil
}
