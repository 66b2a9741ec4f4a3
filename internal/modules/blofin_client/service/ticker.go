package service

import (
	"context"
	"net/url"

	"blofin_bot/internal/helper"
	"blofin_bot/internal/models"

	"github.com/pkg/errors"
)

const tickerPath = "/api/v1/market/ticker"

func (c *Client) Ticker(ctx context.Context, instID string) (models.Ticker, error) {
	if instID == "" {
		return models.Ticker{}, errors.Wrap(models.ErrInvalidParameters, "Ticker: empty instId")
	}
	q := url.Values{}
	q.Set("instId", instID)

	data, err := c.get(ctx, tickerPath, q)
	if err != nil {
		return models.Ticker{}, err
	}

	var w struct {
		InstID   string `json:"instId"`
		Last     string `json:"last"`
		BidPrice string `json:"bidPrice"`
		AskPrice string `json:"askPrice"`
	}
	if err := decodeFirst(tickerPath, data, &w); err != nil {
		return models.Ticker{}, err
	}

	t := models.Ticker{
		InstID: instID,
		Last:   helper.ParseFloat(w.Last),
		Bid:    helper.ParseFloat(w.BidPrice),
		Ask:    helper.ParseFloat(w.AskPrice),
	}
	if t.Last <= 0 {
		return models.Ticker{}, errors.Wrapf(models.ErrExchangeRejection, "Ticker %s: last price <= 0", instID)
	}
	return t, nil
}
