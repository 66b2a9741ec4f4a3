package service

import (
	"context"
	"strconv"

	"blofin_bot/internal/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const setLeveragePath = "/api/v1/copytrading/account/set-leverage"

type setLeverageRequest struct {
	InstID     string `json:"instId"`
	Leverage   string `json:"leverage"`
	MarginMode string `json:"marginMode"`
}

func (c *Client) SetLeverage(ctx context.Context, instID string, leverage int, marginMode string) error {
	if instID == "" || leverage < 1 || leverage > 125 {
		return errors.Wrapf(models.ErrInvalidParameters, "SetLeverage: inst=%q leverage=%d", instID, leverage)
	}
	if marginMode == "" {
		marginMode = c.marginMode
	}

	_, err := c.post(ctx, setLeveragePath, setLeverageRequest{
		InstID:     instID,
		Leverage:   strconv.Itoa(leverage),
		MarginMode: marginMode,
	})
	if err != nil {
		return err
	}
	c.log.Info("leverage set", zap.String("inst_id", instID), zap.Int("leverage", leverage), zap.String("margin_mode", marginMode))
	return nil
}
