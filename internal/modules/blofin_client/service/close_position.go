package service

import (
	"context"

	"blofin_bot/internal/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const closePositionPath = "/api/v1/copytrading/trade/close-position"

type closePositionRequest struct {
	InstID       string `json:"instId"`
	MarginMode   string `json:"marginMode"`
	PositionSide string `json:"positionSide"`
}

// ClosePosition закрывает позицию по рынку целиком и сбрасывает учёт покрытия.
func (c *Client) ClosePosition(ctx context.Context, instID, marginMode string) (err error) {
	defer func() { c.orderDone(models.KindMarket, err) }()

	if instID == "" {
		return errors.Wrap(models.ErrInvalidParameters, "ClosePosition: empty instId")
	}
	if marginMode == "" {
		marginMode = c.marginMode
	}

	if _, err = c.post(ctx, closePositionPath, closePositionRequest{
		InstID:       instID,
		MarginMode:   marginMode,
		PositionSide: "net",
	}); err != nil {
		return err
	}

	c.ResetCoverage(instID)
	c.log.Info("position closed", zap.String("inst_id", instID))
	return nil
}
