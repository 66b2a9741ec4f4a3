package service

import (
	"context"
	stderrors "errors"

	"blofin_bot/internal/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const cancelTpSlPath = "/api/v1/copytrading/trade/cancel-tpsl-by-contract"

type cancelTpSlRequest struct {
	AlgoID string `json:"algoId"`
}

type algoAck struct {
	AlgoID string `json:"algoId"`
	Code   string `json:"code"`
	Msg    string `json:"msg"`
}

func (c *Client) CancelTpSl(ctx context.Context, instID, algoID string) error {
	if algoID == "" {
		return errors.Wrap(models.ErrInvalidParameters, "CancelTpSl: empty algoId")
	}
	data, err := c.post(ctx, cancelTpSlPath, cancelTpSlRequest{AlgoID: algoID})
	if err != nil {
		return err
	}

	acks, err := decodeList[algoAck](cancelTpSlPath, data)
	if err != nil {
		return err
	}
	for _, a := range acks {
		if a.Code != "" && a.Code != "0" {
			return classifyCode(cancelTpSlPath, a.Code, a.Msg, 200)
		}
	}

	c.ReleaseTpSl(instID, algoID)
	c.log.Info("tp/sl cancelled", zap.String("inst_id", instID), zap.String("algo_id", algoID))
	return nil
}

// CancelAllTpSl снимает все активные TP/SL по символу и сбрасывает учёт покрытия.
func (c *Client) CancelAllTpSl(ctx context.Context, instID string) (int, error) {
	if instID == "" {
		return 0, errors.Wrap(models.ErrInvalidParameters, "CancelAllTpSl: empty instId")
	}
	pending, err := c.PendingTpSl(ctx, instID)
	if err != nil {
		return 0, err
	}

	var errs []error
	cancelled := 0
	for _, p := range pending {
		if p.InstID != "" && p.InstID != instID {
			continue
		}
		if err := c.CancelTpSl(ctx, instID, p.AlgoID); err != nil {
			errs = append(errs, err)
			continue
		}
		cancelled++
	}
	if len(errs) == 0 {
		c.ResetCoverage(instID)
	}
	return cancelled, stderrors.Join(errs...)
}
