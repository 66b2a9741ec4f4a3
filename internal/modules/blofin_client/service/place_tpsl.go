package service

import (
	"context"

	"blofin_bot/internal/helper"
	"blofin_bot/internal/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const placeTpSlPath = "/api/v1/copytrading/trade/place-tpsl-by-contract"

type tpslRequest struct {
	InstID         string `json:"instId"`
	MarginMode     string `json:"marginMode"`
	PositionSide   string `json:"positionSide"`
	TpTriggerPrice string `json:"tpTriggerPrice"`
	SlTriggerPrice string `json:"slTriggerPrice"`
	Size           string `json:"size"`
}

// protectiveSize: положительный размер округляется к лоту с подъёмом до минимума,
// затем вверх до целых контрактов (эндпоинт TP/SL принимает только целые).
// Отрицательный: доля позиции (-0.33, -0.5, -1), уходит как есть.
func protectiveSize(spec models.InstrumentSpec, size float64) (float64, error) {
	if size < 0 {
		if size < -1 {
			return 0, errors.Wrapf(models.ErrInvalidParameters, "fraction %v below -1", size)
		}
		return size, nil
	}
	lot, err := spec.RoundSize(size, models.RoundPermissive)
	if err != nil {
		return 0, err
	}
	return helper.CeilContracts(lot), nil
}

// SetTpSlPair выставляет пару TP/SL на часть позиции. req.Side: сторона закрывающего ордера,
// одна из цен может быть нулевой (тогда ставится только вторая нога).
func (c *Client) SetTpSlPair(ctx context.Context, req models.OrderRequest) (res models.TpSlResult, err error) {
	defer func() { c.orderDone(models.KindTpSl, err) }()

	closeSide, ok := models.NormalizeSide(req.Side)
	if !ok {
		return res, errors.Wrapf(models.ErrInvalidParameters, "SetTpSlPair: unsupported side %q", req.Side)
	}
	if req.TpTrigger <= 0 && req.SlTrigger <= 0 {
		return res, errors.Wrap(models.ErrInvalidParameters, "SetTpSlPair: no trigger price")
	}
	if req.TpTrigger < 0 || req.SlTrigger < 0 {
		return res, errors.Wrap(models.ErrInvalidParameters, "SetTpSlPair: negative trigger price")
	}
	if req.Size == 0 {
		return res, errors.Wrap(models.ErrInvalidParameters, "SetTpSlPair: size == 0")
	}

	spec, err := c.GetInstrument(ctx, req.InstID)
	if err != nil {
		return res, err
	}
	size, err := protectiveSize(spec, req.Size)
	if err != nil {
		return res, err
	}

	// в учёт идёт то, что реально уйдёт на биржу
	hasTP, hasSL := req.TpTrigger > 0, req.SlTrigger > 0
	token, err := c.reserve(spec.InstID, size, hasTP, hasSL)
	if err != nil {
		return res, err
	}
	defer func() {
		if err != nil {
			c.rollback(spec.InstID, token)
		}
	}()

	margin := req.MarginMode
	if margin == "" {
		margin = c.marginMode
	}
	// закрывающий sell: значит позиция long
	posSide := models.DirLong
	if closeSide == models.SideBuy {
		posSide = models.DirShort
	}

	body := tpslRequest{
		InstID:       spec.InstID,
		MarginMode:   margin,
		PositionSide: posSide,
		Size:         helper.FormatSize(size),
	}
	if hasTP {
		body.TpTriggerPrice = helper.FormatPrice(req.TpTrigger)
	}
	if hasSL {
		body.SlTriggerPrice = helper.FormatPrice(req.SlTrigger)
	}

	data, err := c.post(ctx, placeTpSlPath, body)
	if err != nil {
		return res, err
	}

	var ack algoAck
	if err = decodeFirst(placeTpSlPath, data, &ack); err != nil {
		return res, err
	}
	if ack.Code != "" && ack.Code != "0" {
		err = classifyCode(placeTpSlPath, ack.Code, ack.Msg, 200)
		return res, err
	}
	if ack.AlgoID == "" {
		err = models.NewExchangeError(models.ErrExchangeRejection, placeTpSlPath, "", "empty algoId", 200)
		return res, err
	}
	c.commit(spec.InstID, token, ack.AlgoID)

	c.log.Info("tp/sl placed",
		zap.String("inst_id", spec.InstID),
		zap.String("algo_id", ack.AlgoID),
		zap.String("close_side", closeSide),
		zap.Float64("tp", helper.RoundPrice(req.TpTrigger)),
		zap.Float64("sl", helper.RoundPrice(req.SlTrigger)),
		zap.Float64("size", size),
		zap.Float64("requested", req.Size),
	)

	return models.TpSlResult{
		AlgoID:    ack.AlgoID,
		InstID:    spec.InstID,
		CloseSide: closeSide,
		TpTrigger: helper.RoundPrice(req.TpTrigger),
		SlTrigger: helper.RoundPrice(req.SlTrigger),
		Size:      size,
	}, nil
}

// SetStopLoss: пара только со стопом.
func (c *Client) SetStopLoss(ctx context.Context, instID, closeSide string, trigger, size float64) (models.TpSlResult, error) {
	return c.SetTpSlPair(ctx, models.OrderRequest{
		InstID: instID, Side: closeSide, Kind: models.KindTpSl, SlTrigger: trigger, Size: size,
	})
}

// SetTakeProfit: пара только с тейком.
func (c *Client) SetTakeProfit(ctx context.Context, instID, closeSide string, trigger, size float64) (models.TpSlResult, error) {
	return c.SetTpSlPair(ctx, models.OrderRequest{
		InstID: instID, Side: closeSide, Kind: models.KindTpSl, TpTrigger: trigger, Size: size,
	})
}
