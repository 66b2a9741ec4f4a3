package service

import (
	"context"

	"blofin_bot/internal/helper"
	"blofin_bot/internal/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const placeOrderPath = "/api/v1/copytrading/trade/place-order"

// placeOrderRequest: порядок полей фиксирован, тело подписывается побайтно.
type placeOrderRequest struct {
	InstID       string `json:"instId"`
	MarginMode   string `json:"marginMode"`
	PositionSide string `json:"positionSide"`
	Side         string `json:"side"`
	OrderType    string `json:"orderType"`
	Price        string `json:"price,omitempty"`
	Size         string `json:"size"`
	ReduceOnly   string `json:"reduceOnly,omitempty"`
}

type placeOrderAck struct {
	OrderID string `json:"orderId"`
	OrdID   string `json:"ordId"`
	Code    string `json:"code"`
	Msg     string `json:"msg"`
}

// PlaceOrder: общий вход для OrderRequest; разводит по видам ордеров.
func (c *Client) PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error) {
	switch req.Kind {
	case models.KindMarket, "":
		return c.PlaceMarket(ctx, req.InstID, req.Side, req.Size, req.MarginMode)
	case models.KindLimit:
		if req.ReduceOnly {
			return c.PlaceReduceOnlyLimit(ctx, req.InstID, req.Side, req.Size, req.Price, req.MarginMode)
		}
		return c.PlaceLimit(ctx, req.InstID, req.Side, req.Size, req.Price, req.MarginMode)
	case models.KindTpSl:
		res, err := c.SetTpSlPair(ctx, req)
		if err != nil {
			return models.OrderResult{}, err
		}
		return models.OrderResult{
			OrderID: res.AlgoID, InstID: res.InstID, Side: res.CloseSide,
			Kind: models.KindTpSl, Size: res.Size, Status: "live", PlacedAt: c.now(),
		}, nil
	}
	return models.OrderResult{}, errors.Wrapf(models.ErrInvalidParameters, "PlaceOrder: unknown kind %q", req.Kind)
}

// PlaceMarket: рыночный ордер, размер округляется строго.
// Пустой marginMode: режим клиента по умолчанию.
func (c *Client) PlaceMarket(ctx context.Context, instID, side string, size float64, marginMode string) (models.OrderResult, error) {
	return c.placeOrder(ctx, instID, side, marginMode, size, 0, models.KindMarket, false)
}

func (c *Client) PlaceLimit(ctx context.Context, instID, side string, size, price float64, marginMode string) (models.OrderResult, error) {
	return c.placeOrder(ctx, instID, side, marginMode, size, price, models.KindLimit, false)
}

// PlaceReduceOnlyLimit: лимитный выход частью позиции, позицию не увеличивает.
func (c *Client) PlaceReduceOnlyLimit(ctx context.Context, instID, side string, size, price float64, marginMode string) (models.OrderResult, error) {
	return c.placeOrder(ctx, instID, side, marginMode, size, price, models.KindLimit, true)
}

func (c *Client) placeOrder(
	ctx context.Context,
	instID, side, marginMode string,
	size, price float64,
	kind models.OrderKind,
	reduceOnly bool,
) (res models.OrderResult, err error) {
	defer func() { c.orderDone(kind, err) }()

	s, ok := models.NormalizeSide(side)
	if !ok {
		return res, errors.Wrapf(models.ErrInvalidParameters, "place %s: unsupported side %q", kind, side)
	}
	if size <= 0 {
		return res, errors.Wrapf(models.ErrInvalidParameters, "place %s: size <= 0", kind)
	}
	if kind == models.KindLimit && price <= 0 {
		return res, errors.Wrapf(models.ErrInvalidParameters, "place %s: price <= 0", kind)
	}

	spec, err := c.GetInstrument(ctx, instID)
	if err != nil {
		return res, err
	}
	mode := models.RoundStrict
	if reduceOnly {
		mode = models.RoundPermissive
	}
	sz, err := spec.RoundSize(size, mode)
	if err != nil {
		return res, err
	}

	if marginMode == "" {
		marginMode = c.marginMode
	}
	body := placeOrderRequest{
		InstID:       spec.InstID,
		MarginMode:   marginMode,
		PositionSide: "net",
		Side:         s,
		OrderType:    string(kind),
		Size:         helper.FormatSize(sz),
	}
	if kind == models.KindLimit {
		price = helper.RoundToTick(price, spec.TickSize)
		body.Price = helper.FormatPrice(price)
	}
	if reduceOnly {
		body.ReduceOnly = "true"
	}

	data, err := c.post(ctx, placeOrderPath, body)
	if err != nil {
		return res, err
	}

	var ack placeOrderAck
	if err := decodeFirst(placeOrderPath, data, &ack); err != nil {
		return res, err
	}
	if ack.Code != "" && ack.Code != "0" {
		return res, classifyCode(placeOrderPath, ack.Code, ack.Msg, 200)
	}
	id := ack.OrderID
	if id == "" {
		id = ack.OrdID
	}
	if id == "" {
		return res, models.NewExchangeError(models.ErrExchangeRejection, placeOrderPath, "", "empty orderId", 200)
	}

	c.log.Info("order placed",
		zap.String("inst_id", spec.InstID),
		zap.String("kind", string(kind)),
		zap.String("side", s),
		zap.Float64("size", sz),
		zap.Float64("price", price),
		zap.Bool("reduce_only", reduceOnly),
		zap.String("margin_mode", marginMode),
		zap.String("order_id", id),
	)

	return models.OrderResult{
		OrderID:  id,
		InstID:   spec.InstID,
		Side:     s,
		Kind:     kind,
		Size:     sz,
		Price:    price,
		Status:   "placed",
		PlacedAt: c.now(),
	}, nil
}
