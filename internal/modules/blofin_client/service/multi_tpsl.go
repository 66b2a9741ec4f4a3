package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"blofin_bot/internal/helper"
	"blofin_bot/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SplitLevels делит totalSize на n частей для TP/SL. Эндпоинт принимает только целые
// контракты, поэтому шаг деления не меньше одного контракта; остаток уходит в последний уровень.
// Если часть меньше minSize или целые части в сумме вылезают за позицию: один уровень на весь размер.
func SplitLevels(spec models.InstrumentSpec, totalSize float64, n int) []float64 {
	if n <= 1 || totalSize <= 0 {
		return []float64{totalSize}
	}

	step := decimal.NewFromFloat(spec.LotSize)
	if step.LessThan(decimal.NewFromInt(1)) {
		step = decimal.NewFromInt(1)
	}
	minSz := decimal.NewFromFloat(spec.MinSize)
	total := decimal.NewFromFloat(totalSize)

	per := total.Div(decimal.NewFromInt(int64(n))).Div(step).Floor().Mul(step)
	if !per.IsPositive() || per.LessThan(minSz) {
		return []float64{totalSize}
	}

	out := make([]float64, n)
	wire := 0.0
	for i := 0; i < n-1; i++ {
		out[i] = per.InexactFloat64()
		wire += helper.CeilContracts(out[i])
	}
	out[n-1] = total.Sub(per.Mul(decimal.NewFromInt(int64(n - 1)))).InexactFloat64()
	wire += helper.CeilContracts(out[n-1])
	if wire > helper.CeilContracts(totalSize) {
		return []float64{totalSize}
	}
	return out
}

// SetMultipleTpSl раскладывает позицию по нескольким TP. slPrice > 0 добавляет стоп в каждую пару,
// 0: только тейки (стоп на весь объём ставится отдельно).
// Ошибка одного уровня не останавливает остальные; все ошибки возвращаются вместе.
func (c *Client) SetMultipleTpSl(
	ctx context.Context,
	instID, closeSide string,
	totalSize, slPrice float64,
	tpPrices []float64,
	marginMode string,
) ([]models.TpSlResult, error) {
	levels := make([]float64, 0, len(tpPrices))
	for _, p := range tpPrices {
		if p > 0 {
			levels = append(levels, p)
		}
	}
	if len(levels) == 0 {
		return nil, errors.Wrap(models.ErrInvalidParameters, "SetMultipleTpSl: no take profit prices")
	}
	if totalSize <= 0 {
		return nil, errors.Wrap(models.ErrInvalidParameters, "SetMultipleTpSl: total size <= 0")
	}

	spec, err := c.GetInstrument(ctx, instID)
	if err != nil {
		return nil, err
	}

	sizes := SplitLevels(spec, totalSize, len(levels))
	if len(sizes) == 1 && len(levels) > 1 {
		c.log.Info("tp split below minimum, collapsing to single pair",
			zap.String("inst_id", spec.InstID),
			zap.Float64("total", totalSize),
			zap.Int("levels", len(levels)),
			zap.Float64("min_size", spec.MinSize),
		)
	}

	results := make([]models.TpSlResult, 0, len(sizes))
	var errs []error
	for i, sz := range sizes {
		res, err := c.SetTpSlPair(ctx, models.OrderRequest{
			InstID:     spec.InstID,
			Side:       closeSide,
			Kind:       models.KindTpSl,
			TpTrigger:  levels[i],
			SlTrigger:  slPrice,
			Size:       sz,
			MarginMode: marginMode,
		})
		if err != nil {
			c.log.Warn("take profit level failed",
				zap.String("inst_id", spec.InstID), zap.Int("level", i+1), zap.Error(err))
			errs = append(errs, fmt.Errorf("TP%d @ %v: %w", i+1, levels[i], err))
			continue
		}
		res.Level = i + 1
		results = append(results, res)
	}
	return results, stderrors.Join(errs...)
}
