package runner

import (
	"context"
	"fmt"
	"math"
	"strings"

	"blofin_bot/internal/models"

	"go.uber.org/zap"
)

type Sizer struct {
	acc AccountSource
	log *zap.Logger
}

func NewSizer(acc AccountSource, log *zap.Logger) *Sizer {
	return &Sizer{acc: acc, log: log}
}

// Size считает размер позиции в КОНТРАКТАХ так, чтобы убыток по стопу был равен
// riskPct% от equity (не от доступного баланса):
//
//	risk      = equity * riskPct / 100
//	rawUnits  = risk / |entry - stop|
//	contracts = round(rawUnits / ctVal) к лоту
//	margin    = contracts * ctVal * entry / leverage
//
// Если после округления меньше minSize: ошибка, размер не подтягивается.
func (s *Sizer) Size(
	ctx context.Context,
	instID string,
	entry, stop float64,
	riskPct float64,
	leverage int,
) (models.SizingResult, error) {
	instID = strings.ToUpper(strings.TrimSpace(instID))
	if entry <= 0 || stop <= 0 {
		return models.SizingResult{}, fmt.Errorf("%w: entry/stop <= 0", models.ErrInvalidParameters)
	}
	if riskPct <= 0 || riskPct > 100 {
		return models.SizingResult{}, fmt.Errorf("%w: risk pct %.4g out of (0, 100]", models.ErrInvalidParameters, riskPct)
	}
	// дистанция до стопа
	riskPerUnit := math.Abs(entry - stop)
	if riskPerUnit == 0 {
		return models.SizingResult{}, fmt.Errorf("%w: entry equals stop (%.8g)", models.ErrInvalidParameters, entry)
	}
	if leverage <= 0 {
		leverage = 1
	}

	acc, err := s.acc.Balance(ctx)
	if err != nil {
		return models.SizingResult{}, fmt.Errorf("get equity: %w", err)
	}
	if acc.Equity <= 0 {
		return models.SizingResult{}, fmt.Errorf("%w: equity %.4f <= 0", models.ErrPositionTooSmall, acc.Equity)
	}

	spec, err := s.acc.GetInstrument(ctx, instID)
	if err != nil {
		return models.SizingResult{}, err
	}
	ctVal := spec.ContractValue
	if ctVal <= 0 {
		ctVal = 1
	}

	riskAmount := acc.Equity * riskPct / 100
	rawUnits := riskAmount / riskPerUnit
	rawContracts := rawUnits / ctVal

	res := models.SizingResult{
		InstID:       spec.InstID,
		RawUnits:     rawUnits,
		RawContracts: rawContracts,
		RiskAmount:   riskAmount,
		RiskPerUnit:  riskPerUnit,
		Leverage:     float64(leverage),
		Equity:       acc.Equity,
		Available:    acc.Available,
	}

	contracts, err := spec.RoundSize(rawContracts, models.RoundStrict)
	if err != nil {
		return res, err
	}
	res.Contracts = contracts
	res.Notional = contracts * ctVal * entry
	res.Margin = res.Notional / float64(leverage)

	s.log.Info("position sized",
		zap.String("inst_id", spec.InstID),
		zap.Float64("equity", acc.Equity),
		zap.Float64("available", acc.Available),
		zap.Float64("risk_amount", riskAmount),
		zap.Float64("risk_per_unit", riskPerUnit),
		zap.Float64("raw_contracts", rawContracts),
		zap.Float64("contracts", contracts),
		zap.Float64("notional", res.Notional),
		zap.Float64("margin", res.Margin),
		zap.Int("leverage", leverage),
	)
	if res.Margin > acc.Available && acc.Available > 0 {
		s.log.Warn("margin exceeds available balance",
			zap.String("inst_id", spec.InstID),
			zap.Float64("margin", res.Margin),
			zap.Float64("available", acc.Available),
		)
	}
	return res, nil
}

// fixedSize: размер из сигнала, тоже строго к лоту.
func fixedSize(spec models.InstrumentSpec, size, entry float64, leverage int) (models.SizingResult, error) {
	res := models.SizingResult{InstID: spec.InstID, RawContracts: size, Leverage: float64(leverage)}
	contracts, err := spec.RoundSize(size, models.RoundStrict)
	if err != nil {
		return res, err
	}
	ctVal := spec.ContractValue
	if ctVal <= 0 {
		ctVal = 1
	}
	res.Contracts = contracts
	res.RawUnits = size * ctVal
	res.Notional = contracts * ctVal * entry
	if leverage > 0 {
		res.Margin = res.Notional / float64(leverage)
	}
	return res, nil
}
