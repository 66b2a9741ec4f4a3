package runner

import (
	"context"

	"blofin_bot/internal/models"
)

// AccountSource: что нужно расчёту размера.
type AccountSource interface {
	Balance(ctx context.Context) (models.AccountSnapshot, error)
	GetInstrument(ctx context.Context, instID string) (models.InstrumentSpec, error)
}

// Exchange: операции биржи, которые использует исполнитель. *service.Client реализует его целиком.
type Exchange interface {
	AccountSource

	Ticker(ctx context.Context, instID string) (models.Ticker, error)
	SetLeverage(ctx context.Context, instID string, leverage int, marginMode string) error
	PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error)
	SetTpSlPair(ctx context.Context, req models.OrderRequest) (models.TpSlResult, error)
	SetMultipleTpSl(ctx context.Context, instID, closeSide string, totalSize, slPrice float64, tpPrices []float64, marginMode string) ([]models.TpSlResult, error)
	Positions(ctx context.Context, instID string) ([]models.Position, error)
	SetPositionSize(instID string, size float64)
	Coverage(instID string) (tp, sl, limit float64)
	ResetCoverage(instID string)
	ClosePosition(ctx context.Context, instID, marginMode string) error
}

// Tracker: монитор каскада.
type Tracker interface {
	Track(order models.TrackedOrder)
	SetupCascade(cfg models.CascadeConfig)
}
