package runner

import (
	"context"
	"errors"
	"math"
	"testing"

	"blofin_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSizeSmallAccountScenario(t *testing.T) {
	ex := newFakeExchange()
	ex.equity = 50.44
	ex.available = 10
	s := NewSizer(ex, zap.NewNop())

	res, err := s.Size(context.Background(), "sei-usdt", 0.125294, 0.127698, 1, 10)
	require.NoError(t, err)

	assert.InDelta(t, 0.5044, res.RiskAmount, 1e-12)
	assert.InDelta(t, 0.002404, res.RiskPerUnit, 1e-12)
	assert.InDelta(t, 209.817, res.RawUnits, 1e-3)
	// ближайший лот: 209.8 -> 210
	assert.Equal(t, 210.0, res.Contracts)
	assert.InDelta(t, 210*0.125294, res.Notional, 1e-9)
	assert.InDelta(t, 210*0.125294/10, res.Margin, 1e-9)
	assert.Equal(t, "SEI-USDT", res.InstID)
	assert.Equal(t, 50.44, res.Equity)
	assert.Equal(t, 10.0, res.Available)
}

func TestSizeUsesEquityNotAvailable(t *testing.T) {
	ex := newFakeExchange()
	ex.equity = 1000
	ex.available = 1
	s := NewSizer(ex, zap.NewNop())

	res, err := s.Size(context.Background(), "SEI-USDT", 0.5, 0.45, 1, 5)
	require.NoError(t, err)
	// 10 USDT риска / 0.05 = 200
	assert.Equal(t, 200.0, res.Contracts)
}

func TestSizeLossAtStopMatchesRisk(t *testing.T) {
	ex := newFakeExchange()
	ex.spec = models.InstrumentSpec{MinSize: 0.1, LotSize: 0.1, TickSize: 0.1, ContractValue: 0.001}
	s := NewSizer(ex, zap.NewNop())

	cases := []struct {
		equity, entry, stop, pct float64
	}{
		{1000, 60000, 59000, 1},
		{2500, 61234.5, 62011, 0.5},
		{777, 3000, 2950.5, 2},
	}
	for _, tc := range cases {
		ex.equity = tc.equity
		res, err := s.Size(context.Background(), "BTC-USDT", tc.entry, tc.stop, tc.pct, 10)
		require.NoError(t, err)

		loss := res.Contracts * 0.001 * math.Abs(tc.entry-tc.stop)
		oneLot := 0.1 * 0.001 * math.Abs(tc.entry-tc.stop)
		assert.InDelta(t, res.RiskAmount, loss, oneLot+1e-9)
	}
}

func TestSizeErrors(t *testing.T) {
	ex := newFakeExchange()
	s := NewSizer(ex, zap.NewNop())
	ctx := context.Background()

	_, err := s.Size(ctx, "SEI-USDT", 0.5, 0.5, 1, 10)
	assert.ErrorIs(t, err, models.ErrInvalidParameters)

	_, err = s.Size(ctx, "SEI-USDT", 0, 0.5, 1, 10)
	assert.ErrorIs(t, err, models.ErrInvalidParameters)

	_, err = s.Size(ctx, "SEI-USDT", 0.5, 0.45, 0, 10)
	assert.ErrorIs(t, err, models.ErrInvalidParameters)

	// 0.01 USDT риска на 1 USDT дистанции: ниже минимального лота
	ex.equity = 1
	_, err = s.Size(ctx, "SEI-USDT", 10, 9, 1, 10)
	assert.ErrorIs(t, err, models.ErrPositionTooSmall)

	ex.equity = 0
	_, err = s.Size(ctx, "SEI-USDT", 10, 9, 1, 10)
	assert.ErrorIs(t, err, models.ErrPositionTooSmall)

	ex.balanceErr = models.NewExchangeError(models.ErrTransient, "/balance", "", "timeout", 503)
	_, err = s.Size(ctx, "SEI-USDT", 10, 9, 1, 10)
	assert.True(t, models.IsRetryable(err))
	var xe *models.ExchangeError
	assert.True(t, errors.As(err, &xe))
}

func TestFixedSizeStrict(t *testing.T) {
	spec := models.InstrumentSpec{InstID: "BTC-USDT", MinSize: 0.1, LotSize: 0.1, ContractValue: 0.001}

	res, err := fixedSize(spec, 1.26, 60000, 10)
	require.NoError(t, err)
	assert.InDelta(t, 1.3, res.Contracts, 1e-12)
	assert.InDelta(t, 1.3*0.001*60000, res.Notional, 1e-9)
	assert.InDelta(t, 1.3*0.001*60000/10, res.Margin, 1e-9)

	_, err = fixedSize(spec, 0.04, 60000, 10)
	assert.ErrorIs(t, err, models.ErrPositionTooSmall)
}
