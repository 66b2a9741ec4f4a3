package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"blofin_bot/internal/models"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExchange struct {
	positions []models.Position
	slErrs    []error
	calls     []string
	pairs     []models.OrderRequest
	multiSize float64
	sizeSet   float64
}

func (f *fakeExchange) Balance(context.Context) (models.AccountSnapshot, error) {
	return models.AccountSnapshot{Equity: 10, Available: 5, Currency: "USDT"}, nil
}

func (f *fakeExchange) Positions(context.Context, string) ([]models.Position, error) {
	return f.positions, nil
}

func (f *fakeExchange) PendingTpSl(context.Context, string) ([]models.PendingTpSl, error) {
	return []models.PendingTpSl{{AlgoID: "a1", InstID: "SEI-USDT", SlTrigger: 0.4, Size: 10}}, nil
}

func (f *fakeExchange) CancelTpSl(_ context.Context, _, algoID string) error {
	f.calls = append(f.calls, "cancel:"+algoID)
	return nil
}

func (f *fakeExchange) CancelAllTpSl(_ context.Context, instID string) (int, error) {
	f.calls = append(f.calls, "cancel-all:"+instID)
	return 2, nil
}

func (f *fakeExchange) SetPositionSize(_ string, size float64) { f.sizeSet = size }

func (f *fakeExchange) SetTpSlPair(_ context.Context, req models.OrderRequest) (models.TpSlResult, error) {
	f.calls = append(f.calls, "sl")
	f.pairs = append(f.pairs, req)
	if len(f.slErrs) > 0 {
		err := f.slErrs[0]
		f.slErrs = f.slErrs[1:]
		if err != nil {
			return models.TpSlResult{}, err
		}
	}
	return models.TpSlResult{AlgoID: "sl-1", SlTrigger: req.SlTrigger, Size: req.Size}, nil
}

func (f *fakeExchange) SetMultipleTpSl(_ context.Context, _, _ string, totalSize, _ float64, tps []float64, _ string) ([]models.TpSlResult, error) {
	f.calls = append(f.calls, "tps")
	f.multiSize = totalSize
	out := make([]models.TpSlResult, 0, len(tps))
	for i, p := range tps {
		out = append(out, models.TpSlResult{AlgoID: "tp", TpTrigger: p, Level: i + 1, Size: totalSize / float64(len(tps))})
	}
	return out, nil
}

func (f *fakeExchange) ClosePosition(_ context.Context, instID, _ string) error {
	f.calls = append(f.calls, "close:"+instID)
	return nil
}

func (f *fakeExchange) MarginMode() string { return "cross" }

func newTestCLI(ex *fakeExchange) (*cli, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &cli{client: ex, v: viper.New(), out: out, retryMax: time.Second}, out
}

func TestProtectCancelsThenReplaces(t *testing.T) {
	ex := &fakeExchange{positions: []models.Position{{InstID: "SEI-USDT", Size: -30, MarginMode: "isolated"}}}
	c, out := newTestCLI(ex)

	require.NoError(t, c.protect(context.Background(), "SEI-USDT", 0.6, []float64{0.5, 0.45}))

	assert.Equal(t, []string{"cancel-all:SEI-USDT", "sl", "tps"}, ex.calls)
	require.Len(t, ex.pairs, 1)
	// шорт закрывается покупкой
	assert.Equal(t, models.SideBuy, ex.pairs[0].Side)
	assert.Equal(t, 30.0, ex.pairs[0].Size)
	assert.Equal(t, "isolated", ex.pairs[0].MarginMode)
	assert.Equal(t, 30.0, ex.sizeSet)
	assert.Equal(t, 30.0, ex.multiSize)
	assert.Contains(t, out.String(), "TP2")
}

func TestProtectRetriesTransientStop(t *testing.T) {
	ex := &fakeExchange{
		positions: []models.Position{{InstID: "SEI-USDT", Size: 10}},
		slErrs:    []error{models.NewExchangeError(models.ErrTransient, "/tpsl", "", "busy", 503), nil},
	}
	c, _ := newTestCLI(ex)

	require.NoError(t, c.protect(context.Background(), "SEI-USDT", 0.4, nil))
	assert.Len(t, ex.pairs, 2)
	assert.Equal(t, models.SideSell, ex.pairs[1].Side)
}

func TestProtectPermanentStopFailure(t *testing.T) {
	ex := &fakeExchange{
		positions: []models.Position{{InstID: "SEI-USDT", Size: 10}},
		slErrs:    []error{models.ErrExchangeRejection},
	}
	c, _ := newTestCLI(ex)

	err := c.protect(context.Background(), "SEI-USDT", 0.4, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNPROTECTED")
	assert.Len(t, ex.pairs, 1)
}

func TestProtectNoPosition(t *testing.T) {
	ex := &fakeExchange{}
	c, _ := newTestCLI(ex)

	assert.Error(t, c.protect(context.Background(), "SEI-USDT", 0.4, nil))
	assert.ErrorIs(t, c.protect(context.Background(), "SEI-USDT", 0, nil), errUsage)
	assert.Empty(t, ex.calls)
}

func TestStatusText(t *testing.T) {
	ex := &fakeExchange{positions: []models.Position{{InstID: "SEI-USDT", Size: 10, AvgPrice: 0.5}}}
	c, out := newTestCLI(ex)

	require.NoError(t, c.run(context.Background(), "status", nil))
	assert.Contains(t, out.String(), "equity 10.00 USDT")
	assert.Contains(t, out.String(), "SEI-USDT")
	assert.Contains(t, out.String(), "a1")
}

func TestRunCommands(t *testing.T) {
	ex := &fakeExchange{}
	c, _ := newTestCLI(ex)
	ctx := context.Background()

	require.NoError(t, c.run(ctx, "cancel", []string{"sei-usdt", "a1"}))
	require.NoError(t, c.run(ctx, "close", []string{"sei-usdt"}))
	assert.Equal(t, []string{"cancel:a1", "close:SEI-USDT"}, ex.calls)

	assert.ErrorIs(t, c.run(ctx, "cancel", []string{"x"}), errUsage)
	assert.ErrorIs(t, c.run(ctx, "nope", nil), errUsage)
}
