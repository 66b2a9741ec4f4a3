package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"blofin_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLevels(t *testing.T) {
	whole := models.InstrumentSpec{MinSize: 1, LotSize: 1}
	frac := models.InstrumentSpec{MinSize: 0.1, LotSize: 0.1}
	odd := models.InstrumentSpec{MinSize: 1.5, LotSize: 1.5}

	cases := []struct {
		name  string
		spec  models.InstrumentSpec
		total float64
		n     int
		want  []float64
	}{
		{"even", whole, 9, 3, []float64{3, 3, 3}},
		{"remainder to last", whole, 10, 3, []float64{3, 3, 4}},
		{"collapse below min", whole, 2, 3, []float64{2}},
		{"single level", whole, 5, 1, []float64{5}},
		{"fractional lot splits by whole contracts", frac, 10, 3, []float64{3, 3, 4}},
		{"fractional remainder", frac, 10.5, 3, []float64{3, 3, 4.5}},
		{"fractional below one contract", frac, 1, 3, []float64{1}},
		{"fractional collapse", frac, 0.2, 3, []float64{0.2}},
		{"rounded parts exceed total", odd, 4.5, 3, []float64{4.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitLevels(tc.spec, tc.total, tc.n)
			require.Len(t, got, len(tc.want))
			for i := range got {
				assert.InDelta(t, tc.want[i], got[i], 1e-12)
			}
		})
	}
}

func TestSetMultipleTpSlSplits(t *testing.T) {
	f := newFakeExchange(t)
	algoIDs(f)
	c := newTestClient(f)
	c.SetPositionSize("SEI-USDT", 10)

	res, err := c.SetMultipleTpSl(context.Background(), "SEI-USDT", "sell", 10, 0, []float64{0.6, 0.7, 0.8}, "")
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{res[0].Level, res[1].Level, res[2].Level})
	assert.Equal(t, []float64{3, 3, 4}, []float64{res[0].Size, res[1].Size, res[2].Size})

	reqs := f.calls(placeTpSlPath)
	require.Len(t, reqs, 3)
	assert.Contains(t, reqs[2].Body, `"tpTriggerPrice":"0.8","slTriggerPrice":"","size":"4"`)

	tp, sl, _ := c.Coverage("SEI-USDT")
	assert.Equal(t, 10.0, tp)
	assert.Zero(t, sl)
}

func TestSetMultipleTpSlCollapses(t *testing.T) {
	f := newFakeExchange(t)
	algoIDs(f)
	c := newTestClient(f)

	res, err := c.SetMultipleTpSl(context.Background(), "SEI-USDT", "buy", 2, 0.55, []float64{0.45, 0.4, 0.35}, "isolated")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 0.45, res[0].TpTrigger)
	assert.Equal(t, 0.55, res[0].SlTrigger)
	assert.Equal(t, 2.0, res[0].Size)

	reqs := f.calls(placeTpSlPath)
	require.Len(t, reqs, 1)
	assert.Equal(t,
		`{"instId":"SEI-USDT","marginMode":"isolated","positionSide":"short","tpTriggerPrice":"0.45","slTriggerPrice":"0.55","size":"2"}`,
		reqs[0].Body)
}

func TestSetMultipleTpSlFractionalLotKeepsCoverage(t *testing.T) {
	f := newFakeExchange(t)
	algoIDs(f)
	c := newTestClient(f)
	ctx := context.Background()
	c.SetPositionSize("BTC-USDT", 1)

	res, err := c.SetMultipleTpSl(ctx, "BTC-USDT", "sell", 1, 0, []float64{100, 110, 120}, "")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 1.0, res[0].Size)

	reqs := f.calls(placeTpSlPath)
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Body, `"tpTriggerPrice":"100","slTriggerPrice":"","size":"1"`)

	tp, _, _ := c.Coverage("BTC-USDT")
	assert.Equal(t, 1.0, tp)

	// 0.3 уходит на биржу целым контрактом, места больше нет
	_, err = c.SetTakeProfit(ctx, "BTC-USDT", "sell", 130, 0.3)
	assert.True(t, errors.Is(err, models.ErrDuplicateTpSl))
	assert.Len(t, f.calls(placeTpSlPath), 1)
}

func TestSetMultipleTpSlFractionalPosition(t *testing.T) {
	f := newFakeExchange(t)
	algoIDs(f)
	c := newTestClient(f)
	c.SetPositionSize("BTC-USDT", 10.5)

	res, err := c.SetMultipleTpSl(context.Background(), "BTC-USDT", "buy", 10.5, 0, []float64{90, 80, 70}, "")
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []float64{3, 3, 5}, []float64{res[0].Size, res[1].Size, res[2].Size})

	tp, _, limit := c.Coverage("BTC-USDT")
	assert.Equal(t, 11.0, tp)
	assert.Equal(t, 10.5, limit)
}

func TestSetMultipleTpSlPartialFailure(t *testing.T) {
	f := newFakeExchange(t)
	f.handle(placeTpSlPath, func(r recordedRequest) (int, string) {
		if strings.Contains(r.Body, `"tpTriggerPrice":"0.7"`) {
			return http.StatusOK, `{"code":"102050","msg":"bad trigger","data":null}`
		}
		return http.StatusOK, fmt.Sprintf(`{"code":"0","data":{"algoId":"ok-%d"}}`, len(r.Body))
	})
	c := newTestClient(f)

	res, err := c.SetMultipleTpSl(context.Background(), "SEI-USDT", "sell", 9, 0, []float64{0.6, 0.7, 0.8}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrExchangeRejection))
	assert.Contains(t, err.Error(), "TP2")
	require.Len(t, res, 2)
	assert.Equal(t, 1, res[0].Level)
	assert.Equal(t, 3, res[1].Level)
}

func TestSetMultipleTpSlNoPrices(t *testing.T) {
	f := newFakeExchange(t)
	c := newTestClient(f)
	_, err := c.SetMultipleTpSl(context.Background(), "SEI-USDT", "sell", 9, 0, []float64{0, 0}, "")
	assert.True(t, errors.Is(err, models.ErrInvalidParameters))
}
