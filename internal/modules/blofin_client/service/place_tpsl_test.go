package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"blofin_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// algoIDs отвечает на place-tpsl последовательными algoId.
func algoIDs(f *fakeExchange) {
	var n atomic.Int64
	f.handle(placeTpSlPath, func(recordedRequest) (int, string) {
		id := n.Add(1)
		return http.StatusOK, fmt.Sprintf(`{"code":"0","msg":"","data":{"algoId":"algo-%d"}}`, id)
	})
}

func TestSetTpSlPairBody(t *testing.T) {
	f := newFakeExchange(t)
	algoIDs(f)
	c := newTestClient(f)

	res, err := c.SetTpSlPair(context.Background(), models.OrderRequest{
		InstID:    "SEI-USDT",
		Side:      "sell",
		TpTrigger: 0.55123456789,
		SlTrigger: 0.45,
		Size:      12.4,
	})
	require.NoError(t, err)
	assert.Equal(t, "algo-1", res.AlgoID)
	assert.Equal(t, 12.0, res.Size)

	reqs := f.calls(placeTpSlPath)
	require.Len(t, reqs, 1)
	assert.Equal(t,
		`{"instId":"SEI-USDT","marginMode":"cross","positionSide":"long","tpTriggerPrice":"0.551235","slTriggerPrice":"0.45","size":"12"}`,
		reqs[0].Body)
}

func TestSetStopLossRoundsUpToWholeContracts(t *testing.T) {
	f := newFakeExchange(t)
	algoIDs(f)
	c := newTestClient(f)

	res, err := c.SetStopLoss(context.Background(), "BTC-USDT", "buy", 70000, 1.26)
	require.NoError(t, err)
	// 1.26 -> лот 1.3 -> целые 2
	assert.Equal(t, 2.0, res.Size)
	assert.Equal(t,
		`{"instId":"BTC-USDT","marginMode":"cross","positionSide":"short","tpTriggerPrice":"","slTriggerPrice":"70000","size":"2"}`,
		f.calls(placeTpSlPath)[0].Body)
}

func TestSetTpSlPairFractionPassthrough(t *testing.T) {
	f := newFakeExchange(t)
	algoIDs(f)
	c := newTestClient(f)
	c.SetPositionSize("SEI-USDT", 10)

	for _, frac := range []float64{-0.33, -0.5, -1} {
		res, err := c.SetTpSlPair(context.Background(), models.OrderRequest{
			InstID: "SEI-USDT", Side: "sell", TpTrigger: 0.6, SlTrigger: 0.4, Size: frac,
		})
		require.NoError(t, err)
		assert.Equal(t, frac, res.Size)
	}

	reqs := f.calls(placeTpSlPath)
	require.Len(t, reqs, 3)
	assert.Contains(t, reqs[0].Body, `"size":"-0.33"`)
	assert.Contains(t, reqs[1].Body, `"size":"-0.5"`)
	assert.Contains(t, reqs[2].Body, `"size":"-1"`)

	// доли не учитываются в покрытии
	tp, sl, _ := c.Coverage("SEI-USDT")
	assert.Zero(t, tp)
	assert.Zero(t, sl)

	_, err := c.SetTpSlPair(context.Background(), models.OrderRequest{
		InstID: "SEI-USDT", Side: "sell", TpTrigger: 0.6, Size: -1.5,
	})
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestSetTpSlPairCoverage(t *testing.T) {
	f := newFakeExchange(t)
	algoIDs(f)
	c := newTestClient(f)
	ctx := context.Background()
	c.SetPositionSize("SEI-USDT", 10)

	_, err := c.SetStopLoss(ctx, "SEI-USDT", "sell", 0.4, 10)
	require.NoError(t, err)
	tp1, err := c.SetTakeProfit(ctx, "SEI-USDT", "sell", 0.6, 6)
	require.NoError(t, err)

	// второй стоп на ту же часть позиции
	_, err = c.SetStopLoss(ctx, "SEI-USDT", "sell", 0.41, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDuplicateTpSl))

	// тейков уже 6 из 10, ещё 5 не влезает
	_, err = c.SetTakeProfit(ctx, "SEI-USDT", "sell", 0.7, 5)
	assert.True(t, errors.Is(err, models.ErrDuplicateTpSl))
	assert.Len(t, f.calls(placeTpSlPath), 2)

	tp, sl, limit := c.Coverage("SEI-USDT")
	assert.Equal(t, 6.0, tp)
	assert.Equal(t, 10.0, sl)
	assert.Equal(t, 10.0, limit)

	// после срабатывания TP1 место освобождается
	c.ReleaseTpSl("SEI-USDT", tp1.AlgoID)
	_, err = c.SetTakeProfit(ctx, "SEI-USDT", "sell", 0.7, 5)
	require.NoError(t, err)
}

func TestSetTpSlPairFailureRollsBackReservation(t *testing.T) {
	f := newFakeExchange(t)
	f.fail(placeTpSlPath, http.StatusOK, "102050", "trigger price invalid")
	c := newTestClient(f)
	c.SetPositionSize("SEI-USDT", 10)

	_, err := c.SetStopLoss(context.Background(), "SEI-USDT", "sell", 0.4, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrExchangeRejection))
	assert.False(t, errors.Is(err, models.ErrDuplicateTpSl))

	_, sl, _ := c.Coverage("SEI-USDT")
	assert.Zero(t, sl)
	assert.Equal(t, int64(1), c.Stats().OrdersFailed)
}

func TestSetTpSlPairValidation(t *testing.T) {
	f := newFakeExchange(t)
	c := newTestClient(f)
	ctx := context.Background()

	_, err := c.SetTpSlPair(ctx, models.OrderRequest{InstID: "SEI-USDT", Side: "sell", Size: 1})
	assert.True(t, errors.Is(err, models.ErrInvalidParameters))

	_, err = c.SetTpSlPair(ctx, models.OrderRequest{InstID: "SEI-USDT", Side: "sell", TpTrigger: 1})
	assert.True(t, errors.Is(err, models.ErrInvalidParameters))

	_, err = c.SetTpSlPair(ctx, models.OrderRequest{InstID: "SEI-USDT", Side: "flat", TpTrigger: 1, Size: 1})
	assert.True(t, errors.Is(err, models.ErrInvalidParameters))
	assert.Empty(t, f.calls(placeTpSlPath))
}

func TestCancelTpSlAndCancelAll(t *testing.T) {
	f := newFakeExchange(t)
	algoIDs(f)
	f.ok(pendingTpSlPath, `[
		{"algoId":"algo-1","instId":"SEI-USDT","tpTriggerPrice":"0.6","size":"5"},
		{"algoId":"algo-2","instId":"SEI-USDT","slTriggerPrice":"0.4","size":"10"}
	]`)
	f.ok(cancelTpSlPath, `[{"algoId":"x","code":"0"}]`)
	c := newTestClient(f)
	ctx := context.Background()
	c.SetPositionSize("SEI-USDT", 10)

	_, err := c.SetTakeProfit(ctx, "SEI-USDT", "sell", 0.6, 5)
	require.NoError(t, err)
	_, err = c.SetStopLoss(ctx, "SEI-USDT", "sell", 0.4, 10)
	require.NoError(t, err)

	require.NoError(t, c.CancelTpSl(ctx, "SEI-USDT", "algo-1"))
	tp, sl, _ := c.Coverage("SEI-USDT")
	assert.Zero(t, tp)
	assert.Equal(t, 10.0, sl)
	assert.Equal(t, `{"algoId":"algo-1"}`, f.calls(cancelTpSlPath)[0].Body)

	n, err := c.CancelAllTpSl(ctx, "SEI-USDT")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	tp, sl, limit := c.Coverage("SEI-USDT")
	assert.Zero(t, tp)
	assert.Zero(t, sl)
	assert.Zero(t, limit)

	ids, err := c.PendingTpSlIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "algo-1")
	assert.Contains(t, ids, "algo-2")
}
