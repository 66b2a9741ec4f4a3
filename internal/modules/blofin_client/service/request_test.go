package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"blofin_bot/internal/models"
	"blofin_bot/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignPrehash(t *testing.T) {
	got := signPrehash("secret", "/api/v1/copytrading/account/balance", "GET", "1700000000000", "nonce-1", "")
	assert.Equal(t, "MjFjMDg0OTRiMmJmNzIzMjc2YzY1YjNhNzI0MGQwYWU3NGE5OWRmZjljZGU4NWM0M2Y5MDBlYTYyNTJkZjA2Mw==", got)

	got = signPrehash("secret", "/api/v1/copytrading/trade/place-order", "POST", "1700000000000", "nonce-1", `{"instId":"SEI-USDT"}`)
	assert.Equal(t, "N2Y5YjliYzFlMjg0YTllZmFmNTUwZDY1NjljZDE4MjYwMzQxNGQ4YzYxNWYxOTJiYWVjMDhkOTMxYTExYzgyMQ==", got)
}

func TestRequestHeaders(t *testing.T) {
	f := newFakeExchange(t)
	f.ok(balancePath, `{"totalEquity":"1000","details":[{"currency":"USDT","equity":"1000","available":"800"}]}`)
	c := newTestClient(f)

	snap, err := c.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000.0, snap.Equity)
	assert.Equal(t, 800.0, snap.Available)
	assert.Equal(t, "USDT", snap.Currency)

	reqs := f.calls(balancePath)
	require.Len(t, reqs, 1)
	h := reqs[0].Header
	assert.Equal(t, "key", h.Get("ACCESS-KEY"))
	assert.Equal(t, "pass", h.Get("ACCESS-PASSPHRASE"))
	assert.Equal(t, "1700000000000", h.Get("ACCESS-TIMESTAMP"))
	assert.Equal(t, "nonce-1", h.Get("ACCESS-NONCE"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, "MjFjMDg0OTRiMmJmNzIzMjc2YzY1YjNhNzI0MGQwYWU3NGE5OWRmZjljZGU4NWM0M2Y5MDBlYTYyNTJkZjA2Mw==", h.Get("ACCESS-SIGN"))
}

func TestGetSignsQueryString(t *testing.T) {
	f := newFakeExchange(t)
	f.ok(pendingTpSlPath, `[]`)
	c := newTestClient(f)

	_, err := c.PendingTpSl(context.Background(), "SEI-USDT")
	require.NoError(t, err)

	reqs := f.calls(pendingTpSlPath)
	require.Len(t, reqs, 1)
	assert.Equal(t, "instId=SEI-USDT", reqs[0].RawQuery)
	want := signPrehash("secret", pendingTpSlPath+"?instId=SEI-USDT", "GET", "1700000000000", "nonce-1", "")
	assert.Equal(t, want, reqs[0].Header.Get("ACCESS-SIGN"))
}

func TestPostSignsExactBody(t *testing.T) {
	f := newFakeExchange(t)
	f.ok(setLeveragePath, `{}`)
	c := newTestClient(f)

	require.NoError(t, c.SetLeverage(context.Background(), "SEI-USDT", 10, ""))

	reqs := f.calls(setLeveragePath)
	require.Len(t, reqs, 1)
	assert.Equal(t, `{"instId":"SEI-USDT","leverage":"10","marginMode":"cross"}`, reqs[0].Body)
	want := signPrehash("secret", setLeveragePath, "POST", "1700000000000", "nonce-1", reqs[0].Body)
	assert.Equal(t, want, reqs[0].Header.Get("ACCESS-SIGN"))
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		code   string
		class  error
	}{
		{"auth code", http.StatusOK, "152401", models.ErrAuth},
		{"http unauthorized", http.StatusUnauthorized, "", models.ErrAuth},
		{"rejection", http.StatusOK, "102002", models.ErrExchangeRejection},
		{"server error", http.StatusBadGateway, "", models.ErrTransient},
		{"rate limited", http.StatusTooManyRequests, "429", models.ErrTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeExchange(t)
			f.fail(balancePath, tc.status, tc.code, "boom")
			c := newTestClient(f)

			_, err := c.Balance(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.class), "got %v", err)
			assert.Equal(t, errors.Is(tc.class, models.ErrTransient), models.IsRetryable(err))

			var ee *models.ExchangeError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, tc.code, ee.Code)

			st := c.Stats()
			assert.Equal(t, int64(1), st.Calls)
			assert.Equal(t, int64(1), st.Errors)
		})
	}
}

func TestNetworkFailureIsTransient(t *testing.T) {
	f := newFakeExchange(t)
	c := newTestClient(f)
	f.srv.Close()

	_, err := c.Balance(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsRetryable(err))
}

func TestCancelledContextIsNotTransient(t *testing.T) {
	f := newFakeExchange(t)
	f.ok(balancePath, `{}`)
	c := newTestClient(f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Balance(ctx)
	require.Error(t, err)
	assert.False(t, models.IsRetryable(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMetricsCounted(t *testing.T) {
	m, err := metrics.NewRegistered()
	require.NoError(t, err)

	f := newFakeExchange(t)
	f.ok(balancePath, `{"details":[{"equity":"1","available":"1"}]}`)
	f.fail(positionsPath, http.StatusOK, "152403", "bad passphrase")
	c := newTestClient(f, WithMetrics(m))

	_, err = c.Balance(context.Background())
	require.NoError(t, err)
	_, err = c.Positions(context.Background(), "")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExchangeCalls.WithLabelValues("GET", balancePath)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExchangeErrors.WithLabelValues(positionsPath, "auth")))
}

func TestDecodeFirstAcceptsObjectAndList(t *testing.T) {
	var v struct {
		AlgoID string `json:"algoId"`
	}
	require.NoError(t, decodeFirst("/x", []byte(`{"algoId":"1"}`), &v))
	assert.Equal(t, "1", v.AlgoID)
	require.NoError(t, decodeFirst("/x", []byte(`[{"algoId":"2"}]`), &v))
	assert.Equal(t, "2", v.AlgoID)
	assert.Error(t, decodeFirst("/x", []byte(`[]`), &v))
	assert.Error(t, decodeFirst("/x", []byte(`null`), &v))
}
