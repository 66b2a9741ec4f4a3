package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"blofin_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	mu      sync.Mutex
	loadErr error
	unknown string
	seen    []string
}

func (f *fakeSource) LoadInstruments(context.Context) error { return f.loadErr }

func (f *fakeSource) GetInstrument(_ context.Context, instID string) (models.InstrumentSpec, error) {
	f.mu.Lock()
	f.seen = append(f.seen, instID)
	f.mu.Unlock()
	if instID == f.unknown {
		return models.InstrumentSpec{}, models.ErrInvalidParameters
	}
	return models.InstrumentSpec{InstID: instID, LotSize: 1, TickSize: 0.01}, nil
}

func (f *fakeSource) Ticker(_ context.Context, instID string) (models.Ticker, error) {
	return models.Ticker{InstID: instID, Last: 1}, nil
}

func TestWarmupAllSymbols(t *testing.T) {
	src := &fakeSource{}
	n, err := NewWarmuper(src, zap.NewNop()).Warmup(context.Background(), []string{"btc-usdt", " eth-usdt ", ""})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"BTC-USDT", "ETH-USDT"}, src.seen)
}

func TestWarmupUnknownSymbol(t *testing.T) {
	src := &fakeSource{unknown: "NOPE-USDT"}
	_, err := NewWarmuper(src, zap.NewNop()).Warmup(context.Background(), []string{"NOPE-USDT"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestWarmupLoadFails(t *testing.T) {
	src := &fakeSource{loadErr: errors.New("down")}
	n, err := NewWarmuper(src, zap.NewNop()).Warmup(context.Background(), []string{"BTC-USDT"})
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.Empty(t, src.seen)
}
