package runner

import (
	"context"
	"fmt"
	"sync"

	"blofin_bot/internal/models"
)

// fakeExchange: биржа в памяти для исполнителя.
type fakeExchange struct {
	mu sync.Mutex

	equity    float64
	available float64
	spec      models.InstrumentSpec
	ticker    models.Ticker

	balanceErr  error
	leverageErr error
	entryErr    error
	slErr       error
	tpErr       error
	closeErr    error
	// positionsErr: Positions недоступен
	positionsErr error

	orders       []models.OrderRequest
	pairs        []models.OrderRequest
	multi        []multiCall
	leverage     []int
	closed       []string
	positionSize map[string]float64
	// open: нетто-позиция по символу, растёт от входов
	open   map[string]float64
	resets []string
	nextID int
}

type multiCall struct {
	InstID    string
	CloseSide string
	Total     float64
	SL        float64
	TPs       []float64
	Margin    string
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		equity:       1000,
		available:    800,
		spec:         models.InstrumentSpec{InstID: "SEI-USDT", MinSize: 1, LotSize: 1, TickSize: 0.0001, ContractValue: 1},
		positionSize: map[string]float64{},
		open:         map[string]float64{},
	}
}

func (f *fakeExchange) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeExchange) Balance(context.Context) (models.AccountSnapshot, error) {
	if f.balanceErr != nil {
		return models.AccountSnapshot{}, f.balanceErr
	}
	return models.AccountSnapshot{Equity: f.equity, Available: f.available, Currency: "USDT"}, nil
}

func (f *fakeExchange) GetInstrument(_ context.Context, instID string) (models.InstrumentSpec, error) {
	spec := f.spec
	spec.InstID = instID
	return spec, nil
}

func (f *fakeExchange) Ticker(_ context.Context, instID string) (models.Ticker, error) {
	t := f.ticker
	t.InstID = instID
	return t, nil
}

func (f *fakeExchange) SetLeverage(_ context.Context, _ string, leverage int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leverage = append(f.leverage, leverage)
	return f.leverageErr
}

func (f *fakeExchange) PlaceOrder(_ context.Context, req models.OrderRequest) (models.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, req)
	if f.entryErr != nil {
		return models.OrderResult{}, f.entryErr
	}
	if req.Side == models.SideSell {
		f.open[req.InstID] -= req.Size
	} else {
		f.open[req.InstID] += req.Size
	}
	return models.OrderResult{OrderID: f.id("ord"), InstID: req.InstID, Side: req.Side, Kind: req.Kind, Size: req.Size}, nil
}

func (f *fakeExchange) SetTpSlPair(_ context.Context, req models.OrderRequest) (models.TpSlResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs = append(f.pairs, req)
	if req.TpTrigger == 0 && f.slErr != nil {
		return models.TpSlResult{}, f.slErr
	}
	if req.TpTrigger > 0 && f.tpErr != nil {
		return models.TpSlResult{}, f.tpErr
	}
	return models.TpSlResult{
		AlgoID:    f.id("algo"),
		InstID:    req.InstID,
		CloseSide: req.Side,
		TpTrigger: req.TpTrigger,
		SlTrigger: req.SlTrigger,
		Size:      req.Size,
	}, nil
}

func (f *fakeExchange) SetMultipleTpSl(
	_ context.Context,
	instID, closeSide string,
	totalSize, slPrice float64,
	tpPrices []float64,
	marginMode string,
) ([]models.TpSlResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.multi = append(f.multi, multiCall{instID, closeSide, totalSize, slPrice, tpPrices, marginMode})
	if f.tpErr != nil {
		return nil, f.tpErr
	}
	per := totalSize / float64(len(tpPrices))
	out := make([]models.TpSlResult, 0, len(tpPrices))
	for i, p := range tpPrices {
		out = append(out, models.TpSlResult{
			AlgoID: f.id("algo"), InstID: instID, CloseSide: closeSide, TpTrigger: p, Size: per, Level: i + 1,
		})
	}
	return out, nil
}

func (f *fakeExchange) Positions(_ context.Context, instID string) ([]models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.positionsErr != nil {
		return nil, f.positionsErr
	}
	sz, ok := f.open[instID]
	if !ok || sz == 0 {
		return nil, nil
	}
	return []models.Position{{InstID: instID, Size: sz}}, nil
}

func (f *fakeExchange) SetPositionSize(instID string, size float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positionSize[instID] = size
}

func (f *fakeExchange) Coverage(instID string) (float64, float64, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return 0, 0, f.positionSize[instID]
}

func (f *fakeExchange) ResetCoverage(instID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, instID)
	delete(f.positionSize, instID)
}

func (f *fakeExchange) ClosePosition(_ context.Context, instID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, instID)
	return f.closeErr
}

type fakeTracker struct {
	orders   []models.TrackedOrder
	cascades []models.CascadeConfig
}

func (t *fakeTracker) Track(o models.TrackedOrder)           { t.orders = append(t.orders, o) }
func (t *fakeTracker) SetupCascade(cfg models.CascadeConfig) { t.cascades = append(t.cascades, cfg) }

type fakeNotifier struct {
	failures []models.FailureEvent
	results  []*models.ExecutionResult
}

func (n *fakeNotifier) NotifyExecution(_ context.Context, r *models.ExecutionResult) error {
	n.results = append(n.results, r)
	return nil
}

func (n *fakeNotifier) NotifyFill(context.Context, models.FillEvent) error { return nil }

func (n *fakeNotifier) NotifyFailure(_ context.Context, ev models.FailureEvent) error {
	n.failures = append(n.failures, ev)
	return nil
}
