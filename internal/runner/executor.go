package runner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"blofin_bot/internal/models"
	"blofin_bot/internal/notify"
	"blofin_bot/pkg/metrics"
	"blofin_bot/pkg/tracing"

	"go.uber.org/zap"
)

const positionEps = 1e-9

type Config struct {
	RiskPct         float64
	DefaultLeverage int
	MaxLeverage     int
	MarginMode      string
	SetLeverage     bool
	// CloseOnUnprotected: если стоп не встал, закрыть позицию рыночным ордером.
	CloseOnUnprotected bool
}

type Stats struct {
	Executed    int64   `json:"executed"`
	Partial     int64   `json:"partial"`
	Unprotected int64   `json:"unprotected"`
	Failed      int64   `json:"failed"`
	TotalRisk   float64 `json:"totalRisk"`
}

// Executor проводит сигнал через вход, стоп и тейки. Шаги строго последовательные,
// ошибка шага останавливает остальные, а результат показывает, что уже сделано.
type Executor struct {
	ex       Exchange
	sizer    *Sizer
	tracker  Tracker
	notifier notify.Notifier
	cfg      Config
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu    sync.Mutex
	stats Stats
}

func NewExecutor(
	ex Exchange,
	tracker Tracker,
	n notify.Notifier,
	cfg Config,
	log *zap.Logger,
	m *metrics.Metrics,
) *Executor {
	if n == nil {
		n = notify.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		ex:       ex,
		sizer:    NewSizer(ex, log),
		tracker:  tracker,
		notifier: n,
		cfg:      cfg,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Execute исполняет сигнал. Результат возвращается всегда: по Status видно,
// открыта ли позиция и защищена ли она. executed_unprotected никогда не
// сворачивается в executed.
func (e *Executor) Execute(ctx context.Context, sig models.TradeSignal) (res *models.ExecutionResult, err error) {
	span, ctx := tracing.StartSpan(ctx, "runner.Execute")
	sig.Symbol = strings.ToUpper(strings.TrimSpace(sig.Symbol))
	side, _ := models.NormalizeSide(sig.Side)
	res = &models.ExecutionResult{
		SignalID:  sig.SignalID,
		InstID:    sig.Symbol,
		Side:      side,
		Status:    models.StatusNotExecuted,
		StartedAt: e.now(),
	}
	defer func() {
		tracing.FinishWithError(span, 0, err)
		e.finish(ctx, res)
	}()

	if err = sig.Validate(); err != nil {
		return res, e.fail(ctx, res, models.StageValidate, err)
	}

	spec, err := e.ex.GetInstrument(ctx, sig.Symbol)
	if err != nil {
		return res, e.fail(ctx, res, models.StageValidate, err)
	}
	res.InstID = spec.InstID

	entry, err := e.entryPrice(ctx, sig)
	if err != nil {
		return res, e.fail(ctx, res, models.StageValidate, err)
	}
	if sig.EntryPrice == 0 {
		// рыночная цена могла уже пройти стоп или тейк
		sig.EntryPrice = entry
		if err = sig.Validate(); err != nil {
			return res, e.fail(ctx, res, models.StageValidate, err)
		}
	}
	res.EntryPrice = entry

	tps := takeProfitLadder(sig, entry, spec.TickSize)
	lev := e.leverage(sig)
	margin := e.marginMode(sig)
	dir := sig.Direction()
	closeSide := models.CloseSide(dir)

	var sizing models.SizingResult
	if sig.Size > 0 {
		sizing, err = fixedSize(spec, sig.Size, entry, lev)
	} else {
		riskPct := sig.RiskPct
		if riskPct <= 0 {
			riskPct = e.cfg.RiskPct
		}
		sizing, err = e.sizer.Size(ctx, spec.InstID, entry, sig.StopLoss, riskPct, lev)
	}
	if err != nil {
		return res, e.fail(ctx, res, models.StageSizing, err)
	}
	res.Sizing = &sizing
	contracts := sizing.Contracts

	if e.cfg.SetLeverage {
		if lerr := e.ex.SetLeverage(ctx, spec.InstID, lev, margin); lerr != nil {
			e.log.Warn("set leverage failed, continuing",
				zap.String("inst_id", spec.InstID),
				zap.Int("leverage", lev),
				zap.Error(lerr),
			)
			res.Warn(fmt.Sprintf("set leverage %dx: %v", lev, lerr))
		}
	}

	order, err := e.ex.PlaceOrder(ctx, models.OrderRequest{
		InstID:     spec.InstID,
		Side:       side,
		Kind:       models.KindMarket,
		Size:       contracts,
		MarginMode: margin,
	})
	if err != nil {
		return res, e.fail(ctx, res, models.StageEntry, err)
	}
	res.EntryOrderID = order.OrderID
	res.Status = models.StatusUnprotected
	e.syncPositionSize(ctx, spec.InstID, contracts)

	e.mu.Lock()
	e.stats.TotalRisk += sizing.RiskAmount
	e.mu.Unlock()

	sl, err := e.ex.SetTpSlPair(ctx, models.OrderRequest{
		InstID:     spec.InstID,
		Side:       closeSide,
		Kind:       models.KindTpSl,
		SlTrigger:  sig.StopLoss,
		Size:       contracts,
		MarginMode: margin,
	})
	if err != nil {
		err = e.fail(ctx, res, models.StageStopLoss, err)
		e.closeUnprotected(ctx, res, margin)
		return res, err
	}
	res.StopLoss = &sl
	e.track(sl, models.RoleSL, sl.SlTrigger, contracts, closeSide, entry)

	if sig.Cascade && len(tps) > 1 {
		err = e.placeCascade(ctx, res, sig, tps, closeSide, margin, contracts, entry)
	} else {
		err = e.placeTakeProfits(ctx, res, tps, closeSide, margin, contracts, entry)
	}
	if err != nil {
		res.Status = models.StatusPartial
		return res, e.fail(ctx, res, models.StageTakeProfit, err)
	}

	res.Status = models.StatusExecuted
	return res, nil
}

// syncPositionSize задаёт лимит покрытия TP/SL по фактической позиции после входа.
// Если позиция равна только что купленному, символ был пуст: прежнее покрытие
// осталось от закрытой позиции и сбрасывается. Добор к открытой позиции
// расширяет лимит, старые пары продолжают считаться.
func (e *Executor) syncPositionSize(ctx context.Context, instID string, contracts float64) {
	positions, err := e.ex.Positions(ctx, instID)
	net := 0.0
	for _, p := range positions {
		if p.InstID == instID {
			net += p.Size
		}
	}
	size := math.Abs(net)
	if err != nil || size == 0 {
		_, _, prev := e.ex.Coverage(instID)
		e.log.Warn("position not visible after entry, extending coverage limit",
			zap.String("inst_id", instID),
			zap.Float64("previous", prev),
			zap.Float64("contracts", contracts),
			zap.Error(err),
		)
		e.ex.SetPositionSize(instID, prev+contracts)
		return
	}
	if size <= contracts+positionEps {
		e.ex.ResetCoverage(instID)
	}
	e.ex.SetPositionSize(instID, size)
}

// placeTakeProfits: тейки без стопа, делёжка по уровням (или один уровень, если делить нечего).
func (e *Executor) placeTakeProfits(
	ctx context.Context,
	res *models.ExecutionResult,
	tps []float64,
	closeSide, margin string,
	contracts, entry float64,
) error {
	placed, err := e.ex.SetMultipleTpSl(ctx, res.InstID, closeSide, contracts, 0, tps, margin)
	for _, tp := range placed {
		res.TakeProfits = append(res.TakeProfits, tp)
		e.track(tp, models.TPRole(tp.Level), tp.TpTrigger, tp.Size, closeSide, entry)
	}
	if err == nil && len(placed) == 0 {
		return fmt.Errorf("%w: no take profit placed", models.ErrExchangeRejection)
	}
	return err
}

// placeCascade ставит первый TP парой со стопом на долю позиции, остальные уровни
// уходят в очередь монитора и выставляются после срабатывания предыдущего.
func (e *Executor) placeCascade(
	ctx context.Context,
	res *models.ExecutionResult,
	sig models.TradeSignal,
	tps []float64,
	closeSide, margin string,
	contracts, entry float64,
) error {
	n := len(tps)
	per := contracts / float64(n)

	first, err := e.ex.SetTpSlPair(ctx, models.OrderRequest{
		InstID:     res.InstID,
		Side:       closeSide,
		Kind:       models.KindTpSl,
		TpTrigger:  tps[0],
		SlTrigger:  sig.StopLoss,
		Size:       cascadeFraction(0, n),
		MarginMode: margin,
	})
	if err != nil {
		return err
	}
	first.Level = 1
	res.TakeProfits = append(res.TakeProfits, first)
	e.track(first, models.RoleTP1, first.TpTrigger, per, closeSide, entry)

	queue := make([]models.CascadeLevel, 0, n-1)
	for i := 1; i < n; i++ {
		est := per
		if i == n-1 {
			est = contracts - per*float64(n-1)
		}
		queue = append(queue, models.CascadeLevel{
			Price:     tps[i],
			Size:      cascadeFraction(i, n),
			Contracts: est,
			Role:      models.TPRole(i + 1),
		})
	}
	if e.tracker != nil {
		e.tracker.SetupCascade(models.CascadeConfig{
			InstID:     res.InstID,
			EntryPrice: entry,
			SLPrice:    sig.StopLoss,
			MarginMode: margin,
			CloseSide:  closeSide,
			Queue:      queue,
		})
	}
	res.Cascading = true
	return nil
}

func (e *Executor) track(r models.TpSlResult, role models.OrderRole, trigger, size float64, closeSide string, entry float64) {
	if e.tracker == nil || r.AlgoID == "" {
		return
	}
	e.tracker.Track(models.TrackedOrder{
		OrderID:      r.AlgoID,
		InstID:       r.InstID,
		Role:         role,
		TriggerPrice: trigger,
		Size:         size,
		Side:         closeSide,
		EntryPrice:   entry,
		TrackedSince: e.now(),
	})
}

// closeUnprotected: компенсирующее закрытие позиции без стопа, если включено.
func (e *Executor) closeUnprotected(ctx context.Context, res *models.ExecutionResult, margin string) {
	if !e.cfg.CloseOnUnprotected {
		return
	}
	if err := e.ex.ClosePosition(ctx, res.InstID, margin); err != nil {
		e.log.Error("close unprotected position failed",
			zap.String("inst_id", res.InstID),
			zap.Error(err),
		)
		res.Warn(fmt.Sprintf("close position: %v", err))
		return
	}
	res.Closed = true
	e.log.Warn("unprotected position closed", zap.String("inst_id", res.InstID))
}

// fail записывает ошибку шага в результат и отправляет событие. Возвращает ту же ошибку.
func (e *Executor) fail(ctx context.Context, res *models.ExecutionResult, stage models.FailureStage, err error) error {
	if res.Error == "" {
		res.Error = err.Error()
	}
	unprotected := res.Status == models.StatusUnprotected
	e.log.Warn("execution step failed",
		zap.String("signal_id", res.SignalID),
		zap.String("inst_id", res.InstID),
		zap.String("stage", string(stage)),
		zap.String("class", models.ErrorClass(err)),
		zap.Bool("unprotected", unprotected),
		zap.Error(err),
	)
	ev := models.FailureEvent{
		SignalID:    res.SignalID,
		InstID:      res.InstID,
		Stage:       stage,
		Class:       models.ErrorClass(err),
		Message:     err.Error(),
		Unprotected: unprotected,
		At:          e.now(),
	}
	if nerr := e.notifier.NotifyFailure(ctx, ev); nerr != nil {
		e.log.Warn("notify failure", zap.Error(nerr))
	}
	return err
}

func (e *Executor) finish(ctx context.Context, res *models.ExecutionResult) {
	res.FinishedAt = e.now()

	e.mu.Lock()
	switch res.Status {
	case models.StatusExecuted:
		e.stats.Executed++
	case models.StatusPartial:
		e.stats.Partial++
	case models.StatusUnprotected:
		e.stats.Unprotected++
	default:
		e.stats.Failed++
	}
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.Executions.WithLabelValues(string(res.Status)).Inc()
	}
	if err := e.notifier.NotifyExecution(ctx, res); err != nil && !errors.Is(err, context.Canceled) {
		e.log.Warn("notify execution", zap.Error(err))
	}
}
