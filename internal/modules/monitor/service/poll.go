package service

import (
	"context"
	"errors"
	"sort"

	"blofin_bot/internal/models"
	"blofin_bot/pkg/tracing"

	"go.uber.org/zap"
)

// ErrPollInProgress: предыдущий опрос ещё идёт, этот пропущен.
var ErrPollInProgress = errors.New("poll already in progress")

// Poll сверяет отслеживаемые заявки со списком pending на бирже.
// Если список получить не удалось, переходов нет: заявки остаются pending до следующего тика.
func (m *Monitor) Poll(ctx context.Context) (err error) {
	if !m.sem.TryAcquire(1) {
		m.mu.Lock()
		m.stats.PollSkipped++
		m.mu.Unlock()
		if m.metrics != nil {
			m.metrics.PollSkipped.Inc()
		}
		m.log.Debug("poll skipped, previous still running")
		return ErrPollInProgress
	}
	defer m.sem.Release(1)

	span, ctx := tracing.StartSpan(ctx, "monitor.Poll")
	defer func() {
		tracing.FinishWithError(span, 0, err)
		now := m.now()
		m.mu.Lock()
		m.stats.Polls++
		m.stats.LastPoll = now
		m.mu.Unlock()
		if m.onPoll != nil {
			m.onPoll(now, err)
		}
	}()

	m.mu.Lock()
	empty := len(m.tracked) == 0
	m.mu.Unlock()
	if empty {
		return nil
	}

	pending, err := m.ex.PendingTpSlIDs(ctx)
	if err != nil {
		m.mu.Lock()
		m.stats.PollErrors++
		m.mu.Unlock()
		if m.metrics != nil {
			m.metrics.PollErrors.Inc()
		}
		m.log.Warn("poll: pending list fetch failed, no transitions this cycle",
			zap.String("class", models.ErrorClass(err)),
			zap.Error(err),
		)
		return err
	}

	gone := m.missing(pending)
	settled := m.settleAmbiguous(ctx, gone)
	for _, o := range gone {
		if _, ok := settled[o.OrderID]; ok {
			continue
		}
		m.handleFill(ctx, o)
	}
	return nil
}

// settleAmbiguous разбирает символы, у которых за один опрос пропали и стоп, и тейк.
// Закрыть позицию мог только один из них; второй снят биржей. Кто сработал,
// решает последняя цена: по какую сторону от середины между стопом и ближайшим тейком.
// Возвращает id заявок, с которыми уже разобрались.
func (m *Monitor) settleAmbiguous(ctx context.Context, gone []models.TrackedOrder) map[string]struct{} {
	type group struct {
		sl  []models.TrackedOrder
		tps []models.TrackedOrder
	}
	groups := make(map[string]*group)
	for _, o := range gone {
		g, ok := groups[o.InstID]
		if !ok {
			g = &group{}
			groups[o.InstID] = g
		}
		switch {
		case o.Role == models.RoleSL:
			g.sl = append(g.sl, o)
		case o.Role.IsTakeProfit():
			g.tps = append(g.tps, o)
		}
	}

	settled := make(map[string]struct{})
	for instID, g := range groups {
		if len(g.sl) == 0 || len(g.tps) == 0 {
			continue
		}
		t, err := m.ex.Ticker(ctx, instID)
		if err != nil {
			// без цены не угадываем: сообщаем о каждой пропавшей заявке и снимаем символ
			m.log.Warn("stop and take profit gone together, price unavailable",
				zap.String("inst_id", instID), zap.Error(err))
			for _, o := range append(g.tps, g.sl...) {
				m.recordFill(ctx, o)
				settled[o.OrderID] = struct{}{}
			}
			m.dropSymbol(instID, "stop and take profit gone together")
			continue
		}
		if !takeProfitWon(g.sl[0], g.tps, t.Last) {
			// стоп: обычный порядок, тейки снимутся вместе с символом
			continue
		}
		// стоп на весь объём биржа снимает, только когда позиции больше нет
		m.log.Info("take profit closed position, stop cancelled by exchange",
			zap.String("inst_id", instID), zap.Float64("last", t.Last))
		for _, o := range g.sl {
			m.discard(o)
			settled[o.OrderID] = struct{}{}
		}
		for _, o := range g.tps {
			m.recordFill(ctx, o)
			settled[o.OrderID] = struct{}{}
		}
		m.dropSymbol(instID, "take profit closed position")
	}
	return settled
}

// takeProfitWon: цена ближе к тейку, чем к стопу. Side заявки: сторона закрывающего ордера.
func takeProfitWon(sl models.TrackedOrder, tps []models.TrackedOrder, last float64) bool {
	long := sl.Side != models.SideBuy
	nearest := tps[0].TriggerPrice
	for _, o := range tps[1:] {
		if (long && o.TriggerPrice < nearest) || (!long && o.TriggerPrice > nearest) {
			nearest = o.TriggerPrice
		}
	}
	mid := (sl.TriggerPrice + nearest) / 2
	if long {
		return last >= mid
	}
	return last <= mid
}

// missing: отслеживаемые заявки, которых нет в pending. Стопы идут первыми,
// тейки по порядку постановки.
func (m *Monitor) missing(pending map[string]struct{}) []models.TrackedOrder {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.TrackedOrder
	for id, o := range m.tracked {
		if _, ok := pending[id]; ok {
			continue
		}
		if _, done := m.notified[id]; done {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].Role == models.RoleSL, out[j].Role == models.RoleSL
		if si != sj {
			return si
		}
		if !out[i].TrackedSince.Equal(out[j].TrackedSince) {
			return out[i].TrackedSince.Before(out[j].TrackedSince)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out
}

func (m *Monitor) handleFill(ctx context.Context, o models.TrackedOrder) {
	if !m.recordFill(ctx, o) {
		return
	}
	if o.Role == models.RoleSL {
		m.dropSymbol(o.InstID, "stop loss filled")
		return
	}
	if m.hasCascade(o.InstID) {
		m.placeNext(ctx, o.InstID)
		return
	}
	m.dropStopIfFlat(o.InstID)
}

// recordFill снимает заявку с наблюдения и рассылает событие исполнения.
// false: заявку уже сняли раньше в этом же цикле (закрытие по стопу).
func (m *Monitor) recordFill(ctx context.Context, o models.TrackedOrder) bool {
	m.mu.Lock()
	if _, still := m.tracked[o.OrderID]; !still {
		m.mu.Unlock()
		return false
	}
	delete(m.tracked, o.OrderID)
	m.notified[o.OrderID] = struct{}{}
	m.stats.Fills++
	m.gaugesLocked()
	m.mu.Unlock()

	m.ex.ReleaseTpSl(o.InstID, o.OrderID)

	pnl := o.Pnl()
	ev := models.FillEvent{
		OrderID:      o.OrderID,
		InstID:       o.InstID,
		Role:         o.Role,
		TriggerPrice: o.TriggerPrice,
		Size:         o.Size,
		Pnl:          pnl,
		IsProfit:     pnl > 0,
		At:           m.now(),
	}
	if m.metrics != nil {
		m.metrics.Fills.WithLabelValues(string(o.Role)).Inc()
	}
	m.log.Info("order filled",
		zap.String("order_id", o.OrderID),
		zap.String("inst_id", o.InstID),
		zap.String("role", string(o.Role)),
		zap.Float64("trigger", o.TriggerPrice),
		zap.Float64("pnl", pnl),
	)
	if err := m.notifier.NotifyFill(ctx, ev); err != nil {
		m.log.Warn("notify fill", zap.String("order_id", o.OrderID), zap.Error(err))
	}
	return true
}

// discard снимает заявку без уведомления: её отменила биржа, а не исполнение.
func (m *Monitor) discard(o models.TrackedOrder) {
	m.mu.Lock()
	_, still := m.tracked[o.OrderID]
	delete(m.tracked, o.OrderID)
	m.notified[o.OrderID] = struct{}{}
	m.gaugesLocked()
	m.mu.Unlock()
	if still {
		m.ex.ReleaseTpSl(o.InstID, o.OrderID)
	}
}

// dropSymbol снимает с наблюдения всё по символу: позиции больше нет,
// оставшиеся заявки биржа отменит сама, и это не исполнения.
func (m *Monitor) dropSymbol(instID, reason string) {
	m.mu.Lock()
	var ids []string
	for id, o := range m.tracked {
		if o.InstID != instID {
			continue
		}
		delete(m.tracked, id)
		m.notified[id] = struct{}{}
		ids = append(ids, id)
	}
	_, hadCascade := m.cascades[instID]
	delete(m.cascades, instID)
	m.gaugesLocked()
	m.mu.Unlock()

	// покрытие в клиенте иначе переживёт позицию и заблокирует защиту следующей сделки
	for _, id := range ids {
		m.ex.ReleaseTpSl(instID, id)
	}
	if len(ids) > 0 || hadCascade {
		m.log.Info("symbol untracked",
			zap.String("inst_id", instID),
			zap.String("reason", reason),
			zap.Int("orders", len(ids)),
			zap.Bool("cascade", hadCascade),
		)
	}
}

// dropStopIfFlat: все тейки исполнены и каскад пуст, значит позиция закрыта
// тейками и стоп пропадёт из pending без срабатывания.
func (m *Monitor) dropStopIfFlat(instID string) {
	m.mu.Lock()
	for _, o := range m.tracked {
		if o.InstID == instID && o.Role.IsTakeProfit() {
			m.mu.Unlock()
			return
		}
	}
	if _, ok := m.cascades[instID]; ok {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.dropSymbol(instID, "all take profits filled")
}

func (m *Monitor) hasCascade(instID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.cascades[instID]
	return ok
}
