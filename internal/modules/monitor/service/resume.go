package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"sort"
	"time"

	"blofin_bot/internal/models"

	"go.uber.org/zap"
)

func positionDirection(p models.Position) string {
	if p.PositionSide == models.DirShort {
		return models.DirShort
	}
	return p.Direction()
}

// Resume восстанавливает наблюдение после рестарта по pending-листингу биржи.
// Роль выводится из цен. Только стоп значит SL, тейки нумеруются по удалённости от входа.
// Каскадные очереди не восстанавливаются: они жили только в памяти.
func (m *Monitor) Resume(ctx context.Context) (int, error) {
	pending, err := m.ex.PendingTpSl(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("resume: pending: %w", err)
	}
	positions, err := m.ex.Positions(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("resume: positions: %w", err)
	}

	byInst := make(map[string]models.Position, len(positions))
	for _, p := range positions {
		byInst[p.InstID] = p
		m.ex.SetPositionSize(p.InstID, math.Abs(p.Size))
	}

	grouped := make(map[string][]models.PendingTpSl)
	for _, p := range pending {
		grouped[p.InstID] = append(grouped[p.InstID], p)
	}

	restored := 0
	for inst, list := range grouped {
		pos, ok := byInst[inst]
		if !ok {
			m.log.Warn("resume: pending tp/sl without position", zap.String("inst_id", inst), zap.Int("orders", len(list)))
			continue
		}
		for _, o := range resumeOrders(pos, list, m.now()) {
			if m.isKnown(o.OrderID) {
				continue
			}
			m.Track(o)
			restored++
		}
	}

	m.log.Info("tracking resumed",
		zap.Int("pending", len(pending)),
		zap.Int("positions", len(positions)),
		zap.Int("restored", restored),
	)
	return restored, nil
}

func resumeOrders(pos models.Position, list []models.PendingTpSl, now time.Time) []models.TrackedOrder {
	dir := positionDirection(pos)
	closeSide := models.CloseSide(dir)
	entry := pos.AvgPrice
	posSize := math.Abs(pos.Size)

	sizeOf := func(p models.PendingTpSl) float64 {
		if p.Size < 0 {
			return -p.Size * posSize
		}
		return p.Size
	}

	var tps, sls []models.PendingTpSl
	for _, p := range list {
		if p.TpTrigger > 0 {
			tps = append(tps, p)
		} else if p.SlTrigger > 0 {
			sls = append(sls, p)
		}
	}
	sort.Slice(tps, func(i, j int) bool {
		return math.Abs(tps[i].TpTrigger-entry) < math.Abs(tps[j].TpTrigger-entry)
	})

	out := make([]models.TrackedOrder, 0, len(list))
	for _, p := range sls {
		out = append(out, models.TrackedOrder{
			OrderID: p.AlgoID, InstID: p.InstID, Role: models.RoleSL, TriggerPrice: p.SlTrigger,
			Size: sizeOf(p), Side: closeSide, EntryPrice: entry, TrackedSince: now,
		})
	}
	for i, p := range tps {
		out = append(out, models.TrackedOrder{
			OrderID: p.AlgoID, InstID: p.InstID, Role: models.TPRole(i + 1), TriggerPrice: p.TpTrigger,
			Size: sizeOf(p), Side: closeSide, EntryPrice: entry, TrackedSince: now,
		})
	}
	return out
}

func (m *Monitor) isKnown(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tracked[id]; ok {
		return true
	}
	_, ok := m.notified[id]
	return ok
}

// CleanupOrphans отменяет TP/SL по символам, где позиции уже нет.
func (m *Monitor) CleanupOrphans(ctx context.Context) (int, error) {
	pending, err := m.ex.PendingTpSl(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("cleanup: pending: %w", err)
	}
	positions, err := m.ex.Positions(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("cleanup: positions: %w", err)
	}
	open := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		open[p.InstID] = struct{}{}
	}

	var errs []error
	cancelled := 0
	for _, p := range pending {
		if _, ok := open[p.InstID]; ok {
			continue
		}
		if err := m.ex.CancelTpSl(ctx, p.InstID, p.AlgoID); err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", p.InstID, p.AlgoID, err))
			continue
		}
		m.Untrack(p.AlgoID)
		cancelled++
		m.log.Info("orphan tp/sl cancelled", zap.String("inst_id", p.InstID), zap.String("algo_id", p.AlgoID))
	}
	return cancelled, stderrors.Join(errs...)
}
