package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"blofin_bot/internal/models"
	"blofin_bot/internal/notify"
	"blofin_bot/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Exchange: то, что монитору нужно от клиента биржи.
type Exchange interface {
	PendingTpSl(ctx context.Context, instID string) ([]models.PendingTpSl, error)
	PendingTpSlIDs(ctx context.Context) (map[string]struct{}, error)
	Positions(ctx context.Context, instID string) ([]models.Position, error)
	Ticker(ctx context.Context, instID string) (models.Ticker, error)
	SetTpSlPair(ctx context.Context, req models.OrderRequest) (models.TpSlResult, error)
	CancelTpSl(ctx context.Context, instID, algoID string) error
	ReleaseTpSl(instID, algoID string)
	SetPositionSize(instID string, size float64)
}

type Config struct {
	Interval time.Duration
	// CascadeRetryMax: сколько всего пытаться выставить следующий уровень при transient-ошибках.
	CascadeRetryMax time.Duration
	// CascadeRetryInitial: первая пауза между попытками.
	CascadeRetryInitial time.Duration
}

type Stats struct {
	Tracked       int       `json:"tracked"`
	Notified      int       `json:"notified"`
	Cascading     []string  `json:"cascading"`
	Polls         int64     `json:"polls"`
	PollSkipped   int64     `json:"pollSkipped"`
	PollErrors    int64     `json:"pollErrors"`
	Fills         int64     `json:"fills"`
	CascadePlaced int64     `json:"cascadePlaced"`
	CascadeFailed int64     `json:"cascadeFailed"`
	LastPoll      time.Time `json:"lastPoll"`
}

// Monitor следит за TP/SL заявками: заявка, пропавшая из pending, считается исполненной.
// После TP выставляется следующий уровень каскада.
type Monitor struct {
	ex       Exchange
	notifier notify.Notifier
	cfg      Config
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	onPoll   func(t time.Time, err error)

	// один Poll за раз; тик, пришедший во время опроса, пропускается
	sem *semaphore.Weighted

	mu       sync.Mutex
	tracked  map[string]models.TrackedOrder
	notified map[string]struct{}
	cascades map[string]*models.CascadeConfig
	stats    Stats
}

type Option func(*Monitor)

func WithClock(now func() time.Time) Option { return func(m *Monitor) { m.now = now } }

// WithPollHook вызывается после каждого опроса (для health).
func WithPollHook(f func(t time.Time, err error)) Option { return func(m *Monitor) { m.onPoll = f } }

func WithMetrics(mt *metrics.Metrics) Option { return func(m *Monitor) { m.metrics = mt } }

func New(ex Exchange, n notify.Notifier, cfg Config, log *zap.Logger, opts ...Option) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.CascadeRetryMax <= 0 {
		cfg.CascadeRetryMax = 30 * time.Second
	}
	if cfg.CascadeRetryInitial <= 0 {
		cfg.CascadeRetryInitial = 500 * time.Millisecond
	}
	if n == nil {
		n = notify.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &Monitor{
		ex:       ex,
		notifier: n,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		sem:      semaphore.NewWeighted(1),
		tracked:  make(map[string]models.TrackedOrder),
		notified: make(map[string]struct{}),
		cascades: make(map[string]*models.CascadeConfig),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Track ставит заявку под наблюдение. Уже уведомлённый id повторно не принимается.
func (m *Monitor) Track(o models.TrackedOrder) {
	if o.OrderID == "" {
		return
	}
	if o.TrackedSince.IsZero() {
		o.TrackedSince = m.now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, done := m.notified[o.OrderID]; done {
		m.log.Warn("order already notified, not tracking again", zap.String("order_id", o.OrderID))
		return
	}
	m.tracked[o.OrderID] = o
	m.gaugesLocked()

	m.log.Info("tracking order",
		zap.String("order_id", o.OrderID),
		zap.String("inst_id", o.InstID),
		zap.String("role", string(o.Role)),
		zap.Float64("trigger", o.TriggerPrice),
		zap.Float64("size", o.Size),
	)
}

// SetupCascade сохраняет очередь следующих уровней. Сам ничего не выставляет:
// первый уровень ставит и регистрирует вызывающий.
func (m *Monitor) SetupCascade(cfg models.CascadeConfig) {
	q := make([]models.CascadeLevel, len(cfg.Queue))
	copy(q, cfg.Queue)
	cfg.Queue = q

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(cfg.Queue) == 0 {
		delete(m.cascades, cfg.InstID)
	} else {
		m.cascades[cfg.InstID] = &cfg
	}
	m.gaugesLocked()

	m.log.Info("cascade configured",
		zap.String("inst_id", cfg.InstID),
		zap.Float64("sl", cfg.SLPrice),
		zap.Int("levels", len(cfg.Queue)),
	)
}

// Untrack снимает заявку с наблюдения без уведомления (отменена вручную).
func (m *Monitor) Untrack(orderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tracked[orderID]
	if ok {
		delete(m.tracked, orderID)
		m.notified[orderID] = struct{}{}
		m.gaugesLocked()
	}
	return ok
}

// Cascade: копия конфигурации каскада для символа.
func (m *Monitor) Cascade(instID string) (models.CascadeConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cascades[instID]
	if !ok {
		return models.CascadeConfig{}, false
	}
	out := *c
	out.Queue = append([]models.CascadeLevel(nil), c.Queue...)
	return out, true
}

// Tracked: отслеживаемые заявки по порядку постановки.
func (m *Monitor) Tracked() []models.TrackedOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TrackedOrder, 0, len(m.tracked))
	for _, o := range m.tracked {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TrackedSince.Equal(out[j].TrackedSince) {
			return out[i].TrackedSince.Before(out[j].TrackedSince)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out
}

func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Tracked = len(m.tracked)
	s.Notified = len(m.notified)
	s.Cascading = make([]string, 0, len(m.cascades))
	for inst := range m.cascades {
		s.Cascading = append(s.Cascading, inst)
	}
	sort.Strings(s.Cascading)
	return s
}

// Run опрашивает биржу раз в Interval до отмены контекста.
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.cfg.Interval)
	defer t.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	m.log.Info("monitor started", zap.Duration("interval", m.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitor stopped")
			return
		case <-t.C:
			// тик во время незавершённого опроса просто пропускается
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = m.Poll(ctx)
			}()
		}
	}
}

func (m *Monitor) gaugesLocked() {
	if m.metrics == nil {
		return
	}
	m.metrics.TrackedOrders.Set(float64(len(m.tracked)))
	m.metrics.Cascades.Set(float64(len(m.cascades)))
}
