package service

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"blofin_bot/internal/models"
	"blofin_bot/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	MainnetURL = "https://openapi.blofin.com"
	DemoURL    = "https://demo-trading-openapi.blofin.com"
)

type Config struct {
	APIKey     string
	SecretKey  string
	Passphrase string
	BaseURL    string
	Timeout    time.Duration
	// RatePerSec: ограничение исходящих запросов, 0 = без лимита.
	RatePerSec float64
	Burst      int
	MarginMode string
}

// Client: подписанный REST-клиент BloFin copy-trading futures.
type Client struct {
	apiKey  string
	secret  string
	passph  string
	baseURL string

	http       *http.Client
	log        *zap.Logger
	metrics    *metrics.Metrics
	limiter    *rate.Limiter
	now        func() time.Time
	nonce      func() string
	marginMode string

	instMu      sync.RWMutex
	instruments map[string]models.InstrumentSpec

	covMu    sync.Mutex
	coverage map[string]*coverage

	calls        atomic.Int64
	fails        atomic.Int64
	ordersPlaced atomic.Int64
	ordersFailed atomic.Int64
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }
func WithLogger(l *zap.Logger) Option      { return func(c *Client) { c.log = l } }
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") } }

// WithClock и WithNonce нужны тестам, чтобы подпись была воспроизводимой.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }
func WithNonce(f func() string) Option      { return func(c *Client) { c.nonce = f } }

func New(cfg Config, opts ...Option) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = MainnetURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	mode := cfg.MarginMode
	if mode == "" {
		mode = models.MarginCross
	}

	c := &Client{
		apiKey:      cfg.APIKey,
		secret:      cfg.SecretKey,
		passph:      cfg.Passphrase,
		baseURL:     base,
		http:        &http.Client{Timeout: timeout},
		log:         zap.NewNop(),
		now:         time.Now,
		nonce:       uuid.NewString,
		marginMode:  mode,
		instruments: make(map[string]models.InstrumentSpec),
		coverage:    make(map[string]*coverage),
	}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) MarginMode() string { return c.marginMode }

type Stats struct {
	Calls             int64 `json:"apiCalls"`
	Errors            int64 `json:"apiErrors"`
	OrdersPlaced      int64 `json:"ordersPlaced"`
	OrdersFailed      int64 `json:"ordersFailed"`
	CachedInstruments int   `json:"cachedInstruments"`
}

func (c *Client) Stats() Stats {
	c.instMu.RLock()
	n := len(c.instruments)
	c.instMu.RUnlock()
	return Stats{
		Calls:             c.calls.Load(),
		Errors:            c.fails.Load(),
		OrdersPlaced:      c.ordersPlaced.Load(),
		OrdersFailed:      c.ordersFailed.Load(),
		CachedInstruments: n,
	}
}

func (c *Client) orderDone(kind models.OrderKind, err error) {
	if err != nil {
		c.ordersFailed.Add(1)
		if c.metrics != nil {
			c.metrics.OrdersFailed.WithLabelValues(string(kind)).Inc()
		}
		return
	}
	c.ordersPlaced.Add(1)
	if c.metrics != nil {
		c.metrics.OrdersPlaced.WithLabelValues(string(kind)).Inc()
	}
}
