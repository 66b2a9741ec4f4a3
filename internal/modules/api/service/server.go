package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"blofin_bot/internal/models"
	blofin "blofin_bot/internal/modules/blofin_client/service"
	monitor "blofin_bot/internal/modules/monitor/service"
	"blofin_bot/internal/runner"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const maxBody = 64 << 10

type Executor interface {
	Execute(ctx context.Context, sig models.TradeSignal) (*models.ExecutionResult, error)
	Stats() runner.Stats
}

type Exchange interface {
	Positions(ctx context.Context, instID string) ([]models.Position, error)
	Balance(ctx context.Context) (models.AccountSnapshot, error)
	PendingTpSl(ctx context.Context, instID string) ([]models.PendingTpSl, error)
	CancelTpSl(ctx context.Context, instID, algoID string) error
	Stats() blofin.Stats
}

type Monitor interface {
	Stats() monitor.Stats
	Untrack(orderID string) bool
}

type Config struct {
	APIKey         string
	AllowedOrigins []string
	// ExecuteTimeout ограничивает одно исполнение сигнала.
	ExecuteTimeout time.Duration
}

// Server: REST вход для сигналов и операторских запросов.
type Server struct {
	exec     Executor
	ex       Exchange
	mon      Monitor
	hub      *Hub
	registry *prometheus.Registry
	cfg      Config
	log      *zap.Logger
	router   *mux.Router
}

func NewServer(exec Executor, ex Exchange, mon Monitor, hub *Hub, reg *prometheus.Registry, cfg Config, log *zap.Logger) *Server {
	if cfg.ExecuteTimeout <= 0 {
		cfg.ExecuteTimeout = time.Minute
	}
	s := &Server{
		exec:     exec,
		ex:       ex,
		mon:      mon,
		hub:      hub,
		registry: reg,
		cfg:      cfg,
		log:      log,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.auth)

	api.HandleFunc("/trade", s.handleTrade).Methods(http.MethodPost)
	api.HandleFunc("/positions", s.handlePositions).Methods(http.MethodGet)
	api.HandleFunc("/balance", s.handleBalance).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.handlePending).Methods(http.MethodGet)
	api.HandleFunc("/orders/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.ServeWS)
	}
}

// Handler: роутер в обёртке CORS.
func (s *Server) Handler() http.Handler {
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-API-Key"},
	})
	return c.Handler(s.router)
}

// auth: при пустом ключе API открыт.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey != "" {
			got := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.APIKey)) != 1 {
				respondError(w, http.StatusUnauthorized, "unauthorized", "")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var sig models.TradeSignal
	if err := decode(r, &sig); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON", err.Error())
		return
	}
	if sig.SignalID == "" {
		sig.SignalID = uuid.NewString()
	}
	if sig.Source == "" {
		sig.Source = "api"
	}

	// обрыв соединения клиента не должен прерывать исполнение на середине
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.ExecuteTimeout)
	defer cancel()

	res, err := s.exec.Execute(ctx, sig)
	if err != nil {
		s.log.Warn("trade failed",
			zap.String("signal_id", sig.SignalID),
			zap.String("status", string(res.Status)),
			zap.Error(err),
		)
	}
	respondJSON(w, tradeStatus(res, err), res)
}

// tradeStatus: если позиция открыта, это 200 и ответ с фактическим статусом.
func tradeStatus(res *models.ExecutionResult, err error) int {
	if err == nil || res.Status != models.StatusNotExecuted {
		return http.StatusOK
	}
	switch {
	case errors.Is(err, models.ErrPositionTooSmall):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	list, err := s.ex.Positions(r.Context(), instParam(r))
	if err != nil {
		respondError(w, http.StatusBadGateway, "positions", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	acc, err := s.ex.Balance(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "balance", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, acc)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	list, err := s.ex.PendingTpSl(r.Context(), instParam(r))
	if err != nil {
		respondError(w, http.StatusBadGateway, "pending", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, list)
}

type cancelRequest struct {
	InstID string `json:"instId"`
	AlgoID string `json:"algoId"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON", err.Error())
		return
	}
	req.InstID = strings.ToUpper(strings.TrimSpace(req.InstID))
	if req.InstID == "" || req.AlgoID == "" {
		respondError(w, http.StatusBadRequest, "instId and algoId required", "")
		return
	}
	if err := s.ex.CancelTpSl(r.Context(), req.InstID, req.AlgoID); err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, models.ErrValidation) {
			code = http.StatusBadRequest
		}
		respondError(w, code, "cancel", err.Error())
		return
	}
	// отменённая вручную заявка не должна считаться исполненной
	untracked := s.mon.Untrack(req.AlgoID)
	respondJSON(w, http.StatusOK, map[string]any{"cancelled": req.AlgoID, "untracked": untracked})
}

type statsResponse struct {
	Client    blofin.Stats  `json:"client"`
	Executor  runner.Stats  `json:"executor"`
	Monitor   monitor.Stats `json:"monitor"`
	WSClients int           `json:"wsClients"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{
		Client:   s.ex.Stats(),
		Executor: s.exec.Stats(),
		Monitor:  s.mon.Stats(),
	}
	if s.hub != nil {
		resp.WSClients = s.hub.Clients()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func instParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("instId")))
}

func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return err
	}
	return sonic.Unmarshal(body, v)
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg, details string) {
	body := map[string]string{"error": msg}
	if details != "" {
		body["details"] = details
	}
	respondJSON(w, code, body)
}
