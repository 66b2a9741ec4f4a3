package service

import (
	"context"
	"net/http"
	"sync"
	"time"

	"blofin_bot/internal/models"
	"blofin_bot/internal/notify"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin проверяет cors-слой сервера
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub раздаёт события исполнения и монитора подключённым websocket-клиентам.
type Hub struct {
	log *zap.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

var _ notify.Notifier = (*Hub)(nil)

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*wsClient]struct{}),
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) NotifyExecution(_ context.Context, res *models.ExecutionResult) error {
	return h.broadcast(notify.Envelope{Type: notify.EventExecution, At: res.FinishedAt, Data: res})
}

func (h *Hub) NotifyFill(_ context.Context, ev models.FillEvent) error {
	return h.broadcast(notify.Envelope{Type: notify.EventFill, At: ev.At, Data: ev})
}

func (h *Hub) NotifyFailure(_ context.Context, ev models.FailureEvent) error {
	return h.broadcast(notify.Envelope{Type: notify.EventFailure, At: ev.At, Data: ev})
}

// broadcast не блокируется: клиент с полным буфером отключается.
func (h *Hub) broadcast(env notify.Envelope) error {
	msg, err := sonic.Marshal(env)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("ws client too slow, dropping", zap.String("client", c.id))
			delete(h.clients, c)
			close(c.send)
		}
	}
	return nil
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("ws client connected", zap.String("client", c.id), zap.Int("total", n))
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("ws client disconnected", zap.String("client", c.id), zap.Int("total", n))
}

// Close отключает всех клиентов.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade", zap.Error(err))
		return
	}
	c := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		id:   conn.RemoteAddr().String(),
	}
	h.register(c)

	go c.writePump()
	go c.readPump()
}

// readPump нужен только для pong и обнаружения закрытия: входящие сообщения игнорируются.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("ws read", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
