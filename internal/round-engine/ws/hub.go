package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Métricas do hub; registradas no main do serviço.
var (
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "round_ws_connections",
		Help: "Observadores WebSocket conectados",
	})
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "round_ws_messages_sent_total",
		Help: "Total de eventos WS enviados",
	})
)

// SnapshotFunc produz o snapshot da rodada corrente (payload round_start)
// entregue a cada observador recém-conectado; ninguém vê estado vazio.
type SnapshotFunc func(ctx context.Context) ([]byte, error)

// Hub gerencia o conjunto de observadores e o fan-out dos eventos de rodada.
// Entrega é best-effort por conexão: escrita que falha derruba a conexão e o
// cliente ressincroniza pelo snapshot ao reconectar.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*websocket.Conn]struct{}
	snapshot SnapshotFunc
	log      *zap.Logger
}

func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool, snapshot SnapshotFunc) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		clients:  make(map[*websocket.Conn]struct{}),
		snapshot: snapshot,
		log:      log,
	}
}

// HandleWS faz o upgrade, entrega o snapshot e mantém a conexão até o
// cliente sumir. Mensagens do cliente são lidas e descartadas (só ping).
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	// snapshot antes de entrar no fan-out: o observador nunca vê uma rodada
	// defasada nem estado indefinido
	if snap, err := h.snapshot(r.Context()); err == nil && snap != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, snap); err != nil {
			_ = conn.Close()
			return
		}
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	Connections.Inc()

	defer func() {
		h.remove(conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		Connections.Dec()
	}
}

// Broadcast envia o payload já serializado pra todos os observadores.
// Observador lento perde eventos, nunca trava a rodada.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.Warn("ws write failed, dropping observer", zap.Error(err))
			h.remove(c)
			_ = c.Close()
			continue
		}
		MessagesSent.Inc()
	}
}

// ClientCount retorna quantos observadores estão conectados.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
