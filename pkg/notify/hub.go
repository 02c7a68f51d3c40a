// Package notify connects page clients to the router over WebSocket. The
// Hub delivers notifications and client commands (claim, focus, navigate)
// and relays notification clicks and control messages back to the router.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edgeup-ai/offline-router/pkg/router"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	defaultBufferSize = 32
)

// Outbound message types.
const (
	TypeHello        = "hello"
	TypeNotification = "notification"
	TypeClaim        = "claim"
	TypeFocus        = "focus"
	TypeNavigate     = "navigate"
	TypePong         = "pong"
)

// Inbound message types.
const (
	TypeNotificationClick = "notificationclick"
	TypeMessage           = "message"
	TypePing              = "ping"
)

var (
	// ErrClientNotFound is returned by Focus for an unknown client id.
	ErrClientNotFound = errors.New("client not found")

	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "edgeup_connected_clients",
		Help: "Number of page clients connected to the hub",
	})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edgeup_notifications_total",
		Help: "Total notification events by kind",
	}, []string{"kind"}) // "shown", "dropped", "click"
)

// Envelope is the JSON frame exchanged with page clients.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	URL     string          `json:"url,omitempty"`
	Action  string          `json:"action,omitempty"`
	Data    any             `json:"data,omitempty"`
	Message *router.Message `json:"message,omitempty"`
}

// Handler receives events from page clients. *router.Router satisfies it.
type Handler interface {
	NotificationClick(ctx context.Context, action string) error
	Message(ctx context.Context, msg router.Message) error
}

// Hub tracks connected page clients.
type Hub struct {
	mu          sync.RWMutex
	clients     map[string]*connection
	seq         uint64
	pendingOpen []string
	handler     Handler

	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// Verify interface implementation
var (
	_ router.Notifier = (*Hub)(nil)
	_ router.Clients  = (*Hub)(nil)
)

// NewHub constructs a hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				return originHost == hostWithoutPort(r.Host) || isLoopback(originHost)
			},
		},
		logger: log.With().Str("component", "notify").Logger(),
	}
}

// Bind sets the handler for client events.
func (h *Hub) Bind(handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

// Serve upgrades the request to a WebSocket and registers a client. The
// page URL is taken from the "url" query parameter.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := h.register(socket, r.URL.Query().Get("url"))
	go client.writeLoop()
	client.readLoop()
}

// ShowNotification sends n to every connected client.
func (h *Hub) ShowNotification(_ context.Context, n router.Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) == 0 {
		notificationsTotal.WithLabelValues("dropped").Inc()
		h.logger.Debug().Msg("No clients connected, notification dropped")
		return nil
	}
	for _, c := range h.clients {
		h.enqueue(c, Envelope{Type: TypeNotification, Data: n})
	}
	notificationsTotal.WithLabelValues("shown").Inc()
	return nil
}

// Claim marks every connected client as controlled and tells it so.
func (h *Hub) Claim(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.clients {
		c.controlled = true
		h.enqueue(c, Envelope{Type: TypeClaim, ID: c.id})
	}
	return nil
}

// List returns the connected clients, focused first, then oldest first.
func (h *Hub) List(_ context.Context) ([]router.ClientInfo, error) {
	h.mu.RLock()
	infos := make([]router.ClientInfo, 0, len(h.clients))
	seqs := make(map[string]uint64, len(h.clients))
	for _, c := range h.clients {
		infos = append(infos, router.ClientInfo{ID: c.id, URL: c.url, Focused: c.focused, Controlled: c.controlled})
		seqs[c.id] = c.seq
	}
	h.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Focused != infos[j].Focused {
			return infos[i].Focused
		}
		return seqs[infos[i].ID] < seqs[infos[j].ID]
	})
	return infos, nil
}

// Focus asks one client to bring itself to the foreground.
func (h *Hub) Focus(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok {
		return ErrClientNotFound
	}
	for _, other := range h.clients {
		other.focused = false
	}
	c.focused = true
	h.enqueue(c, Envelope{Type: TypeFocus, ID: id})
	return nil
}

// OpenWindow navigates the oldest client to url. Without clients the
// request is kept and delivered to the next client that connects.
func (h *Hub) OpenWindow(_ context.Context, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var target *connection
	for _, c := range h.clients {
		if target == nil || c.seq < target.seq {
			target = c
		}
	}
	if target == nil {
		h.pendingOpen = append(h.pendingOpen, url)
		return nil
	}
	h.enqueue(target, Envelope{Type: TypeNavigate, ID: target.id, URL: url})
	return nil
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*connection, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.close()
	}
}

func (h *Hub) register(socket *websocket.Conn, pageURL string) *connection {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	c := &connection{
		hub:    h,
		socket: socket,
		id:     uuid.NewString(),
		url:    pageURL,
		seq:    h.seq,
		send:   make(chan Envelope, defaultBufferSize),
	}
	h.clients[c.id] = c
	connectedClients.Inc()

	h.enqueue(c, Envelope{Type: TypeHello, ID: c.id})
	for _, url := range h.pendingOpen {
		h.enqueue(c, Envelope{Type: TypeNavigate, ID: c.id, URL: url})
	}
	h.pendingOpen = nil

	h.logger.Debug().Str("client_id", c.id).Str("url", pageURL).Msg("Client connected")
	return c
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		connectedClients.Dec()
		h.logger.Debug().Str("client_id", c.id).Msg("Client disconnected")
	}
}

func (h *Hub) currentHandler() Handler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.handler
}

// enqueue must be called with h.mu held.
func (h *Hub) enqueue(c *connection, msg Envelope) {
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.logger.Warn().Str("client_id", c.id).Msg("Dropping slow client")
		c.closed = true
		go c.close()
	}
}

// dispatch handles one inbound frame.
func (h *Hub) dispatch(c *connection, frame Envelope) {
	ctx := context.Background()

	switch strings.ToLower(strings.TrimSpace(frame.Type)) {
	case TypePing:
		h.mu.Lock()
		h.enqueue(c, Envelope{Type: TypePong})
		h.mu.Unlock()

	case TypeNotificationClick:
		notificationsTotal.WithLabelValues("click").Inc()
		handler := h.currentHandler()
		if handler == nil {
			return
		}
		if err := handler.NotificationClick(ctx, frame.Action); err != nil {
			h.logger.Warn().Err(err).Str("client_id", c.id).Msg("Notification click failed")
		}

	case TypeMessage:
		handler := h.currentHandler()
		if handler == nil || frame.Message == nil {
			return
		}
		if err := handler.Message(ctx, *frame.Message); err != nil {
			h.logger.Warn().Err(err).Str("client_id", c.id).Str("type", frame.Message.Type).Msg("Client message failed")
		}

	case TypeFocus:
		h.mu.Lock()
		for _, other := range h.clients {
			other.focused = other == c
		}
		h.mu.Unlock()

	default:
		h.logger.Debug().Str("client_id", c.id).Str("type", frame.Type).Msg("Unsupported client frame")
	}
}

type connection struct {
	hub    *Hub
	socket *websocket.Conn
	id     string
	url    string
	seq    uint64
	send   chan Envelope
	once   sync.Once

	// Guarded by hub.mu
	focused    bool
	controlled bool
	closed     bool
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn().Err(err).Str("client_id", c.id).Msg("Unexpected close")
			}
			return
		}
		if len(payload) == 0 {
			continue
		}

		var frame Envelope
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.hub.logger.Debug().Err(err).Str("client_id", c.id).Msg("Invalid client frame")
			continue
		}
		c.hub.dispatch(c, frame)
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		c.hub.mu.Lock()
		c.closed = true
		close(c.send)
		c.hub.mu.Unlock()
		_ = c.socket.Close()
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		if req, err := http.NewRequest(http.MethodGet, host, nil); err == nil {
			return hostWithoutPort(req.URL.Host)
		}
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
