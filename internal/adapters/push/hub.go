// Package push implements the push-delivery channel over WebSockets.
//
// Every upgraded socket gets an opaque connection id, is recorded in the
// connection registry, and is evicted from it on disconnect. Send hands a
// payload to the socket's outbound queue; ids that are not live on this hub
// are reported as gone.
package push

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/okian/nebula/internal/domain/identity"
	"github.com/okian/nebula/internal/domain/model"
	"github.com/okian/nebula/internal/domain/notify"
	"github.com/okian/nebula/pkg/logger"
	"github.com/okian/nebula/pkg/metrics"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 512
	defaultSendBuffer = 256
	registryTimeout   = 5 * time.Second
)

// Registry records live sockets.
type Registry interface {
	Register(ctx context.Context, rec model.ConnectionRecord) error
	Evict(ctx context.Context, connectionID string) error
}

// Authenticator resolves an access token to its owner.
type Authenticator interface {
	Introspect(ctx context.Context, accessToken string) (identity.Attributes, error)
}

// Hub owns the live sockets of this process.
type Hub struct {
	registry   Registry
	auth       Authenticator
	origins    map[string]struct{}
	sendBuffer int
	newID      func() string
	now        func() time.Time
	logger     logger.Logger

	upgrader websocket.Upgrader
	clients  *xsync.Map[string, *client]
	closed   atomic.Bool
}

var _ notify.Sender = (*Hub)(nil)

// NewHub builds a hub recording sockets in registry.
func NewHub(registry Registry, opts ...Option) *Hub {
	h := &Hub{
		registry:   registry,
		sendBuffer: defaultSendBuffer,
		newID:      uuid.NewString,
		now:        time.Now,
		clients:    xsync.NewMap[string, *client](),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("push")
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// ServeHTTP upgrades the request and starts the socket pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	var userID string
	if token := r.URL.Query().Get("token"); token != "" && h.auth != nil {
		attrs, err := h.auth.Introspect(r.Context(), token)
		if err != nil {
			h.logger.Debug(r.Context(), "socket token rejected", logger.Error(err))
			http.Error(w, identity.ErrInvalidToken.Error(), http.StatusUnauthorized)
			return
		}
		userID = attrs.Sub
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Debug(r.Context(), "upgrade failed", logger.Error(err))
		return
	}

	c := &client{
		id:   h.newID(),
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
		done: make(chan struct{}),
		hub:  h,
	}

	// Tracked before the record is visible so a concurrent fan-out that lists
	// it can always reach the socket.
	h.clients.Store(c.id, c)

	ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	defer cancel()
	rec := model.ConnectionRecord{ConnectionID: c.id, UserID: userID, ConnectedAt: h.now().UnixMilli()}
	if err := h.registry.Register(ctx, rec); err != nil {
		h.clients.Delete(c.id)
		h.logger.Error(ctx, "register connection", logger.String("connection_id", c.id), logger.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "registry unavailable"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	// Close may have run while the record was being written.
	if h.closed.Load() {
		c.close(websocket.CloseGoingAway, "server shutting down")
		if err := h.registry.Evict(ctx, c.id); err != nil {
			h.logger.Warn(ctx, "evict after shutdown", logger.String("connection_id", c.id), logger.Error(err))
		}
		return
	}

	metrics.UpdateLiveSockets(h.clients.Size())
	h.logger.Debug(ctx, "socket connected", logger.String("connection_id", c.id), logger.String("user_id", userID))

	go c.writePump()
	go c.readPump()
}

// Send queues payload for connectionID without blocking.
func (h *Hub) Send(ctx context.Context, connectionID string, payload []byte) error {
	c, ok := h.clients.Load(connectionID)
	if !ok {
		return fmt.Errorf("connection %s: %w", connectionID, notify.ErrGone)
	}
	select {
	case <-c.done:
		return fmt.Errorf("connection %s: %w", connectionID, notify.ErrGone)
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return fmt.Errorf("connection %s: %w", connectionID, ErrBufferFull)
	}
}

// Count returns the number of live sockets.
func (h *Hub) Count() int {
	return h.clients.Size()
}

// Close disconnects every socket and refuses new ones.
func (h *Hub) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	h.clients.Range(func(_ string, c *client) bool {
		c.close(websocket.CloseGoingAway, "server shutting down")
		return true
	})
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.origins) == 0 {
		return true
	}
	if _, ok := h.origins["*"]; ok {
		return true
	}
	_, ok := h.origins[origin]
	return ok
}

func (h *Hub) unregister(c *client) {
	if _, ok := h.clients.LoadAndDelete(c.id); !ok {
		return
	}
	metrics.UpdateLiveSockets(h.clients.Size())

	ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	defer cancel()
	if err := h.registry.Evict(ctx, c.id); err != nil {
		h.logger.Warn(ctx, "evict on disconnect", logger.String("connection_id", c.id), logger.Error(err))
		return
	}
	h.logger.Debug(ctx, "socket disconnected", logger.String("connection_id", c.id))
}

type client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	hub       *Hub
}

// close stops both pumps and removes the client from the hub.
func (c *client) close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(writeWait))
		_ = c.conn.Close()
		c.hub.unregister(c)
	})
}

// readPump discards inbound frames; it exists to service control frames and
// notice disconnects.
func (c *client) readPump() {
	defer c.close(websocket.CloseNormalClosure, "")

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug(context.Background(), "socket read failed",
					logger.String("connection_id", c.id), logger.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close(websocket.CloseNormalClosure, "")
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.logger.Debug(context.Background(), "socket write failed",
					logger.String("connection_id", c.id), logger.Error(err))
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
