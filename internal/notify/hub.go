package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/amberapp/amber-core/internal/app"
	"github.com/amberapp/amber-core/internal/stream"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 25 * time.Second
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The session token already authenticates the caller; origin pinning
		// belongs to the edge proxy.
		return true
	},
}

// Hub owns the UI-facing notification websockets. Each accepted socket gets
// its own session and its own Listener with its own transport connection, so
// sign-out or navigation tears down exactly one subscription set.
type Hub struct {
	appCtx       *app.AppContext
	newTransport func() stream.Transport
	profiles     ProfileSource

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
	byUser   map[uint64]int // live session count per user, for online status
}

// NewHub creates the hub. newTransport must return a fresh, unconnected
// transport per call — one listener, one connection.
func NewHub(appCtx *app.AppContext, newTransport func() stream.Transport, profiles ProfileSource) *Hub {
	return &Hub{
		appCtx:       appCtx,
		newTransport: newTransport,
		profiles:     profiles,
		sessions:     make(map[uuid.UUID]*session),
		byUser:       make(map[uint64]int),
	}
}

// session is one live UI websocket.
type session struct {
	id     uuid.UUID
	userID uint64
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

// enqueue hands a frame to the write pump, dropping it if the session is
// closing or backed up. Notifications are transient; losing one to a slow
// consumer beats blocking the event path.
func (s *session) enqueue(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- b:
	default:
	}
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// clientFrame is an inbound control frame from the UI.
type clientFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// serverFrame wraps outbound payloads.
type serverFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Serve upgrades the request and runs the session until the socket closes.
func (h *Hub) Serve(c *gin.Context, userID uint64) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.appCtx.Logger.Error("websocket upgrade failed", "user", userID, "err", err)
		return
	}

	sess := &session{
		id:     uuid.New(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
	h.register(sess)

	listener := NewListener(userID, h.newTransport(), h.profiles, h.appCtx.Logger, func(ev Event) {
		if b, err := json.Marshal(serverFrame{Type: "notification", Data: ev}); err == nil {
			sess.enqueue(b)
		}
	})

	// Listener failures degrade the session to non-notifying; the socket
	// stays up so the UI does not crash or reconnect-loop.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := listener.Start(ctx); err != nil {
			h.appCtx.Logger.Warn("notification listener degraded", "user", userID, "err", err)
		}
	}()

	go h.writePump(sess)
	h.readPump(sess, listener)

	// Read loop ended: the session is going away. Subscriptions are released
	// before the socket bookkeeping so no handler fires into a dead session.
	listener.Stop()
	h.unregister(sess)
	sess.close()
	_ = conn.Close()
}

// readPump consumes UI control frames: the current-view input driving
// suppression and the open-conversation intent.
func (h *Hub) readPump(sess *session, listener *Listener) {
	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		switch frame.Type {
		case "viewing":
			listener.SetViewing(frame.ConversationID)
		case "open_conversation":
			listener.SetViewing(frame.ConversationID)
			if b, err := json.Marshal(serverFrame{Type: "conversation_opened", Data: gin.H{
				"conversation_id": frame.ConversationID,
			}}); err == nil {
				sess.enqueue(b)
			}
		}
	}
}

// writePump drains the send buffer and keeps the socket and the online
// marker alive.
func (h *Hub) writePump(sess *session) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case b, ok := <-sess.send:
			if !ok {
				return
			}
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			_ = h.appCtx.RedisCache.SetOnline(ctx, sess.userID)
			cancel()
		}
	}
}

func (h *Hub) register(sess *session) {
	h.mu.Lock()
	h.sessions[sess.id] = sess
	h.byUser[sess.userID]++
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	_ = h.appCtx.RedisCache.SetOnline(ctx, sess.userID)
}

func (h *Hub) unregister(sess *session) {
	h.mu.Lock()
	delete(h.sessions, sess.id)
	h.byUser[sess.userID]--
	last := h.byUser[sess.userID] <= 0
	if last {
		delete(h.byUser, sess.userID)
	}
	h.mu.Unlock()

	if last {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		_ = h.appCtx.RedisCache.SetOffline(ctx, sess.userID)
	}
}
