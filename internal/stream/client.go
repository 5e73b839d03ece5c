package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/amberapp/amber-core/internal/config"
	svcErr "github.com/amberapp/amber-core/internal/errors"
)

// Client talks to the hosted chat transport. The live event stream rides a
// websocket; channel provisioning and membership queries use the service's
// REST surface authenticated with a server-side API token.
//
// One Client carries one connection, so each notification listener owns its
// own Client instance.
type Client struct {
	cfg   *config.Config
	log   *slog.Logger
	httpc *http.Client

	mu          sync.Mutex
	conn        *websocket.Conn
	done        chan struct{}
	nextSubID   int
	msgHandlers map[string]map[int]Handler // channel id → sub id → handler
	addHandlers map[int]Handler
}

// NewClient builds an unconnected Client from config.
func NewClient(cfg *config.Config, log *slog.Logger) *Client {
	return &Client{
		cfg:         cfg,
		log:         log,
		httpc:       &http.Client{Timeout: 10 * time.Second},
		msgHandlers: make(map[string]map[int]Handler),
		addHandlers: make(map[int]Handler),
	}
}

// commandWriteTimeout bounds watch/unwatch writes when the caller's context
// carries no deadline of its own.
const commandWriteTimeout = 10 * time.Second

// command is an outbound websocket frame.
type command struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id,omitempty"`
}

// UserToken issues the short-lived JWT the transport expects for a user
// identity, signed with the server-side API secret.
func (c *Client) UserToken(userID uint64) (string, error) {
	claims := jwt.MapClaims{
		"user_id": strconv.FormatUint(userID, 10),
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(c.cfg.Auth.TokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.cfg.Stream.APISecret))
	if err != nil {
		return "", svcErr.Transport("issue user token", err)
	}
	return signed, nil
}

// Connect dials the websocket endpoint for the given user and starts the read
// loop. A second Connect on a live client is an error; disconnect first.
func (c *Client) Connect(ctx context.Context, userID uint64) error {
	token, err := c.UserToken(userID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return svcErr.Transport("connect", fmt.Errorf("already connected"))
	}

	q := url.Values{}
	q.Set("api_key", c.cfg.Stream.APIKey)
	q.Set("user_id", strconv.FormatUint(userID, 10))
	q.Set("token", token)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.Stream.URL+"?"+q.Encode(), nil)
	if err != nil {
		return svcErr.Transport("connect", err)
	}

	c.conn = conn
	c.done = make(chan struct{})
	go c.readLoop(conn, c.done)
	return nil
}

// readLoop dispatches inbound events until the connection dies. A read error
// is logged and the loop exits; the session then runs in degraded,
// non-notifying mode rather than crashing anything above it.
func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			select {
			case <-done:
			default:
				c.log.Warn("chat transport read failed, notifications degraded", "err", err)
			}
			return
		}
		c.dispatch(ev)
	}
}

func (c *Client) dispatch(ev Event) {
	c.mu.Lock()
	var handlers []Handler
	switch ev.Type {
	case EventMessageNew:
		for _, h := range c.msgHandlers[ev.Message.ChannelID] {
			handlers = append(handlers, h)
		}
	case EventAddedToChannel:
		for _, h := range c.addHandlers {
			handlers = append(handlers, h)
		}
	}
	c.mu.Unlock()

	// Invoked outside the lock: handlers may re-enter (watch a new channel).
	for _, h := range handlers {
		h(ev)
	}
}

// send writes one command frame. The write deadline comes from the context
// when it carries one, so a stalled socket fails the caller instead of
// blocking it behind the connection mutex.
func (c *Client) send(ctx context.Context, cmd command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return svcErr.Transport(cmd.Type, fmt.Errorf("not connected"))
	}
	deadline := time.Now().Add(commandWriteTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(cmd); err != nil {
		return svcErr.Transport(cmd.Type, err)
	}
	return nil
}

// Watch subscribes the connection to a channel's events.
func (c *Client) Watch(ctx context.Context, channelID string) error {
	return c.send(ctx, command{Type: "watch", ChannelID: channelID})
}

// Unwatch stops a channel subscription.
func (c *Client) Unwatch(ctx context.Context, channelID string) error {
	return c.send(ctx, command{Type: "unwatch", ChannelID: channelID})
}

// OnMessageNew registers a handler for message.new events on one channel.
func (c *Client) OnMessageNew(channelID string, h Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.msgHandlers[channelID] == nil {
		c.msgHandlers[channelID] = make(map[int]Handler)
	}
	id := c.nextSubID
	c.nextSubID++
	c.msgHandlers[channelID][id] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.msgHandlers[channelID], id)
	}
}

// OnAddedToChannel registers a handler for added-to-channel notifications.
func (c *Client) OnAddedToChannel(h Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	c.addHandlers[id] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.addHandlers, id)
	}
}

// Disconnect closes the websocket. Safe to call when not connected.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	close(c.done)
	err := c.conn.Close()
	c.conn = nil
	return err
}

// apiURL derives the REST endpoint from the websocket URL: same host, http(s)
// scheme, the connect path dropped.
func (c *Client) apiURL(path string) string {
	u, err := url.Parse(c.cfg.Stream.URL)
	if err != nil {
		return c.cfg.Stream.URL + path
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	case "ws":
		u.Scheme = "http"
	}
	return u.Scheme + "://" + u.Host + path
}

// serverToken signs a server-scoped token for REST calls.
func (c *Client) serverToken() (string, error) {
	claims := jwt.MapClaims{
		"server": true,
		"iat":    time.Now().Unix(),
		"exp":    time.Now().Add(time.Minute).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(c.cfg.Stream.APISecret))
	if err != nil {
		return "", svcErr.Transport("issue server token", err)
	}
	return signed, nil
}

// EnsureChannel creates a channel with exactly the given members. An HTTP 409
// from the service means the channel already exists and is absorbed as
// success; creation is idempotent by design of the derived channel id.
func (c *Client) EnsureChannel(ctx context.Context, channelID string, memberIDs []uint64) error {
	body, err := json.Marshal(map[string]interface{}{
		"id":      channelID,
		"members": memberIDs,
	})
	if err != nil {
		return svcErr.Transport("ensure channel", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("/channels"), bytes.NewReader(body))
	if err != nil {
		return svcErr.Transport("ensure channel", err)
	}
	if err := c.authorize(req); err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return svcErr.Transport("ensure channel", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return nil // already exists
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		return svcErr.Transport("ensure channel", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

// Channels lists the ids of every channel the user is a member of.
func (c *Client) Channels(ctx context.Context, memberID uint64) ([]string, error) {
	u := c.apiURL("/channels") + "?member=" + strconv.FormatUint(memberID, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, svcErr.Transport("list channels", err)
	}
	if err := c.authorize(req); err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, svcErr.Transport("list channels", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, svcErr.Transport("list channels", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var out struct {
		Channels []string `json:"channels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, svcErr.Transport("list channels", err)
	}
	return out.Channels, nil
}

func (c *Client) authorize(req *http.Request) error {
	token, err := c.serverToken()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Api-Key", c.cfg.Stream.APIKey)
	return nil
}

var _ Transport = (*Client)(nil)
