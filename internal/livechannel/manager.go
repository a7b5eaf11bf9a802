package livechannel

import (
	"context"
	"net/http"
	"sync"
	"time"

	"admin-realtime-service/internal/domain/event"
	"admin-realtime-service/internal/pkg/xerrors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// TokenSource exposes the session state the manager needs to decide connect
// eligibility. Satisfied by *session.Store.
type TokenSource interface {
	IsAuthenticated() bool
	AccessToken() string
}

// Config tunes the connection and reconnection behaviour.
type Config struct {
	URL string

	// Bounded dial retries for one Connect call.
	DialAttempts int
	DialDelay    time.Duration

	// Delay before re-dialing after an unexpected disconnect.
	ResubscribeDelay time.Duration

	HandshakeTimeout time.Duration
}

// Hooks surface connection lifecycle transitions to the application. All
// callbacks are optional and run outside the manager lock.
type Hooks struct {
	OnConnect    func()
	OnDisconnect func()
	OnError      func(err error)
}

// Handler processes one inbound envelope. Handlers run synchronously on the
// read loop, preserving delivery order.
type Handler func(e *event.Envelope)

type handlerEntry struct {
	fn Handler
}

// Manager owns the single live connection, its auth handshake, reconnection
// policy and low-level event registration. At most one connection exists per
// authenticated session.
type Manager struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	dialing   bool
	closing   bool

	retryTimer *time.Timer
	handlers   map[event.Type][]*handlerEntry

	writeMu sync.Mutex

	cfg    Config
	tokens TokenSource
	hooks  Hooks
	logger *zap.Logger
}

func NewManager(cfg Config, tokens TokenSource, logger *zap.Logger) *Manager {
	if cfg.DialAttempts <= 0 {
		cfg.DialAttempts = 1
	}
	return &Manager{
		cfg:      cfg,
		tokens:   tokens,
		handlers: make(map[event.Type][]*handlerEntry),
		logger:   logger,
	}
}

// SetHooks installs lifecycle callbacks. Must be called before Connect.
func (m *Manager) SetHooks(hooks Hooks) {
	m.hooks = hooks
}

// Connect opens the live connection in the background. It is a no-op unless
// the session is authenticated with a token present and no connection exists
// or is being dialed. Dial failures never propagate as errors: exhausted
// retries are reported through the OnError hook.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	if !m.tokens.IsAuthenticated() || m.tokens.AccessToken() == "" || m.conn != nil || m.dialing {
		m.mu.Unlock()
		return
	}
	m.dialing = true
	m.closing = false
	m.cancelRetryLocked()
	m.mu.Unlock()

	go m.dial(ctx)
}

func (m *Manager) dial(ctx context.Context) {
	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.HandshakeTimeout}

	var lastErr error
	for attempt := 1; attempt <= m.cfg.DialAttempts; attempt++ {
		m.mu.Lock()
		if m.closing {
			m.dialing = false
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		token := m.tokens.AccessToken()
		if !m.tokens.IsAuthenticated() || token == "" {
			m.mu.Lock()
			m.dialing = false
			m.mu.Unlock()
			return
		}

		header := http.Header{}
		header.Set("Authorization", "Bearer "+token)

		conn, _, err := dialer.DialContext(ctx, m.cfg.URL, header)
		if err == nil {
			m.mu.Lock()
			if m.closing {
				m.dialing = false
				m.mu.Unlock()
				conn.Close()
				return
			}
			m.conn = conn
			m.connected = true
			m.dialing = false
			m.mu.Unlock()

			m.logger.Info("live channel connected", zap.String("url", m.cfg.URL))
			if m.hooks.OnConnect != nil {
				m.hooks.OnConnect()
			}

			go m.readPump(conn)
			go m.pingLoop(conn)
			return
		}

		lastErr = err
		m.logger.Warn("live channel dial failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", m.cfg.DialAttempts),
			zap.Error(err),
		)

		if attempt < m.cfg.DialAttempts {
			select {
			case <-time.After(m.cfg.DialDelay):
			case <-ctx.Done():
				m.mu.Lock()
				m.dialing = false
				m.mu.Unlock()
				return
			}
		}
	}

	m.mu.Lock()
	m.dialing = false
	m.mu.Unlock()

	err := xerrors.Wrap(lastErr, "live channel dial retries exhausted")
	m.logger.Error("live channel unavailable", zap.Error(err))
	if m.hooks.OnError != nil {
		m.hooks.OnError(err)
	}
}

// Disconnect tears down the connection and any pending reconnect. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closing = true
	m.cancelRetryLocked()
	conn := m.conn
	m.conn = nil
	m.connected = false
	m.mu.Unlock()

	if conn != nil {
		m.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		m.writeMu.Unlock()
		conn.Close()
		m.logger.Info("live channel disconnected")
	}
}

// Emit forwards an event to the server if currently connected and silently
// drops it otherwise. Real-time notices are best-effort, not queued.
func (m *Manager) Emit(t event.Type, payload interface{}) {
	m.mu.Lock()
	conn := m.conn
	connected := m.connected
	m.mu.Unlock()

	if !connected || conn == nil {
		m.logger.Debug("emit dropped, not connected", zap.String("event", string(t)))
		return
	}

	env, err := event.NewEnvelope(t, payload)
	if err != nil {
		m.logger.Warn("emit dropped, bad payload", zap.String("event", string(t)), zap.Error(err))
		return
	}
	data, err := env.ToJSON()
	if err != nil {
		m.logger.Warn("emit dropped, marshal failed", zap.String("event", string(t)), zap.Error(err))
		return
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		m.logger.Warn("emit failed", zap.String("event", string(t)), zap.Error(err))
	}
}

// On registers a handler for a named inbound event and returns a function
// that deregisters exactly that handler.
func (m *Manager) On(t event.Type, fn Handler) func() {
	entry := &handlerEntry{fn: fn}

	m.mu.Lock()
	m.handlers[t] = append(m.handlers[t], entry)
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		entries := m.handlers[t]
		for i, e := range entries {
			if e == entry {
				m.handlers[t] = append(entries[:i], entries[i+1:]...)
				break
			}
		}
		if len(m.handlers[t]) == 0 {
			delete(m.handlers, t)
		}
	}
}

// IsConnected reports whether the live connection is currently up.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// HandlerCount returns the number of handlers registered for an event.
func (m *Manager) HandlerCount(t event.Type) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers[t])
}

// HasPendingRetry reports whether a reconnect timer is scheduled.
func (m *Manager) HasPendingRetry() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryTimer != nil
}

func (m *Manager) readPump(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			m.handleDrop(conn, err)
			return
		}

		env, err := event.ParseEnvelope(message)
		if err != nil {
			m.logger.Warn("dropping malformed envelope", zap.Error(err))
			continue
		}

		m.dispatch(env)
	}
}

// dispatch runs handlers synchronously in registration order so inbound
// events are never reordered.
func (m *Manager) dispatch(env *event.Envelope) {
	m.mu.Lock()
	entries := make([]*handlerEntry, len(m.handlers[env.Type]))
	copy(entries, m.handlers[env.Type])
	m.mu.Unlock()

	for _, e := range entries {
		e.fn(env)
	}
}

func (m *Manager) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		active := m.conn == conn
		m.mu.Unlock()
		if !active {
			return
		}

		m.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		m.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

// handleDrop runs when the read loop exits. A logout-initiated close stays
// silent; an unexpected drop while the session remains authenticated surfaces
// a notification through the hook and schedules a single delayed re-dial.
func (m *Manager) handleDrop(conn *websocket.Conn, err error) {
	m.mu.Lock()
	if m.conn != conn {
		// Already torn down or replaced.
		m.mu.Unlock()
		return
	}
	wasClosing := m.closing
	m.conn = nil
	m.connected = false
	m.mu.Unlock()

	conn.Close()

	if wasClosing {
		return
	}

	m.logger.Warn("live channel dropped", zap.Error(err))
	if m.hooks.OnDisconnect != nil {
		m.hooks.OnDisconnect()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing || !m.tokens.IsAuthenticated() {
		return
	}
	m.cancelRetryLocked()
	m.retryTimer = time.AfterFunc(m.cfg.ResubscribeDelay, func() {
		m.mu.Lock()
		m.retryTimer = nil
		m.mu.Unlock()
		m.Connect(context.Background())
	})
}

func (m *Manager) cancelRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}
