package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"cafe-order-service/internal/auth"
	"cafe-order-service/internal/config"
	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/queue"
	"cafe-order-service/internal/tables"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// FloorSource supplies the state pushed to staff clients.
type FloorSource interface {
	ListTables(ctx context.Context) ([]domain.Table, error)
	ListHelpRequests(ctx context.Context) ([]domain.HelpRequest, error)
}

// Server pushes floor.state and help.state messages to staff websocket
// clients. Pushes are triggered by domain events, Postgres notifications and
// a fallback poll; identical snapshots are not re-sent.
type Server struct {
	source FloorSource
	logger *zap.Logger
	config config.Config

	refresh chan struct{}

	mu      sync.RWMutex
	clients map[*wsRealtimeClient]struct{}
	last    []byte
}

func New(source FloorSource, logger *zap.Logger, cfg config.Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		source:  source,
		logger:  logger,
		config:  cfg,
		refresh: make(chan struct{}, 1),
		clients: make(map[*wsRealtimeClient]struct{}),
	}
}

type wsRealtimeClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsRealtimeClient) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(messageType, data)
}

func (c *wsRealtimeClient) writeJSON(value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

type floorMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	At   string `json:"at"`
}

// Notify asks the hub to push a fresh snapshot. Calls coalesce.
func (s *Server) Notify() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// Publish lets the hub sit in the domain event fan-out.
func (s *Server) Publish(_ context.Context, _ queue.Event) {
	s.Notify()
}

// Run pushes snapshots until ctx is done.
func (s *Server) Run(ctx context.Context) {
	interval := s.config.WSFloorPollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.refresh:
		}
		s.push(ctx)
	}
}

func (s *Server) subscribe(client *wsRealtimeClient) (unsubscribe func()) {
	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.clients, client)
		s.mu.Unlock()
	}
}

func (s *Server) snapshot(ctx context.Context) ([][]byte, error) {
	all, err := s.source.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	help, err := s.source.ListHelpRequests(ctx)
	if err != nil {
		return nil, err
	}
	if help == nil {
		help = []domain.HelpRequest{}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	floor, err := json.Marshal(floorMessage{Type: "floor.state", Data: tables.GroupByLocation(all), At: now})
	if err != nil {
		return nil, err
	}
	helpMsg, err := json.Marshal(floorMessage{Type: "help.state", Data: help, At: now})
	if err != nil {
		return nil, err
	}
	return [][]byte{floor, helpMsg}, nil
}

// digest drops the timestamp so unchanged state compares equal.
func digest(messages [][]byte) []byte {
	var buf bytes.Buffer
	for _, m := range messages {
		var msg floorMessage
		_ = json.Unmarshal(m, &msg)
		msg.At = ""
		b, _ := json.Marshal(msg)
		buf.Write(b)
	}
	return buf.Bytes()
}

func (s *Server) push(ctx context.Context) {
	s.mu.RLock()
	clients := make([]*wsRealtimeClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	messages, err := s.snapshot(ctx)
	if err != nil {
		s.logger.Warn("floor snapshot failed", zap.Error(err))
		return
	}
	sum := digest(messages)
	s.mu.Lock()
	if bytes.Equal(sum, s.last) {
		s.mu.Unlock()
		return
	}
	s.last = sum
	s.mu.Unlock()

	for _, c := range clients {
		for _, m := range messages {
			if err := c.write(websocket.TextMessage, m); err != nil {
				_ = c.conn.Close()
				s.mu.Lock()
				delete(s.clients, c)
				s.mu.Unlock()
				break
			}
		}
	}
}

// ListenPostgres turns tables_updates notifications into pushes. It
// reconnects with backoff until ctx is done.
func (s *Server) ListenPostgres(ctx context.Context, db *pgxpool.Pool) {
	backoff := time.Second
	wait := func() bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff = minDuration(backoff*2, 30*time.Second)
		return true
	}

	for {
		conn, err := db.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("tables LISTEN acquire failed", zap.Error(err))
			if !wait() {
				return
			}
			continue
		}

		_, err = conn.Exec(ctx, `listen tables_updates`)
		if err != nil {
			conn.Release()
			s.logger.Warn("tables LISTEN failed", zap.Error(err))
			if !wait() {
				return
			}
			continue
		}

		backoff = time.Second
		for {
			if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
				break
			}
			s.Notify()
		}

		conn.Release()
		if !wait() {
			return
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// StaffFloorWS authenticates with ?token= and streams floor and help state.
func (s *Server) StaffFloorWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	token := r.URL.Query().Get("token")
	if bearer := auth.ParseBearerToken(token); bearer != "" {
		token = bearer
	}
	claims, err := auth.VerifyAccessToken(token, s.config.JWTSecret)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	ctx := r.Context()
	client := &wsRealtimeClient{conn: conn}
	unsubscribe := s.subscribe(client)
	defer unsubscribe()
	s.logger.Debug("floor client connected", zap.String("userId", claims.UserID), zap.String("role", string(claims.Role)))

	// Send initial snapshot immediately
	if messages, err := s.snapshot(ctx); err == nil {
		for _, m := range messages {
			_ = client.write(websocket.TextMessage, m)
		}
	} else {
		s.logger.Warn("floor snapshot failed", zap.Error(err))
		_ = client.writeJSON(map[string]any{"type": "floor.refresh", "at": time.Now().UTC().Format(time.RFC3339)})
	}

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	heartbeat := s.config.WSHeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
