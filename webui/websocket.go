package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"imagestream/imagegen"
	"imagestream/logging"
)

// WebSocketBroadcaster manages WebSocket client connections and fans
// messages out to every connected client.
//
// A single goroutine (Start) owns registration and broadcasting; each client
// has its own write pump fed by a buffered send channel.
type WebSocketBroadcaster struct {
	clients   map[*websocket.Conn]clientInfo
	clientsMu sync.RWMutex

	broadcast  chan WSMessage
	register   chan *websocket.Conn
	unregister chan *websocket.Conn

	// done is closed when Start begins stopping so pumps never block on a
	// dead loop. stopped is closed once Start and every pump have returned.
	done     chan struct{}
	doneOnce sync.Once
	stopped  chan struct{}
	pumps    sync.WaitGroup

	upgrader websocket.Upgrader

	pingInterval   time.Duration
	pongWait       time.Duration
	writeWait      time.Duration
	maxMessageSize int64
	sendBuffer     int
	version        string

	// history replays recent messages to late joiners; nil disables replay.
	history *CircularBuffer[[]byte]

	logger *logging.Logger
}

type clientInfo struct {
	connectedAt time.Time
	remoteAddr  string
	send        chan []byte
}

// BroadcasterConfig holds configuration for the WebSocketBroadcaster.
type BroadcasterConfig struct {
	// PingInterval is how often to send ping frames (default: 30s)
	PingInterval time.Duration

	// PongWait is how long to wait for a pong (default: 60s)
	PongWait time.Duration

	// WriteWait is the time allowed to write a message (default: 10s)
	WriteWait time.Duration

	// MaxMessageSize is the max message size read from a client (default: 512 bytes)
	MaxMessageSize int64

	// BroadcastBufferSize is the broadcast channel buffer (default: 256)
	BroadcastBufferSize int

	// ClientSendBufferSize is the per-client send buffer (default: 256)
	ClientSendBufferSize int

	// ReplaySize is how many recent messages a newly connected client
	// receives after the initial message (default: 64, negative disables)
	ReplaySize int

	// Version is reported to clients in the initial message.
	Version string

	Logger *logging.Logger
}

// DefaultBroadcasterConfig returns the default configuration.
func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		PingInterval:         30 * time.Second,
		PongWait:             60 * time.Second,
		WriteWait:            10 * time.Second,
		MaxMessageSize:       512,
		BroadcastBufferSize:  256,
		ClientSendBufferSize: 256,
		ReplaySize:           64,
	}
}

// NewWebSocketBroadcasterWithConfig creates a broadcaster; zero fields take
// their defaults.
func NewWebSocketBroadcasterWithConfig(config BroadcasterConfig) *WebSocketBroadcaster {
	defaults := DefaultBroadcasterConfig()
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.PongWait <= 0 {
		config.PongWait = defaults.PongWait
	}
	if config.WriteWait <= 0 {
		config.WriteWait = defaults.WriteWait
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaults.MaxMessageSize
	}
	if config.BroadcastBufferSize <= 0 {
		config.BroadcastBufferSize = defaults.BroadcastBufferSize
	}
	if config.ClientSendBufferSize <= 0 {
		config.ClientSendBufferSize = defaults.ClientSendBufferSize
	}
	if config.ReplaySize == 0 {
		config.ReplaySize = defaults.ReplaySize
	}
	if config.Logger == nil {
		config.Logger = logging.NewNop()
	}

	var history *CircularBuffer[[]byte]
	if config.ReplaySize > 0 {
		history = NewCircularBuffer[[]byte](config.ReplaySize)
	}

	return &WebSocketBroadcaster{
		clients:        make(map[*websocket.Conn]clientInfo),
		broadcast:      make(chan WSMessage, config.BroadcastBufferSize),
		register:       make(chan *websocket.Conn),
		unregister:     make(chan *websocket.Conn),
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
		pingInterval:   config.PingInterval,
		pongWait:       config.PongWait,
		writeWait:      config.WriteWait,
		maxMessageSize: config.MaxMessageSize,
		sendBuffer:     config.ClientSendBufferSize,
		version:        config.Version,
		history:        history,
		logger:         config.Logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Start runs the broadcast loop until ctx is cancelled, then closes every
// client connection and waits for their pumps to exit.
func (b *WebSocketBroadcaster) Start(ctx context.Context) {
	defer close(b.stopped)

	pingTicker := time.NewTicker(b.pingInterval)
	defer pingTicker.Stop()

	b.logger.Debug("Broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Debug("Broadcaster stopping", zap.Error(ctx.Err()))
			b.Close()
			b.pumps.Wait()
			return

		case conn := <-b.register:
			b.addClient(conn)

		case conn := <-b.unregister:
			b.removeClient(conn)

		case message := <-b.broadcast:
			b.broadcastToAll(message)

		case <-pingTicker.C:
			b.sendPingToAll()
		}
	}
}

// HandleConnection upgrades the request to a WebSocket and registers the
// client. The client receives an initial message once registered.
func (b *WebSocketBroadcaster) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("Failed to upgrade connection",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err))
		return
	}

	conn.SetReadLimit(b.maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(b.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(b.pongWait))
	})

	select {
	case b.register <- conn:
	case <-b.done:
		_ = conn.Close()
	}
}

// Stopped is closed once Start has returned and every client is gone.
func (b *WebSocketBroadcaster) Stopped() <-chan struct{} {
	return b.stopped
}

// BroadcastMessage queues a message for every client. It never blocks; when
// the broadcast buffer is full the message is dropped with a warning.
func (b *WebSocketBroadcaster) BroadcastMessage(msg WSMessage) {
	select {
	case b.broadcast <- msg:
	default:
		b.logger.Warn("Broadcast buffer full, dropping message", zap.String("type", msg.Type))
	}
}

// BroadcastError broadcasts a generic error message.
func (b *WebSocketBroadcaster) BroadcastError(code, message string) {
	b.BroadcastMessage(NewErrorMessage(code, message))
}

// ClientCount returns the current number of connected clients.
func (b *WebSocketBroadcaster) ClientCount() int {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client and stops accepting registrations.
// It is safe to call more than once.
func (b *WebSocketBroadcaster) Close() {
	b.doneOnce.Do(func() { close(b.done) })
	b.closeAllClients()
}

func (b *WebSocketBroadcaster) addClient(conn *websocket.Conn) {
	b.clientsMu.Lock()
	info := clientInfo{
		connectedAt: time.Now(),
		remoteAddr:  conn.RemoteAddr().String(),
		send:        make(chan []byte, b.sendBuffer),
	}
	b.clients[conn] = info
	count := len(b.clients)
	b.clientsMu.Unlock()

	// Pumps are only added from the Start goroutine, before it waits on them.
	b.pumps.Add(2)
	go b.writePump(conn, info.send)
	go b.readPump(conn)

	if data, err := json.Marshal(NewWSMessage(MessageTypeInitial, InitialData{
		Version:     b.version,
		ClientCount: count,
		Replayed:    b.historySize(),
	})); err == nil {
		info.send <- data
	}
	if b.history != nil {
		for _, data := range b.history.GetAll() {
			select {
			case info.send <- data:
			default:
			}
		}
	}

	b.logger.Debug("Client connected",
		zap.String("remote_addr", info.remoteAddr),
		zap.Int("clients", count))
}

func (b *WebSocketBroadcaster) historySize() int {
	if b.history == nil {
		return 0
	}
	return b.history.Size()
}

func (b *WebSocketBroadcaster) removeClient(conn *websocket.Conn) {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()

	if info, ok := b.clients[conn]; ok {
		close(info.send)
		delete(b.clients, conn)
		_ = conn.Close()
		b.logger.Debug("Client disconnected",
			zap.String("remote_addr", info.remoteAddr),
			zap.Duration("connected_for", time.Since(info.connectedAt)),
			zap.Int("clients", len(b.clients)))
	}
}

func (b *WebSocketBroadcaster) broadcastToAll(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("Failed to marshal broadcast message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	if b.history != nil {
		b.history.Push(data)
	}

	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()

	for conn, info := range b.clients {
		select {
		case info.send <- data:
		default:
			b.logger.Warn("Client send buffer full, closing", zap.String("remote_addr", info.remoteAddr))
			go b.requestUnregister(conn)
		}
	}
}

// sendPingToAll uses WriteControl, which may run concurrently with the
// write pumps.
func (b *WebSocketBroadcaster) sendPingToAll() {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()

	deadline := time.Now().Add(b.writeWait)
	for conn, info := range b.clients {
		if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			b.logger.Debug("Ping failed", zap.String("remote_addr", info.remoteAddr), zap.Error(err))
			go b.requestUnregister(conn)
		}
	}
}

func (b *WebSocketBroadcaster) closeAllClients() {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()

	for conn, info := range b.clients {
		close(info.send)
		delete(b.clients, conn)
	}
}

func (b *WebSocketBroadcaster) requestUnregister(conn *websocket.Conn) {
	select {
	case b.unregister <- conn:
	case <-b.done:
	}
}

// readPump drains client frames so pong and close frames are processed.
func (b *WebSocketBroadcaster) readPump(conn *websocket.Conn) {
	defer b.pumps.Done()
	defer b.requestUnregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				b.logger.Debug("Unexpected close", zap.Error(err))
			}
			return
		}
	}
}

func (b *WebSocketBroadcaster) writePump(conn *websocket.Conn, send <-chan []byte) {
	defer b.pumps.Done()
	defer conn.Close()

	for message := range send {
		_ = conn.SetWriteDeadline(time.Now().Add(b.writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			b.logger.Debug("Write failed", zap.Error(err))
			return
		}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(b.writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// WebSocketSink is an imagegen.Sink that broadcasts one run's delivery
// events, tagged with its correlation ID.
type WebSocketSink struct {
	broadcaster   *WebSocketBroadcaster
	correlationID string
}

// NewWebSocketSink binds a sink to a broadcaster and a run's correlation ID.
func NewWebSocketSink(b *WebSocketBroadcaster, correlationID string) *WebSocketSink {
	return &WebSocketSink{broadcaster: b, correlationID: correlationID}
}

// OnItem implements imagegen.Sink.
func (s *WebSocketSink) OnItem(ctx context.Context, d imagegen.Descriptor, position, total int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.broadcaster.BroadcastMessage(NewItemMessage(s.correlationID, d, position, total))
	return nil
}

// OnItemError implements imagegen.Sink.
func (s *WebSocketSink) OnItemError(position int, message string) {
	s.broadcaster.BroadcastMessage(NewWSMessage(MessageTypeItemError, ItemErrorData{
		CorrelationID: s.correlationID,
		Position:      position,
		Message:       message,
	}))
}

// OnProgress implements imagegen.Sink.
func (s *WebSocketSink) OnProgress(p imagegen.Progress) {
	s.broadcaster.BroadcastMessage(NewProgressMessage(s.correlationID, p))
}
