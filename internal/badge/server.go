// Package badge provides the real-time badge server for the extension
// chrome.
//
// The server broadcasts the attention count and sync-cycle outcomes to
// connected WebSocket clients. The extension renders the latest badge
// message as its badge text; any other client (a status bar, a debug
// page) can subscribe to the same feed.
package badge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// MessageType defines the type of badge message
type MessageType string

const (
	// MessageTypeBadge carries the current attention count
	MessageTypeBadge MessageType = "badge"

	// MessageTypeSyncComplete indicates a refresh cycle finished
	MessageTypeSyncComplete MessageType = "sync_complete"

	// MessageTypeError indicates a refresh cycle failed outright
	MessageTypeError MessageType = "error"
)

// Message represents a badge broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// BadgeData carries the attention count for the badge surface
type BadgeData struct {
	AttentionCount int `json:"attention_count"`
}

// SyncCompleteData carries refresh cycle outcome information
type SyncCompleteData struct {
	Queries  int           `json:"queries"`
	Failed   int           `json:"failed"`
	Saved    bool          `json:"saved"`
	Duration time.Duration `json:"duration"`
}

// ErrorData carries the failure code of a fatal cycle error
type ErrorData struct {
	Code int `json:"code"`
}

// Server manages WebSocket connections and broadcasts badge messages
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	// lastBadge is replayed to newly connected clients so the badge is
	// never blank until the next cycle
	lastBadge   int
	lastBadgeMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Port to listen on; 0 picks a random free port
	Port int

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// NewServer creates a new badge WebSocket server
func NewServer(config *Config) *Server {
	if config == nil {
		config = &Config{}
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Badge server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server. Safe to call on a server that
// never started or whose Start failed.
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server == nil {
		s.wg.Wait()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()
	return nil
}

// PublishBadge broadcasts a new attention count.
func (s *Server) PublishBadge(attentionCount int) {
	s.lastBadgeMu.Lock()
	s.lastBadge = attentionCount
	s.lastBadgeMu.Unlock()

	s.publish(MessageTypeBadge, BadgeData{AttentionCount: attentionCount})
}

// PublishSync broadcasts a refresh cycle outcome.
func (s *Server) PublishSync(data SyncCompleteData) {
	s.publish(MessageTypeSyncComplete, data)
}

// PublishError broadcasts a fatal cycle failure code.
func (s *Server) PublishError(code int) {
	s.publish(MessageTypeError, ErrorData{Code: code})
}

func (s *Server) publish(typ MessageType, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}

	msg := Message{Type: typ, Timestamp: time.Now(), Data: payload}
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop sends queued messages to all connected clients
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	// Replay the last known badge so the client renders immediately
	s.lastBadgeMu.RLock()
	last := s.lastBadge
	s.lastBadgeMu.RUnlock()

	payload, _ := json.Marshal(BadgeData{AttentionCount: last})
	welcome, _ := json.Marshal(Message{Type: MessageTypeBadge, Timestamp: time.Now(), Data: payload})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, welcome)
	cancel()

	go s.readLoop(conn)
}

// readLoop keeps the connection alive and handles client disconnects
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
	}
}

// removeClient safely removes a client connection
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	s.lastBadgeMu.RLock()
	last := s.lastBadge
	s.lastBadgeMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": clientCount,
		"badge":   last,
	})
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
