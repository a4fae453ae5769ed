// Package dashboard serves a board over HTTP.
//
// Clients read and mutate cards through a small JSON API and receive every
// board change as a WebSocket broadcast, so a UI stays in sync with edits
// made on disk as well as with other clients.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/mdkanban/mdkanban/internal/store"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeHello is the first message on a connection and carries the
	// client id.
	MessageTypeHello MessageType = "hello"

	// MessageTypeBoard carries the full board state.
	MessageTypeBoard MessageType = "board"
)

// Message is a WebSocket broadcast.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// HelloData identifies a connection.
type HelloData struct {
	ClientID string `json:"client_id"`
}

type client struct {
	id   string
	conn *websocket.Conn
}

// Server serves the API and manages WebSocket clients.
type Server struct {
	store *store.Store

	addr     string
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]*client
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Addr to listen on (default: localhost:8080). Use port 0 for a random
	// port.
	Addr string

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Addr:   "localhost:8080",
		Logger: log.Default(),
	}
}

// NewServer creates a dashboard for st.
func NewServer(st *store.Store, config *Config) (*Server, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Addr == "" {
		config.Addr = DefaultConfig().Addr
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		store:     st,
		addr:      config.Addr,
		clients:   make(map[*websocket.Conn]*client),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/board", s.handleBoard)
	mux.HandleFunc("POST /api/cards", s.handleCreate)
	mux.HandleFunc("GET /api/cards/{id}", s.handleGet)
	mux.HandleFunc("PATCH /api/cards/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/cards/{id}", s.handleDelete)
	mux.HandleFunc("POST /api/cards/{id}/move", s.handleMove)
	mux.HandleFunc("POST /api/reload", s.handleReload)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	return withRequestID(mux)
}

// Start begins serving and relaying store changes to clients.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		// WriteTimeout would cut long-lived WebSocket connections.
	}

	s.wg.Add(2)
	go s.broadcastLoop()
	go s.relayStore()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.logger.Println("Stopping dashboard server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.wg.Wait()

	s.logger.Println("Dashboard server stopped")
	return nil
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// relayStore turns store snapshots into board broadcasts.
func (s *Server) relayStore() {
	defer s.wg.Done()

	updates, unsubscribe := s.store.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-s.ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			msg, err := boardMessage(snap, s.logger)
			if err != nil {
				s.logger.Printf("Failed to marshal board: %v", err)
				continue
			}
			s.Broadcast(msg)
		}
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*client, 0, len(s.clients))
			for _, c := range s.clients {
				clients = append(clients, c)
			}
			s.clientsMu.RUnlock()

			for _, c := range clients {
				if err := s.send(c.conn, data); err != nil {
					s.logger.Printf("Failed to send to client %s: %v", c.id, err)
					s.removeClient(c.conn)
				}
			}
		}
	}
}

func (s *Server) send(conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// handleWebSocket upgrades the connection, registers it for broadcasts and
// greets the client with its id and the current board.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn}

	// Register before greeting so no change between the two is missed.
	s.clientsMu.Lock()
	s.clients[conn] = c
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client %s connected (total: %d)", c.id, clientCount)

	hello, _ := json.Marshal(HelloData{ClientID: c.id})
	greeting := []Message{{Type: MessageTypeHello, Timestamp: time.Now(), Data: hello}}
	if board, err := boardMessage(s.store.State(), s.logger); err == nil {
		greeting = append(greeting, board)
	}
	for _, msg := range greeting {
		data, _ := json.Marshal(msg)
		if err := s.send(conn, data); err != nil {
			s.logger.Printf("Failed to greet client %s: %v", c.id, err)
			s.removeClient(conn)
			return
		}
	}

	s.readLoop(conn)
}

// readLoop blocks until the client goes away. Client messages are ignored.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	c, exists := s.clients[conn]
	if !exists {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, conn)
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Printf("Client %s disconnected (total: %d)", c.id, clientCount)
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
