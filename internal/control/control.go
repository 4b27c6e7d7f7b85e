// Package control exposes the bot over a WebSocket endpoint. Clients
// send action commands and receive progress events pushed as scraping
// and latching runs advance. The action vocabulary matches the
// browser-extension era protocol so existing dashboards keep working.
package control

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shoplatch/latchbot/internal/logger"
	"github.com/shoplatch/latchbot/internal/models"
)

// Inbound actions.
const (
	ActionStartSearch   = "start_search_scraping"
	ActionStopSearch    = "stop_search_scraping"
	ActionStartAdvanced = "start_advanced_scraping"
	ActionStopAdvanced  = "stop_advanced_scraping"
	ActionScrapeProduct = "scrape_product"
	ActionStartLatching = "start_latching"
	ActionStopLatching  = "stop_latching"
	ActionSkipLatching  = "skip_latching"
)

// Outbound event actions.
const (
	EventUpdateCount      = "update_count"
	EventAdvancedUpdate   = "advanced_update"
	EventSearchFinished   = "scraping_finished"
	EventAdvancedFinished = "advanced_scraping_finished"
	EventLatchProgress    = "latch_progress"
	EventLatchFinished    = "latching_finished"
)

// Command is an inbound action request.
type Command struct {
	Action   string `json:"action"`
	MaxPages int    `json:"maxPages,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Ack is the reply to a command.
type Ack struct {
	Success bool        `json:"success"`
	Status  string      `json:"status,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Event is pushed to every connected client.
type Event struct {
	Action   string      `json:"action"`
	Count    int         `json:"count,omitempty"`
	Page     int         `json:"page,omitempty"`
	Index    int         `json:"index,omitempty"`
	Total    int         `json:"total,omitempty"`
	Status   string      `json:"status,omitempty"`
	Message  string      `json:"message,omitempty"`
	Products interface{} `json:"products,omitempty"`
}

// Bot is the automation surface the server drives.
type Bot interface {
	StartSearchScraping() error
	StopSearchScraping() error
	StartAdvancedScraping(maxPages int) error
	StopAdvancedScraping() error
	ScrapeProduct(ctx context.Context, url string) (*models.ProductDetail, error)
	StartLatching() error
	StopLatching() error
	SkipCurrent() error
}

// Server manages WebSocket clients and dispatches their commands.
type Server struct {
	bot      Bot
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex

	httpServer *http.Server
}

// NewServer creates a control server around a bot.
func NewServer(bot Bot, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Server{
		bot: bot,
		log: log.WithComponent("control"),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Handler returns the WebSocket upgrade handler.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleWS)
}

// ListenAndServe serves the control endpoint at /ws until the server
// is shut down.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.Handler())

	s.mu.Lock()
	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	srv := s.httpServer
	s.mu.Unlock()

	s.log.WithField("addr", addr).Info("Control server listening")
	return srv.ListenAndServe()
}

// Shutdown stops the HTTP listener and closes all clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]*sync.Mutex)
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	writeMu := &sync.Mutex{}
	s.mu.Lock()
	s.clients[conn] = writeMu
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		ack := s.dispatch(r.Context(), cmd)

		writeMu.Lock()
		err := conn.WriteJSON(ack)
		writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, cmd Command) Ack {
	s.log.WithField("action", cmd.Action).Debug("Command received")

	var err error
	status := ""
	var data interface{}

	switch cmd.Action {
	case ActionStartSearch:
		err = s.bot.StartSearchScraping()
		status = "started"
	case ActionStopSearch:
		err = s.bot.StopSearchScraping()
		status = "stopped"
	case ActionStartAdvanced:
		err = s.bot.StartAdvancedScraping(cmd.MaxPages)
		status = "started"
	case ActionStopAdvanced:
		err = s.bot.StopAdvancedScraping()
		status = "stopped"
	case ActionScrapeProduct:
		data, err = s.bot.ScrapeProduct(ctx, cmd.URL)
		status = "scraped"
	case ActionStartLatching:
		err = s.bot.StartLatching()
		status = "started"
	case ActionStopLatching:
		err = s.bot.StopLatching()
		status = "stopped"
	case ActionSkipLatching:
		err = s.bot.SkipCurrent()
		status = "skipped"
	default:
		return Ack{Success: false, Error: "unknown action: " + cmd.Action}
	}

	if err != nil {
		return Ack{Success: false, Error: err.Error()}
	}
	return Ack{Success: true, Status: status, Data: data}
}

// Broadcast pushes an event to every connected client. Write failures
// drop the client.
func (s *Server) Broadcast(ev Event) {
	s.mu.Lock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(s.clients))
	for c, m := range s.clients {
		conns[c] = m
	}
	s.mu.Unlock()

	for conn, writeMu := range conns {
		writeMu.Lock()
		err := conn.WriteJSON(ev)
		writeMu.Unlock()
		if err != nil {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}
	}
}

// ClientCount reports connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
