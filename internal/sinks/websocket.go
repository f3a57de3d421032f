package sinks

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rtklabs/gnssrelay/pkg/log"
)

// Hub fans sentences out to attached websocket clients, standing in for the
// short-range link to nearby consumers. Ready only while at least one
// client is attached, so the router skips it when nobody is listening.
type Hub struct {
	name     string
	log      log.Logger
	upgrader websocket.Upgrader

	// receive, when set, gets every message a client sends back; the app
	// points it at the positioning source so clients can issue receiver
	// commands.
	receive func(p []byte)

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger log.Logger) *Hub {
	if logger == nil {
		logger = log.Nop()
	}
	return &Hub{
		name: "websocket",
		log:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[*websocket.Conn]struct{}{},
	}
}

// SetReceiver routes messages sent by clients into fn.
func (h *Hub) SetReceiver(fn func(p []byte)) { h.receive = fn }

func (h *Hub) Name() string { return h.name }

func (h *Hub) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients) > 0
}

// Write broadcasts p to every attached client. Clients that fail are
// detached; the write as a whole only fails when nobody received it.
func (h *Hub) Write(p []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return ErrBusy
	}
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
			h.log.Warn("websocket client dropped", log.Err(err))
			conn.Close()
			delete(h.clients, conn)
		}
	}
	return nil
}

// Handler upgrades HTTP requests and attaches the client to the hub.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn("websocket upgrade failed", log.Err(err))
			return
		}
		h.mu.Lock()
		h.clients[conn] = struct{}{}
		h.mu.Unlock()
		h.log.Info("websocket client attached", log.Str("remote", conn.RemoteAddr().String()))

		go h.reader(conn)
	})
}

// reader drains one client until it goes away, forwarding its messages to
// the receiver hook.
func (h *Hub) reader(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if h.receive != nil {
			h.receive(msg)
		}
	}
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// Serve runs an HTTP server exposing the hub at /stream until ctx is done.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/stream", h.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errc:
		return err
	}
}
