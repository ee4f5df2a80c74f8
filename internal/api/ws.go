package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"fleet-console/internal/logging"
	"fleet-console/internal/store"
)

const maxConnections = 32

// Hub pushes every store change to connected browser tabs so the console UI
// updates without its own polling.
type Hub struct {
	store  *store.Store
	logger *logging.Logger

	mutex       sync.Mutex
	connections map[*websocket.Conn]bool

	upgrader websocket.Upgrader
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewHub builds a Hub over the given store.
func NewHub(st *store.Store, logger *logging.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		store:       st,
		logger:      logger,
		connections: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start broadcasts store events until Stop is called.
func (h *Hub) Start(wg *sync.WaitGroup) {
	events, unsubscribe := h.store.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer unsubscribe()
		for {
			select {
			case <-h.ctx.Done():
				return
			case ev := <-events:
				h.broadcast(ev)
			}
		}
	}()
}

// Stop ends the broadcast loop.
func (h *Hub) Stop() {
	h.cancel()
}

// HandleWS upgrades the request and tracks the connection until it closes.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	if !h.addConnection(conn) {
		h.logger.Warnf("Max WebSocket connections reached, rejecting")
		conn.Close()
		return
	}

	// Reader loop exists only to notice the peer going away.
	go func() {
		defer h.removeConnection(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) addConnection(conn *websocket.Conn) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if len(h.connections) >= maxConnections {
		return false
	}
	h.connections[conn] = true
	h.logger.Infof("Added WebSocket connection (total: %d)", len(h.connections))
	return true
}

func (h *Hub) removeConnection(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, exists := h.connections[conn]; exists {
		delete(h.connections, conn)
		conn.Close()
		h.logger.Infof("Removed WebSocket connection (remaining: %d)", len(h.connections))
	}
}

func (h *Hub) broadcast(ev store.Event) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.connections {
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Errorf("Failed to push store event: %v", err)
			conn.Close()
			delete(h.connections, conn)
		}
	}
}
