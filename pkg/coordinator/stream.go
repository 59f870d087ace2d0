package coordinator

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ledgerflow/twopc/pkg/model"
)

// upgrader allows all origins; this endpoint is a read-only diagnostic feed, not a
// control surface, so a misconfigured origin check is low stakes.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamHub fans transaction state transitions out to every connected
// websocket client. It never blocks Transfer: a slow or dead client just
// misses events, buffered up to a small backlog before being dropped.
type StreamHub struct {
	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

type streamClient struct {
	conn *websocket.Conn
	send chan *model.TxnRecord
}

// NewStreamHub builds an empty hub.
func NewStreamHub() *StreamHub {
	return &StreamHub{clients: make(map[*streamClient]struct{})}
}

// Broadcast fans rec out to every connected client, non-blocking.
func (h *StreamHub) Broadcast(rec *model.TxnRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- rec:
		default:
			log.Printf("stream: dropping event for slow client")
		}
	}
}

// ServeHTTP upgrades the request to a websocket and streams transaction
// events to it until the client disconnects or a write fails.
func (h *StreamHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("stream: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	client := &streamClient{conn: conn, send: make(chan *model.TxnRecord, 32)}
	h.add(client)
	defer h.remove(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.readLoop(conn, cancel)

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-client.send:
			if err := conn.WriteJSON(rec); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := conn.WriteJSON(map[string]string{"type": "heartbeat"}); err != nil {
				return
			}
		}
	}
}

// readLoop discards any inbound control messages; its only job is to
// notice the client went away.
func (h *StreamHub) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			cancel()
			return
		}
	}
}

func (h *StreamHub) add(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *StreamHub) remove(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}
