package admin

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/corviddb/pagecache/pkg/buffer"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventBroadcaster fans out buffer pool lifecycle events to every connected
// websocket client. Register it with BufferPoolManager.SetEventSink.
type EventBroadcaster struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan buffer.Event
	logger  *log.Logger
}

// NewEventBroadcaster builds an empty broadcaster.
func NewEventBroadcaster(logger *log.Logger) *EventBroadcaster {
	if logger == nil {
		logger = log.Default()
	}
	return &EventBroadcaster{
		clients: make(map[*websocket.Conn]chan buffer.Event),
		logger:  logger,
	}
}

// Broadcast is an buffer.EventSink: call it (directly, or via
// BufferPoolManager.SetEventSink(b.Broadcast)) to fan an event out to every
// connected client. When a client's buffer is full the event is dropped for
// that client (which stays connected) rather than allowed to back up the
// buffer pool.
func (b *EventBroadcaster) Broadcast(ev buffer.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn, ch := range b.clients {
		select {
		case ch <- ev:
		default:
			b.logger.Printf("admin: dropping event for slow websocket client %s", conn.RemoteAddr())
		}
	}
}

// ServeHTTP upgrades the connection and streams buffer pool events to it as
// JSON text frames until the client disconnects.
func (b *EventBroadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Printf("admin: websocket upgrade failed: %v", err)
		return
	}

	ch := make(chan buffer.Event, 64)
	b.mu.Lock()
	b.clients[conn] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.clients, conn)
		b.mu.Unlock()
		close(ch)
		conn.Close()
	}()

	// Drain client reads so the connection's read deadline / close frames
	// are observed; this handler never expects inbound messages.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for ev := range ch {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
