package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/EbinDavis252/Aqua-risk/internal/metrics"
)

// StreamEvent describes websocket payloads emitted after each assessment.
type StreamEvent struct {
	Type       string              `json:"type"`
	Assessment *AssessmentResponse `json:"assessment,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// AssessmentNotifier keeps track of active websocket clients and
// broadcasts recorded assessments.
type AssessmentNotifier struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	last    *StreamEvent
}

// NewAssessmentNotifier constructs a notifier instance.
func NewAssessmentNotifier() *AssessmentNotifier {
	return &AssessmentNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and replays the latest event.
func (n *AssessmentNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	last := n.last
	n.mu.Unlock()
	metrics.StreamClients.Inc()

	if last != nil {
		_ = client.writeJSON(*last)
	}
	return client
}

// Unregister removes the websocket client from the notifier and closes the socket.
func (n *AssessmentNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	_, ok := n.clients[client]
	delete(n.clients, client)
	n.mu.Unlock()
	if ok {
		metrics.StreamClients.Dec()
	}
	_ = client.conn.Close()
}

// Broadcast sends the supplied event to all registered websocket clients.
func (n *AssessmentNotifier) Broadcast(event StreamEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	snapshot := event
	n.last = &snapshot
	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			metrics.StreamClients.Dec()
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

// Clients returns the number of connected clients.
func (n *AssessmentNotifier) Clients() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
