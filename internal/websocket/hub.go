package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/buildforge/api/internal/model"
	"github.com/gofiber/contrib/websocket"
)

const sendBuffer = 256

// Client is a single WebSocket subscriber for one job. The hub never closes
// send; it signals removal by closing done, so sends from the connection
// goroutines cannot hit a closed channel.
type Client struct {
	jobID string
	conn  *websocket.Conn
	send  chan []byte
	done  chan struct{}
}

type event struct {
	jobID    string
	data     []byte
	terminal bool
}

// Hub fans job events out to WebSocket subscribers. It remembers the last
// event per job so a client that connects while a job is already running
// gets the current state immediately instead of waiting for the next update.
// The cached entry is dropped when the job reaches a terminal event or when
// its last subscriber disconnects.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[*Client]struct{}
	lastEvent map[string][]byte
	events    chan event
}

// NewHub creates an empty hub. Call Run in a goroutine before use.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[string]map[*Client]struct{}),
		lastEvent: make(map[string][]byte),
		events:    make(chan event, sendBuffer),
	}
}

// Run delivers queued events to subscribers.
func (h *Hub) Run() {
	for ev := range h.events {
		h.deliver(ev)
	}
}

func (h *Hub) deliver(ev event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ev.terminal {
		delete(h.lastEvent, ev.jobID)
	} else {
		h.lastEvent[ev.jobID] = ev.data
	}
	for client := range h.clients[ev.jobID] {
		select {
		case client.send <- ev.data:
		default:
			// Slow consumer, drop it
			h.removeLocked(client)
		}
	}
}

func (h *Hub) subscribe(client *Client) {
	h.mu.Lock()
	if h.clients[client.jobID] == nil {
		h.clients[client.jobID] = make(map[*Client]struct{})
	}
	h.clients[client.jobID][client] = struct{}{}
	last := h.lastEvent[client.jobID]
	h.mu.Unlock()

	if last != nil {
		client.send <- last
	}
	log.Printf("WebSocket subscriber added for job %s", client.jobID)
}

func (h *Hub) unsubscribe(client *Client) {
	h.mu.Lock()
	h.removeLocked(client)
	h.mu.Unlock()
	log.Printf("WebSocket subscriber removed for job %s", client.jobID)
}

// removeLocked is idempotent: done is closed only when the client is still
// registered, so a hub-side drop followed by the connection's own
// unsubscribe never double-closes it.
func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.clients[client.jobID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.done)
	if len(clients) == 0 {
		delete(h.clients, client.jobID)
		delete(h.lastEvent, client.jobID)
	}
}

func (h *Hub) publish(jobID string, msg interface{}, terminal bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal job event: %v", err)
		return
	}
	h.events <- event{jobID: jobID, data: data, terminal: terminal}
}

// BroadcastProgress sends a progress update to the job's subscribers.
func (h *Hub) BroadcastProgress(jobID string, progress int, status model.JobStatus, step string) {
	h.publish(jobID, model.WSProgressMessage{
		Type:        model.WSMessageTypeProgress,
		JobID:       jobID,
		Progress:    progress,
		Status:      status,
		CurrentStep: step,
	}, false)
}

// BroadcastComplete sends the job result to the job's subscribers.
func (h *Hub) BroadcastComplete(jobID string, result interface{}) {
	h.publish(jobID, model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  jobID,
		Result: result,
	}, true)
}

// BroadcastError sends an error message to the job's subscribers.
func (h *Hub) BroadcastError(jobID string, code, message string) {
	h.publish(jobID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	}, true)
}

// HandleConnection serves one subscriber connection until it closes.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		jobID: jobID,
		conn:  c,
		send:  make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
	}

	h.subscribe(client)
	defer h.unsubscribe(client)

	go writeLoop(client)

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			select {
			case client.send <- data:
			case <-client.done:
				return
			}
		}
	}
}

// writeLoop owns all writes to the connection. When the hub drops the
// client it also closes the connection so the read loop unblocks.
func writeLoop(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message := <-client.send:
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-client.done:
			client.conn.WriteMessage(websocket.CloseMessage, []byte{})
			client.conn.Close()
			return
		case <-ticker.C:
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
