package notify

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"stockwatch_backend/models"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// Hub configuration
const (
	MaxStreamClients     = 100
	StreamWriteTimeout   = 10 * time.Second
	StreamPongTimeout    = 60 * time.Second
	StreamPingInterval   = 30 * time.Second
	StreamSendBufferSize = 64
)

// TriggerEvent is the wire shape of one fired alert on the event stream.
type TriggerEvent struct {
	Type        string `json:"type"`
	AlertID     uint   `json:"alert_id"`
	UserID      uint   `json:"user_id"`
	Market      string `json:"market"`
	Ticker      string `json:"ticker"`
	Name        string `json:"name"`
	Direction   string `json:"direction"`
	Price       string `json:"price"`
	TargetPrice string `json:"target_price"`
	Link        string `json:"link"`
	Time        string `json:"time"`
}

// NewTriggerEvent builds the stream event for a fired alert.
func NewTriggerEvent(alert models.Alert, current decimal.Decimal) TriggerEvent {
	return TriggerEvent{
		Type:        "alert_triggered",
		AlertID:     alert.ID,
		UserID:      alert.UserID,
		Market:      alert.Market,
		Ticker:      alert.Ticker,
		Name:        alert.Name,
		Direction:   alert.Direction,
		Price:       current.String(),
		TargetPrice: alert.TargetPrice.String(),
		Link:        instrumentLink(alert.Market, alert.Ticker),
		Time:        time.Now().Format(time.RFC3339),
	}
}

// streamClient represents one connected stream consumer
type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts trigger events to connected websocket sessions. It is a
// supplementary delivery channel next to push; slow consumers are dropped
// rather than allowed to stall a run.
type Hub struct {
	clients    map[*streamClient]bool
	broadcast  chan TriggerEvent
	register   chan *streamClient
	unregister chan *streamClient
	shutdown   chan struct{}
	upgrader   websocket.Upgrader
}

// NewHub creates the event stream hub and starts its broadcast loop.
func NewHub() *Hub {
	hub := &Hub{
		clients:    make(map[*streamClient]bool),
		broadcast:  make(chan TriggerEvent, 256),
		register:   make(chan *streamClient),
		unregister: make(chan *streamClient),
		shutdown:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	go hub.run()
	return hub
}

// Publish queues a trigger event for broadcast. Never blocks; when the
// broadcast buffer is full the event is dropped and logged.
func (h *Hub) Publish(event TriggerEvent) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("Event stream buffer full, dropping trigger event for alert %d", event.AlertID)
	}
}

// Shutdown closes all client connections and stops the hub.
func (h *Hub) Shutdown() {
	close(h.shutdown)
}

// run is the hub loop
func (h *Hub) run() {
	for {
		select {
		case <-h.shutdown:
			for client := range h.clients {
				close(client.send)
				client.conn.Close()
			}
			h.clients = make(map[*streamClient]bool)
			return

		case client := <-h.register:
			if len(h.clients) >= MaxStreamClients {
				client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Server at capacity"))
				client.conn.Close()
				log.Printf("Stream client rejected: max clients reached (%d)", MaxStreamClients)
				continue
			}
			h.clients[client] = true
			log.Printf("Stream client connected. Total clients: %d", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			log.Printf("Stream client disconnected. Total clients: %d", len(h.clients))

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("Error marshaling trigger event: %v", err)
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// HandleWebSocket upgrades an HTTP request into a stream session.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Stream upgrade error: %v", err)
		return
	}

	client := &streamClient{
		conn: conn,
		send: make(chan []byte, StreamSendBufferSize),
	}
	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

// writePump writes events and pings to the connection
func (c *streamClient) writePump() {
	ticker := time.NewTicker(StreamPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(StreamWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(StreamWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection to detect close and keep pongs flowing
func (c *streamClient) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(StreamPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(StreamPongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Stream read error: %v", err)
			}
			break
		}
	}
}
