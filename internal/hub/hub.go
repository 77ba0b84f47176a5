package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Subscription narrows what a dashboard client receives. Empty fields match
// everything.
type Subscription struct {
	OrderID   string
	OrderType string
}

type Client struct {
	ID           string
	Role         string
	Send         chan []byte
	Subscription Subscription
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

type SubscribeMessage struct {
	Action    string `json:"action"`
	OrderID   string `json:"order_id"`
	OrderType string `json:"order_type"`
}

// Envelope is the frame pushed to clients.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func New() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers payload to every matching client without blocking. Slow
// clients lose the frame.
func (h *Hub) Broadcast(payload []byte, meta Subscription) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, client := range h.clients {
		if !match(client.Subscription, meta) {
			continue
		}
		select {
		case client.Send <- payload:
			delivered++
		default:
			log.Printf("hub drop client=%s", client.ID)
		}
	}
	return delivered
}

func match(sub Subscription, meta Subscription) bool {
	if sub.OrderID != "" && meta.OrderID != sub.OrderID {
		return false
	}
	if sub.OrderType != "" && meta.OrderType != sub.OrderType {
		return false
	}
	return true
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}

// MetaFromPayload reads the routing keys out of an outbox payload.
func MetaFromPayload(payload []byte) Subscription {
	var data struct {
		OrderID   string `json:"order_id"`
		OrderType string `json:"order_type"`
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		return Subscription{}
	}
	return Subscription{OrderID: data.OrderID, OrderType: data.OrderType}
}
