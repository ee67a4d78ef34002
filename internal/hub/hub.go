package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"clinicq/ehr-service/internal/models"
)

type Subscription struct {
	ServiceType string
	Team        string
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

// Hub fans queue change events out to connected staff displays.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

type SubscribeMessage struct {
	Action      string `json:"action"`
	ServiceType string `json:"service_type"`
	Team        string `json:"team"`
}

type eventEnvelope struct {
	Type      string            `json:"type"`
	Entry     models.QueueEntry `json:"entry"`
	CreatedAt time.Time         `json:"created_at"`
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
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

// Publish implements the queue service's Notifier seam.
func (h *Hub) Publish(eventType string, entry models.QueueEntry) {
	payload, err := json.Marshal(eventEnvelope{
		Type:      eventType,
		Entry:     entry,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("hub marshal event: %v", err)
		return
	}
	h.broadcast(payload, Subscription{ServiceType: entry.ServiceType, Team: entry.Team})
}

func (h *Hub) broadcast(payload []byte, meta Subscription) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.Subscription, meta) {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			log.Printf("drop message for client %s", client.ID)
		}
	}
}

func match(sub Subscription, meta Subscription) bool {
	if sub.ServiceType != "" && meta.ServiceType != sub.ServiceType {
		return false
	}
	if sub.Team != "" && meta.Team != sub.Team {
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
