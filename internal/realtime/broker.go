package realtime

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Message types sent over the stream.
const (
	TypeDocumentUploaded = "document_uploaded"
	TypeDocumentReviewed = "document_reviewed"
	TypePaymentSubmitted = "payment_submitted"
	TypePaymentReviewed  = "payment_reviewed"
)

// Message is the shape of every event pushed to a client.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Client is one open stream. A user may hold several (one per tab).
type Client struct {
	UserID int64
	Admin  bool
	C      chan []byte
}

// Broker is the central hub for managing SSE client connections.
type Broker struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewBroker creates a new Broker instance.
func NewBroker() *Broker {
	return &Broker{
		clients: make(map[*Client]struct{}),
	}
}

// AddClient registers a new connection for the user. Admin connections also
// receive every admin broadcast.
func (b *Broker) AddClient(userID int64, admin bool) *Client {
	c := &Client{UserID: userID, Admin: admin, C: make(chan []byte, 10)}

	b.mu.Lock()
	b.clients[c] = struct{}{}
	n := len(b.clients)
	b.mu.Unlock()

	logrus.WithFields(logrus.Fields{"user_id": userID, "admin": admin, "clients": n}).Debug("sse client connected")
	return c
}

// RemoveClient unregisters a connection and closes its channel.
func (b *Broker) RemoveClient(c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.C)
		logrus.WithField("user_id", c.UserID).Debug("sse client disconnected")
	}
}

// NotifyUser sends a message to every connection of the user.
func (b *Broker) NotifyUser(userID int64, message Message) {
	b.send(message, func(c *Client) bool { return c.UserID == userID })
}

// NotifyAdmins sends a message to every admin connection.
func (b *Broker) NotifyAdmins(message Message) {
	b.send(message, func(c *Client) bool { return c.Admin })
}

func (b *Broker) send(message Message, match func(*Client) bool) {
	payload, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).WithField("type", message.Type).Error("could not marshal sse message")
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for c := range b.clients {
		if !match(c) {
			continue
		}
		// Never block the caller on a slow client.
		select {
		case c.C <- payload:
		default:
			logrus.WithFields(logrus.Fields{"user_id": c.UserID, "type": message.Type}).Warn("sse channel full, dropping message")
		}
	}
}
