package events

import (
	"context"
	"time"

	"github.com/charitybid/auctioncore/internal/shared/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Hub keeps the registry of live-feed clients grouped by auction id and fans
// broadcast messages out to them. The feed is one-way: clients only listen.
type Hub struct {
	// registered clients, keyed by auction id
	clients    map[string]map[*Client]bool
	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
}

// Client represents one websocket subscription to an auction's feed.
type Client struct {
	Hub *Hub
	// The websocket connection.
	Conn *websocket.Conn
	// Buffered channel of outbound messages.
	Send chan []byte
	// The auction this client listens to.
	AuctionID string
	// Unique identifier for the client.
	ID string
}

type Message struct {
	AuctionID string
	Data      []byte
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan *Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]map[*Client]bool),
	}
}

// Run starts the hub listening on its channels until the context is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	log.Info("Event hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info("Event hub shutting down")
			for _, clients := range h.clients {
				for client := range clients {
					close(client.Send)
				}
			}
			return

		case client := <-h.register:
			if _, ok := h.clients[client.AuctionID]; !ok {
				h.clients[client.AuctionID] = make(map[*Client]bool)
			}
			h.clients[client.AuctionID][client] = true
			log.Info("Feed client registered",
				zap.String("clientID", client.ID),
				zap.String("auctionID", client.AuctionID),
			)

		case client := <-h.unregister:
			if clients, ok := h.clients[client.AuctionID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.AuctionID)
					}
					log.Info("Feed client unregistered",
						zap.String("clientID", client.ID),
						zap.String("auctionID", client.AuctionID),
					)
				}
			}

		case message := <-h.broadcast:
			for client := range h.clients[message.AuctionID] {
				select {
				case client.Send <- message.Data:
				default:
					// slow consumer, drop it
					delete(h.clients[message.AuctionID], client)
					close(client.Send)
				}
			}
		}
	}
}

// Broadcast queues a payload for every client subscribed to the auction.
// Non-blocking: when the hub is saturated the message is dropped, the feed is
// best-effort.
func (h *Hub) Broadcast(auctionID string, data []byte) {
	select {
	case h.broadcast <- &Message{AuctionID: auctionID, Data: data}:
	default:
		log.Warn("Event hub saturated, dropping broadcast",
			zap.String("auctionID", auctionID),
		)
	}
}

// Register attaches a client and starts its write pump. The caller runs
// Listen, which blocks for the lifetime of the connection.
func (h *Hub) Register(client *Client) {
	h.register <- client
	go client.writePump()
}

// Listen discards inbound frames and tears the client down on error; the
// feed has no client-to-server protocol. Blocks until the connection drops.
func (c *Client) Listen() {
	defer func() {
		c.Hub.unregister <- c
		_ = c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
