/*
 * Copyright 2026 Gridwatch Systems, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package broadcast fans realtime topology updates out to WebSocket
// subscribers over named channels.
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gridwatch/otmap/pkg/logger"
)

// Well-known channel names. Subscriptions to other names are accepted; they
// simply never receive server-initiated messages.
const (
	ChannelTopology    = "topology"
	ChannelDevices     = "devices"
	ChannelAlerts      = "alerts"
	ChannelConnections = "connections"
	ChannelTelemetry   = "telemetry"
	ChannelSystem      = "system"
)

const (
	sendBuffer   = 64
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 4096
)

// clientMessage is what subscribers send: subscribe/unsubscribe/ping.
type clientMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
}

// serverMessage is the envelope for everything the hub sends.
type serverMessage struct {
	Type      string      `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Client is one WebSocket subscriber with its channel subscriptions.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	closed   bool
	channels map[string]struct{}
}

// ID returns the client's connection id.
func (c *Client) ID() string { return c.id }

func (c *Client) subscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.channels[channel]

	return ok
}

func (c *Client) subscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.channels[channel] = struct{}{}
}

func (c *Client) unsubscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.channels, channel)
}

// trySend queues a payload without blocking. It returns false when the
// client's buffer is full or the client has been shut down. The guard shares
// the client mutex with shutdown so a concurrent disconnect can never turn
// this into a send on a closed channel.
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// shutdown closes the send channel exactly once, under the same mutex
// trySend holds while sending.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.send)
}

// Hub tracks connected clients and routes published messages to the ones
// subscribed to each channel.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	upgrader websocket.Upgrader
	log      logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log.WithComponent("broadcast"),
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// ServeHTTP upgrades the request and runs the client's read and write pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")

		return
	}

	client := &Client{
		id:       uuid.New().String(),
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		channels: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	h.log.Info().Str("client_id", client.id).Str("remote_addr", r.RemoteAddr).Msg("client connected")

	go client.writePump()
	go client.readPump()
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()

	if _, ok := h.clients[client.id]; !ok {
		h.mu.Unlock()

		return
	}

	delete(h.clients, client.id)
	h.mu.Unlock()

	client.shutdown()

	h.log.Info().Str("client_id", client.id).Msg("client disconnected")
}

// Broadcast publishes data on a channel to every subscribed client. Clients
// whose send buffers are full are disconnected rather than allowed to stall
// delivery to the others.
func (h *Hub) Broadcast(channel string, data interface{}) {
	payload, err := json.Marshal(serverMessage{
		Type:      channel + ":update",
		Channel:   channel,
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.log.Error().Err(err).Str("channel", channel).Msg("failed to encode broadcast message")

		return
	}

	h.mu.RLock()

	targets := make([]*Client, 0, len(h.clients))

	for _, client := range h.clients {
		if client.subscribed(channel) {
			targets = append(targets, client)
		}
	}

	h.mu.RUnlock()

	for _, client := range targets {
		if !client.trySend(payload) {
			h.log.Warn().Str("client_id", client.id).Str("channel", channel).Msg("send buffer full, dropping client")
			h.remove(client)
		}
	}
}

// SendToClient delivers a message to a single client by id.
func (h *Hub) SendToClient(id string, data interface{}) bool {
	h.mu.RLock()
	client, ok := h.clients[id]
	h.mu.RUnlock()

	if !ok {
		return false
	}

	payload, err := json.Marshal(serverMessage{
		Type:      "message",
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		return false
	}

	if !client.trySend(payload) {
		h.remove(client)

		return false
	}

	return true
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))

	for _, client := range h.clients {
		clients = append(clients, client)
	}

	h.mu.Unlock()

	for _, client := range clients {
		h.remove(client)
	}
}

// readPump consumes subscription and ping messages until the connection
// drops. Malformed frames are ignored without closing the connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug().Err(err).Str("client_id", c.id).Msg("unexpected close")
			}

			return
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return
		}

		var msg clientMessage

		if err := json.Unmarshal(raw, &msg); err != nil {
			c.hub.log.Debug().Str("client_id", c.id).Msg("ignoring malformed message")

			continue
		}

		switch msg.Type {
		case "subscribe":
			if msg.Channel != "" {
				c.subscribe(msg.Channel)
			}
		case "unsubscribe":
			if msg.Channel != "" {
				c.unsubscribe(msg.Channel)
			}
		case "ping":
			c.pong()
		default:
			c.hub.log.Debug().Str("client_id", c.id).Str("type", msg.Type).Msg("ignoring unknown message type")
		}
	}
}

func (c *Client) pong() {
	payload, err := json.Marshal(serverMessage{Type: "pong", Timestamp: time.Now()})
	if err != nil {
		return
	}

	c.trySend(payload)
}

// writePump drains the send channel to the connection and keeps the
// connection alive with protocol pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}

			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})

				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
