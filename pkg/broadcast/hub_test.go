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

package broadcast

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwatch/otmap/pkg/logger"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(logger.NewTestLogger())
	srv := httptest.NewServer(hub)

	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	if resp != nil {
		resp.Body.Close()
	}

	t.Cleanup(func() { conn.Close() })

	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(msg))
}

// readMessage reads one frame with a short deadline so a missing message
// fails instead of hanging.
func readMessage(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg serverMessage

	require.NoError(t, conn.ReadJSON(&msg))

	return msg
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)

	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), want)
		}

		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastWithoutSubscribers(t *testing.T) {
	hub, _ := newTestHub(t)

	// No clients connected: broadcasting is a harmless no-op.
	hub.Broadcast(ChannelDevices, map[string]string{"id": "dev-1"})
	assert.Equal(t, 0, hub.ClientCount())
}

func TestBroadcastToSubscriber(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	send(t, conn, clientMessage{Type: "subscribe", Channel: ChannelDevices})

	// Subscription handling is asynchronous on the read pump.
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast(ChannelDevices, map[string]string{"id": "dev-1", "name": "PLC-1"})

	msg := readMessage(t, conn)
	assert.Equal(t, "devices:update", msg.Type)
	assert.Equal(t, ChannelDevices, msg.Channel)
	assert.False(t, msg.Timestamp.IsZero())

	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "dev-1", data["id"])
}

func TestBroadcastSkipsUnsubscribed(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	send(t, conn, clientMessage{Type: "subscribe", Channel: ChannelAlerts})
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast(ChannelDevices, map[string]string{"id": "dev-1"})
	hub.Broadcast(ChannelAlerts, map[string]string{"id": "alert-1"})

	// The first frame to arrive must be the alerts message; the devices
	// broadcast was never queued for this client.
	msg := readMessage(t, conn)
	assert.Equal(t, "alerts:update", msg.Type)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	send(t, conn, clientMessage{Type: "subscribe", Channel: ChannelTopology})
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast(ChannelTopology, "first")
	first := readMessage(t, conn)
	assert.Equal(t, "topology:update", first.Type)

	send(t, conn, clientMessage{Type: "unsubscribe", Channel: ChannelTopology})
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast(ChannelTopology, "second")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))

	var msg serverMessage

	err := conn.ReadJSON(&msg)
	assert.Error(t, err, "expected no delivery after unsubscribe")
}

func TestApplicationPing(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	send(t, conn, clientMessage{Type: "ping"})

	msg := readMessage(t, conn)
	assert.Equal(t, "pong", msg.Type)
}

func TestMalformedFrameIgnored(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	// The connection survives and keeps processing messages.
	send(t, conn, clientMessage{Type: "ping"})

	msg := readMessage(t, conn)
	assert.Equal(t, "pong", msg.Type)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestUnknownChannelSubscriptionAccepted(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	send(t, conn, clientMessage{Type: "subscribe", Channel: "weather"})
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast("weather", "sunny")

	msg := readMessage(t, conn)
	assert.Equal(t, "weather:update", msg.Type)
}

func TestSendToClient(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	hub.mu.RLock()

	var id string
	for cid := range hub.clients {
		id = cid
	}

	hub.mu.RUnlock()

	require.True(t, hub.SendToClient(id, "hello"))
	assert.False(t, hub.SendToClient("no-such-client", "hello"))

	msg := readMessage(t, conn)
	assert.Equal(t, "message", msg.Type)
	assert.Equal(t, "hello", msg.Data)
}

// Fan-out and disconnect race freely in production: the pipeline and the
// NATS consumer broadcast from their own goroutines while read pumps drop
// clients. Neither side may ever send on a closed channel.
func TestBroadcastDuringConcurrentDisconnect(t *testing.T) {
	hub := NewHub(logger.NewTestLogger())

	const clients = 200

	for i := 0; i < clients; i++ {
		client := &Client{
			id:       fmt.Sprintf("client-%d", i),
			hub:      hub,
			send:     make(chan []byte, 1),
			channels: map[string]struct{}{ChannelDevices: {}},
		}

		hub.mu.Lock()
		hub.clients[client.id] = client
		hub.mu.Unlock()
	}

	hub.mu.RLock()

	victims := make([]*Client, 0, clients)
	for _, client := range hub.clients {
		victims = append(victims, client)
	}

	hub.mu.RUnlock()

	var wg sync.WaitGroup

	wg.Add(3)

	go func() {
		defer wg.Done()

		for i := 0; i < 500; i++ {
			hub.Broadcast(ChannelDevices, i)
		}
	}()

	go func() {
		defer wg.Done()

		for i := 0; i < 500; i++ {
			hub.Broadcast(ChannelDevices, i)
		}
	}()

	go func() {
		defer wg.Done()

		for _, client := range victims {
			hub.remove(client)
		}
	}()

	wg.Wait()

	assert.Equal(t, 0, hub.ClientCount())
}

func TestClientCountTracksDisconnects(t *testing.T) {
	hub, srv := newTestHub(t)

	a := dial(t, srv)
	dial(t, srv)
	waitForClients(t, hub, 2)

	a.Close()
	waitForClients(t, hub, 1)

	hub.Close()
	waitForClients(t, hub, 0)
}
