package livemap

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/ubus-campus/ubus/pkg/model"
	"github.com/ubus-campus/ubus/pkg/positions"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Message struct {
	Type       string                  `json:"type"`
	Generation uint64                  `json:"generation"`
	FetchedAt  time.Time               `json:"fetched_at"`
	Vehicles   []model.VehiclePosition `json:"vehicles"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// enqueue keeps only the newest payload for a client that hasn't caught up
func (c *client) enqueue(payload []byte) {
	for {
		select {
		case c.send <- payload:
			return
		default:
		}

		select {
		case <-c.send:
		default:
		}
	}
}

// Hub pushes the vehicle snapshot to every connected map.
// A snapshot whose vehicles match the last one sent is not broadcast again.
type Hub struct {
	store    *positions.Store
	unlisten func()

	mutex        sync.Mutex
	clients      map[*client]struct{}
	lastVehicles []byte
	lastPayload  []byte
}

func NewHub(store *positions.Store) *Hub {
	hub := &Hub{
		store:   store,
		clients: map[*client]struct{}{},
	}
	hub.lastVehicles, hub.lastPayload = encodeSnapshot(store.Snapshot())
	hub.unlisten = store.Listen(hub.onSnapshot)

	return hub
}

func encodeSnapshot(snapshot *positions.Snapshot) ([]byte, []byte) {
	vehicles := snapshot.Vehicles()
	vehiclesJSON, _ := json.Marshal(vehicles)

	message := Message{
		Type:     "vehicles",
		Vehicles: vehicles,
	}
	if snapshot != nil {
		message.Generation = snapshot.Generation
		message.FetchedAt = snapshot.FetchedAt
	}
	payload, _ := json.Marshal(message)

	return vehiclesJSON, payload
}

func (h *Hub) onSnapshot(snapshot *positions.Snapshot) {
	vehiclesJSON, payload := encodeSnapshot(snapshot)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if bytes.Equal(vehiclesJSON, h.lastVehicles) {
		return
	}
	h.lastVehicles = vehiclesJSON
	h.lastPayload = payload

	for c := range h.clients {
		c.enqueue(payload)
	}
	broadcastsTotal.Inc()
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 1),
	}

	h.mutex.Lock()
	h.clients[c] = struct{}{}
	c.enqueue(h.lastPayload)
	connectedClients.Set(float64(len(h.clients)))
	h.mutex.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	connectedClients.Set(float64(len(h.clients)))
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()

	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Debug().Err(err).Msg("Websocket write failed")
			h.remove(c)
			return
		}
	}

	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// readPump only exists to notice the client going away
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return len(h.clients)
}

// Close stops listening to the store and disconnects every client
func (h *Hub) Close() {
	h.unlisten()

	h.mutex.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mutex.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}
