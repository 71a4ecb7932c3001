// Package stream pushes game events to websocket subscribers as protojson
// encoded messages.
package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/internal/game"
	"github.com/signalsfoundry/siege-simulator/internal/logging"
	"github.com/signalsfoundry/siege-simulator/internal/wire"
	"github.com/signalsfoundry/siege-simulator/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// SnapshotFunc fetches the current state for a new subscriber.
type SnapshotFunc func(ctx context.Context) (game.Snapshot, error)

// Hub fans game events out to websocket subscribers. It implements
// game.Listener: hooks encode once and hand the frame to every subscriber
// without blocking. A subscriber whose buffer is full is disconnected.
type Hub struct {
	log      logging.Logger
	snapshot SnapshotFunc
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub returns an empty hub. snapshot may be nil, in which case new
// subscribers get no initial state message.
func NewHub(snapshot SnapshotFunc, log logging.Logger) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	return &Hub{
		log:      log.With(logging.Component("stream")),
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the peer leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(ctx, "websocket upgrade failed", logging.Err(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	if h.snapshot != nil {
		snap, err := h.snapshot(ctx)
		if err != nil {
			h.log.Warn(ctx, "initial snapshot failed", logging.Err(err))
		} else if frame, err := encode(wire.State(snap)); err == nil {
			c.send <- frame
		}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug(ctx, "stream subscriber connected",
		logging.String("remote", r.RemoteAddr),
		logging.Int("subscribers", n),
	)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// readPump discards client frames and keeps the read deadline alive.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug(context.Background(), "stream subscriber read failed", logging.Err(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func encode(msg *structpb.Struct) ([]byte, error) {
	return protojson.Marshal(msg)
}

func (h *Hub) broadcast(msg *structpb.Struct) {
	frame, err := encode(msg)
	if err != nil {
		h.log.Error(context.Background(), "encode stream event", logging.Err(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			delete(h.clients, c)
			close(c.send)
			h.log.Warn(context.Background(), "dropping slow stream subscriber")
		}
	}
}

func (h *Hub) OnGameStart(snap game.Snapshot) {
	h.broadcast(wire.GameStart(snap))
}

func (h *Hub) OnTimeChange(remaining int) {
	h.broadcast(wire.TimeChange(remaining))
}

func (h *Hub) OnTimeExpired(winning model.Team) {
	h.broadcast(wire.TimeExpired(winning))
}

func (h *Hub) OnRobotSpawn(team model.Team, robot *core.Robot, level int) {
	h.broadcast(wire.RobotSpawn(team, robot, level))
}

func (h *Hub) OnRobotDamage(team model.Team, robot *core.Robot, health int) {
	h.broadcast(wire.RobotDamage(team, robot, health))
}

func (h *Hub) OnTowerDamage(team model.Team, health int) {
	h.broadcast(wire.TowerDamage(team, health))
}

func (h *Hub) OnPowerupsChange(team model.Team, amount int) {
	h.broadcast(wire.PowerupsChange(team, amount))
}

func (h *Hub) OnPowerupSpawn(at model.Location) {
	h.broadcast(wire.PowerupSpawn(at))
}

func (h *Hub) OnGameEnd(winner model.Team, reason game.EndReason) {
	h.broadcast(wire.GameEnd(winner, reason))
}
