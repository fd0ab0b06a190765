package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ecg-monitor/backend/internal/ecg"
	"github.com/ecg-monitor/backend/internal/metrics"
)

// recentSamples / recentBPM bound how much of the retained window is pushed
// to dashboards per frame.
const (
	recentSamples = 1000
	recentBPM     = 300
	smoothWindow  = 5
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster pushes data frames to every connected dashboard on a fixed
// cadence and coalesces event activations into throttled alert frames. It is
// also the ingestion loop's ws observer.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool

	session  *ecg.Session
	throttle time.Duration

	pendingEvents []string
	flushTimer    *time.Timer
	flushMu       sync.Mutex
}

func NewBroadcaster(session *ecg.Session, snapshotInterval, alertThrottle time.Duration) *Broadcaster {
	b := &Broadcaster{
		clients:  make(map[*client]bool),
		session:  session,
		throttle: alertThrottle,
	}

	go b.dataLoop(snapshotInterval)

	return b
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)

	b.mu.Lock()
	b.clients[c] = true
	n := len(b.clients)
	b.mu.Unlock()
	metrics.WSClients.Set(float64(n))

	// New clients get a frame immediately instead of waiting a tick.
	data, err := json.Marshal(b.dataFrame())
	if err == nil {
		select {
		case c.send <- data:
		default:
		}
	}

	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	n := len(b.clients)
	b.mu.Unlock()
	metrics.WSClients.Set(float64(n))
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// BPMUpdated implements the runner observer. BPM rides the periodic data
// frames, so there is nothing to push eagerly.
func (b *Broadcaster) BPMUpdated(bpm int, t float64) {}

// EventsActivated queues newly active events for a coalesced alert frame.
func (b *Broadcaster) EventsActivated(kinds []ecg.EventKind, t float64) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	for _, k := range kinds {
		b.pendingEvents = append(b.pendingEvents, k.String())
	}
	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flushAlerts)
	}
}

func (b *Broadcaster) flushAlerts() {
	b.flushMu.Lock()
	events := b.pendingEvents
	b.pendingEvents = nil
	b.flushTimer = nil
	b.flushMu.Unlock()

	if len(events) == 0 {
		return
	}

	b.broadcast(WSMessage{
		Type: MsgAlert,
		Payload: AlertPayload{
			Events: events,
			Ts:     time.Now().UnixMilli(),
		},
	})
}

// NotifyReset tells connected dashboards to drop their plotted history.
func (b *Broadcaster) NotifyReset() {
	b.broadcast(WSMessage{Type: MsgReset})
}

func (b *Broadcaster) dataLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if b.ClientCount() == 0 {
			continue
		}
		b.broadcast(b.dataFrame())
	}
}

func (b *Broadcaster) dataFrame() WSMessage {
	snap := b.session.Snapshot()
	return WSMessage{
		Type:    MsgData,
		Payload: BuildDataPayload(snap),
	}
}

// BuildDataPayload shapes a snapshot for dashboards: the recent raw window
// smoothed for plotting, plus the BPM trace and active flags.
func BuildDataPayload(snap ecg.Snapshot) DataPayload {
	raw := snap.Samples
	if len(raw) > recentSamples {
		raw = raw[len(raw)-recentSamples:]
	}
	hist := snap.BPMHistory
	if len(hist) > recentBPM {
		hist = hist[len(hist)-recentBPM:]
	}
	if hist == nil {
		hist = []int{}
	}
	events := snap.ActiveEvents
	if events == nil {
		events = []string{}
	}
	return DataPayload{
		ECG:        smoothSeries(raw, smoothWindow),
		BPM:        snap.CurrentBPM,
		BPMHistory: hist,
		Events:     events,
	}
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			// Client can't keep up, disconnect it.
			log.Printf("ws client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}
