// server/hub.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shahank42/hyper-typer/game"
	"github.com/shahank42/hyper-typer/logger"
)

// Hub maintains one watcher per subscribed room. A watcher polls the
// consistent room snapshot and pushes it to every subscriber whenever it
// changes, which is how clients observe countdowns, progress updates and
// the room pointer swinging to a replay game, all without navigating.
type Hub struct {
	service  *game.Service
	interval time.Duration

	mutex    sync.Mutex
	watchers map[string]*roomWatcher
	closed   bool
}

// NewHub creates a hub polling room snapshots every 250ms.
func NewHub(service *game.Service) *Hub {
	return &Hub{
		service:  service,
		interval: 250 * time.Millisecond,
		watchers: make(map[string]*roomWatcher),
	}
}

// Subscribe attaches a websocket connection to a room's snapshot feed. The
// hub owns the connection from here on and closes it when the room is
// deleted or the hub shuts down.
func (h *Hub) Subscribe(roomID string, conn *websocket.Conn) {
	sub := &subscriber{conn: conn}

	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		conn.Close()
		return
	}
	watcher, ok := h.watchers[roomID]
	if !ok {
		watcher = newRoomWatcher(h, roomID)
		h.watchers[roomID] = watcher
		go watcher.run()
	}
	h.mutex.Unlock()

	watcher.add(sub)

	// Reader goroutine: we ignore client frames, but reading is what
	// detects a closed connection.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				watcher.remove(sub)
				conn.Close()
				return
			}
		}
	}()
}

// Close stops every watcher and drops all subscribers.
func (h *Hub) Close() {
	h.mutex.Lock()
	h.closed = true
	watchers := make([]*roomWatcher, 0, len(h.watchers))
	for _, w := range h.watchers {
		watchers = append(watchers, w)
	}
	h.watchers = make(map[string]*roomWatcher)
	h.mutex.Unlock()

	for _, w := range watchers {
		w.stop()
	}
}

func (h *Hub) dropWatcher(roomID string) {
	h.mutex.Lock()
	delete(h.watchers, roomID)
	h.mutex.Unlock()
}

type subscriber struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
}

func (s *subscriber) send(payload []byte) error {
	s.sendMutex.Lock()
	defer s.sendMutex.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

type roomWatcher struct {
	hub    *Hub
	roomID string

	mutex       sync.Mutex
	subscribers map[*subscriber]struct{}
	lastPayload []byte

	stopChan chan struct{}
	stopOnce sync.Once
}

func newRoomWatcher(hub *Hub, roomID string) *roomWatcher {
	return &roomWatcher{
		hub:         hub,
		roomID:      roomID,
		subscribers: make(map[*subscriber]struct{}),
		stopChan:    make(chan struct{}),
	}
}

func (w *roomWatcher) add(sub *subscriber) {
	w.mutex.Lock()
	w.subscribers[sub] = struct{}{}
	payload := w.lastPayload
	w.mutex.Unlock()

	// New subscribers get the current state immediately rather than waiting
	// for the next change.
	if payload != nil {
		if err := sub.send(payload); err != nil {
			w.remove(sub)
		}
	}
}

func (w *roomWatcher) remove(sub *subscriber) {
	w.mutex.Lock()
	delete(w.subscribers, sub)
	empty := len(w.subscribers) == 0
	w.mutex.Unlock()

	if empty {
		w.hub.dropWatcher(w.roomID)
		w.stop()
	}
}

func (w *roomWatcher) stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

func (w *roomWatcher) run() {
	ticker := time.NewTicker(w.hub.interval)
	defer ticker.Stop()

	w.poll()
	for {
		select {
		case <-ticker.C:
			if done := w.poll(); done {
				return
			}
		case <-w.stopChan:
			w.closeAll()
			return
		}
	}
}

// poll fetches the snapshot and broadcasts it if changed. Returns true when
// the room is gone and the watcher should exit.
func (w *roomWatcher) poll() bool {
	snapshot, err := w.hub.service.Get(context.Background(), w.roomID)
	if err != nil {
		logger.Log.Errorw("snapshot poll failed", "roomId", w.roomID, "error", err)
		return false
	}

	// A nil snapshot means the room was torn down; tell subscribers and
	// shut the watcher down.
	if snapshot == nil {
		w.broadcast([]byte("null"))
		w.hub.dropWatcher(w.roomID)
		w.stop()
		w.closeAll()
		return true
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		logger.Log.Errorw("snapshot marshal failed", "roomId", w.roomID, "error", err)
		return false
	}

	w.mutex.Lock()
	changed := !bytes.Equal(payload, w.lastPayload)
	w.lastPayload = payload
	w.mutex.Unlock()

	if changed {
		w.broadcast(payload)
	}
	return false
}

func (w *roomWatcher) broadcast(payload []byte) {
	w.mutex.Lock()
	subs := make([]*subscriber, 0, len(w.subscribers))
	for sub := range w.subscribers {
		subs = append(subs, sub)
	}
	w.mutex.Unlock()

	for _, sub := range subs {
		if err := sub.send(payload); err != nil {
			w.mutex.Lock()
			delete(w.subscribers, sub)
			w.mutex.Unlock()
			sub.conn.Close()
		}
	}
}

func (w *roomWatcher) closeAll() {
	w.mutex.Lock()
	subs := make([]*subscriber, 0, len(w.subscribers))
	for sub := range w.subscribers {
		subs = append(subs, sub)
	}
	w.subscribers = make(map[*subscriber]struct{})
	w.mutex.Unlock()

	for _, sub := range subs {
		sub.conn.Close()
	}
}
