package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"

	"taptunes/core/playback"
	"taptunes/logger"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is the envelope pushed to state subscribers.
type wsMessage struct {
	Type  string           `json:"type"` // "state" or "library"
	State *playback.Status `json:"state,omitempty"`
}

// StateHub pushes playback snapshots and library-change notifications to
// websocket subscribers, sparing the UI from tight polling.
type StateHub struct {
	engine *playback.Engine

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	stop chan struct{}
}

// NewStateHub creates a StateHub around engine.
func NewStateHub(engine *playback.Engine) *StateHub {
	return &StateHub{
		engine:  engine,
		clients: make(map[*websocket.Conn]struct{}),
		stop:    make(chan struct{}),
	}
}

// Run drives the periodic snapshot push and, when audioDir is non-empty,
// watches the library directory for changes. Blocks until Close.
func (hub *StateHub) Run(audioDir string) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var watchEvents chan fsnotify.Event
	if audioDir != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			logger.Warn("library watcher unavailable", logger.ErrorField(err))
		} else {
			defer watcher.Close()
			if err := watcher.Add(audioDir); err != nil {
				logger.Warn("library watcher add failed",
					logger.String("dir", audioDir),
					logger.ErrorField(err))
			} else {
				watchEvents = make(chan fsnotify.Event, 16)
				go func() {
					for {
						select {
						case ev, ok := <-watcher.Events:
							if !ok {
								return
							}
							if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
								select {
								case watchEvents <- ev:
								default:
								}
							}
						case err, ok := <-watcher.Errors:
							if !ok {
								return
							}
							logger.Warn("library watcher error", logger.ErrorField(err))
						}
					}
				}()
			}
		}
	}

	for {
		select {
		case <-ticker.C:
			if hub.clientCount() > 0 {
				st := hub.engine.Status()
				hub.broadcast(wsMessage{Type: "state", State: &st})
			}
		case ev := <-watchEvents:
			logger.Debug("library changed", logger.String("path", ev.Name))
			hub.broadcast(wsMessage{Type: "library"})
		case <-hub.stop:
			return
		}
	}
}

// Close stops the hub loop and drops all subscribers.
func (hub *StateHub) Close() {
	close(hub.stop)

	hub.mu.Lock()
	defer hub.mu.Unlock()
	for conn := range hub.clients {
		conn.Close()
	}
	hub.clients = make(map[*websocket.Conn]struct{})
}

// BroadcastState pushes st to all subscribers. Wired as the engine's
// change observer.
func (hub *StateHub) BroadcastState(st playback.Status) {
	hub.broadcast(wsMessage{Type: "state", State: &st})
}

// SubscribeHandler upgrades the request and streams state messages until
// the client goes away.
func (hub *StateHub) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	// Send the current snapshot before registering the connection. Once a
	// connection is in clients only broadcast (under hub.mu) may write to
	// it; a second concurrent writer panics inside gorilla/websocket.
	st := hub.engine.Status()
	if err := conn.WriteJSON(wsMessage{Type: "state", State: &st}); err != nil {
		conn.Close()
		return
	}

	hub.mu.Lock()
	hub.clients[conn] = struct{}{}
	hub.mu.Unlock()

	// Reads only serve to detect disconnects; clients don't send data.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				hub.drop(conn)
				return
			}
		}
	}()
}

func (hub *StateHub) broadcast(msg wsMessage) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for conn := range hub.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			delete(hub.clients, conn)
		}
	}
}

func (hub *StateHub) drop(conn *websocket.Conn) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	conn.Close()
	delete(hub.clients, conn)
}

func (hub *StateHub) clientCount() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.clients)
}
