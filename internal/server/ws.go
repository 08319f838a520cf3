package server

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gauciv/triji-app-admin-dashboard/internal/api"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/sdk"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

var activeSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "triji_active_subscriptions",
	Help: "Live query subscriptions currently open across all connections.",
})

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ServeSubscriptions upgrades the request to a WebSocket and multiplexes
// live query subscriptions over it. Each subscribe frame opens one watch on
// the engine, bound to the connection's authenticated identity; snapshot and
// error frames carry the client-chosen subscription id back.
func ServeSubscriptions(h *api.Handler, c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		glog.Infof("subscribe upgrade failed: %v", err)
		return
	}

	s := &subscriber{
		conn:  conn,
		bound: h.Bound(c),
		subs:  map[string]store.CancelFunc{},
	}
	s.run()
}

type subscriber struct {
	conn  *websocket.Conn
	bound store.DocumentStore

	// writeMu serializes frames: watch callbacks fire from dispatcher
	// goroutines while the read loop writes error replies.
	writeMu sync.Mutex
	mu      sync.Mutex
	subs    map[string]store.CancelFunc
}

func (s *subscriber) run() {
	defer s.teardown()

	for {
		var msg sdk.ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case sdk.MsgSubscribe:
			s.subscribe(msg)
		case sdk.MsgUnsubscribe:
			s.unsubscribe(msg.ID)
		default:
			s.send(sdk.ServerMessage{Type: sdk.MsgError, ID: msg.ID, Code: sdk.CodeInternal, Message: "unknown message type"})
		}
	}
}

func (s *subscriber) subscribe(msg sdk.ClientMessage) {
	id := msg.ID
	cancel, err := s.bound.Watch(msg.Query,
		func(snap store.Snapshot) {
			s.send(sdk.ServerMessage{Type: sdk.MsgSnapshot, ID: id, Docs: snap})
		},
		func(err error) {
			s.send(sdk.ServerMessage{Type: sdk.MsgError, ID: id, Code: sdk.WireCode(err), Message: err.Error()})
			s.drop(id)
		})
	if err != nil {
		s.send(sdk.ServerMessage{Type: sdk.MsgError, ID: id, Code: sdk.WireCode(err), Message: err.Error()})
		return
	}

	s.mu.Lock()
	if prev, dup := s.subs[id]; dup {
		prev()
	} else {
		activeSubscriptions.Inc()
	}
	s.subs[id] = cancel
	s.mu.Unlock()
}

func (s *subscriber) unsubscribe(id string) {
	s.mu.Lock()
	cancel, ok := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()
	if ok {
		cancel()
		activeSubscriptions.Dec()
	}
}

// drop forgets a subscription after a terminal error without cancelling it;
// the engine already released the watcher.
func (s *subscriber) drop(id string) {
	s.mu.Lock()
	_, ok := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()
	if ok {
		activeSubscriptions.Dec()
	}
}

func (s *subscriber) teardown() {
	s.mu.Lock()
	cancels := make([]store.CancelFunc, 0, len(s.subs))
	for _, cancel := range s.subs {
		cancels = append(cancels, cancel)
	}
	n := len(s.subs)
	s.subs = map[string]store.CancelFunc{}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	activeSubscriptions.Sub(float64(n))
	s.conn.Close()
}

func (s *subscriber) send(msg sdk.ServerMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		glog.V(1).Infof("subscribe write failed: %v", err)
	}
}
