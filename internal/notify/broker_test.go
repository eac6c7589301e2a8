package notify

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

type frame struct {
	command string
	headers map[string]string
	body    string
}

func parseFrame(raw string) frame {
	raw = strings.TrimLeft(raw, "\r\n")
	if raw == "" {
		return frame{}
	}
	head, body, _ := strings.Cut(raw, "\n\n")
	lines := strings.Split(head, "\n")
	f := frame{command: strings.TrimSpace(lines[0]), headers: map[string]string{}, body: body}
	for _, line := range lines[1:] {
		k, v, ok := strings.Cut(strings.TrimRight(line, "\r"), ":")
		if ok {
			if _, seen := f.headers[k]; !seen {
				f.headers[k] = v
			}
		}
	}
	return f
}

type brokerConn struct {
	ws   *websocket.Conn
	mu   sync.Mutex
	subs map[string]string
}

func (c *brokerConn) send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, []byte(text))
}

// stompBroker is a minimal STOMP 1.2 server over websocket: it answers CONNECT,
// records subscriptions and pushes MESSAGE frames on demand.
type stompBroker struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu        sync.Mutex
	conns     []*brokerConn
	connects  []map[string]string
	messageID int
}

func newBroker(t *testing.T) *stompBroker {
	b := &stompBroker{t: t}
	b.server = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.server.Close)
	return b
}

func (b *stompBroker) URL() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http") + "/ws/websocket"
}

func (b *stompBroker) handle(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &brokerConn{ws: ws, subs: map[string]string{}}
	defer ws.Close()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		for _, raw := range strings.Split(string(data), "\x00") {
			f := parseFrame(raw)
			switch f.command {
			case "CONNECT", "STOMP":
				b.mu.Lock()
				b.conns = append(b.conns, conn)
				b.connects = append(b.connects, f.headers)
				b.mu.Unlock()
				_ = conn.send("CONNECTED\nversion:1.2\nheart-beat:0,0\n\n\x00")
			case "SUBSCRIBE":
				b.mu.Lock()
				conn.subs[f.headers["destination"]] = f.headers["id"]
				b.mu.Unlock()
			case "DISCONNECT":
				if receipt := f.headers["receipt"]; receipt != "" {
					_ = conn.send("RECEIPT\nreceipt-id:" + receipt + "\n\n\x00")
				}
				return
			}
		}
	}
}

// Connects returns the CONNECT headers of every connection so far.
func (b *stompBroker) Connects() []map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]string(nil), b.connects...)
}

// Subscribed reports whether the latest connection subscribed to both topics.
func (b *stompBroker) Subscribed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.conns) == 0 {
		return false
	}
	c := b.conns[len(b.conns)-1]
	return c.subs[TopicNotifications] != "" && c.subs[TopicDashboard] != ""
}

// Publish sends body on topic to the latest connection.
func (b *stompBroker) Publish(topic, body string) {
	b.t.Helper()
	b.mu.Lock()
	c := b.conns[len(b.conns)-1]
	id := c.subs[topic]
	b.messageID++
	msgID := b.messageID
	b.mu.Unlock()

	msg := fmt.Sprintf("MESSAGE\ndestination:%s\nsubscription:%s\nmessage-id:%d\ncontent-type:application/json\ncontent-length:%d\n\n%s\x00",
		topic, id, msgID, len(body), body)
	if err := c.send(msg); err != nil {
		b.t.Errorf("publish %s: %v", topic, err)
	}
}

// Drop closes the latest connection as a network failure would.
func (b *stompBroker) Drop() {
	b.mu.Lock()
	c := b.conns[len(b.conns)-1]
	b.mu.Unlock()
	_ = c.ws.Close()
}
