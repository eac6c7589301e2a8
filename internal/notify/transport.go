package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// DialFunc opens the byte stream STOMP frames travel over.
type DialFunc func(ctx context.Context, url string) (io.ReadWriteCloser, error)

// DialWebSocket connects to the raw websocket transport of the backend's SockJS endpoint.
func DialWebSocket(ctx context.Context, url string) (io.ReadWriteCloser, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}
	return &wsConn{ws: ws}, nil
}

// wsConn exposes a websocket as a stream: reads run across message boundaries and
// each write is sent as one text message.
type wsConn struct {
	ws     *websocket.Conn
	reader io.Reader

	writeMu sync.Mutex
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}
			c.reader = r
		}
		n, err := c.reader.Read(p)
		if errors.Is(err, io.EOF) {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
