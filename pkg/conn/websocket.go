package conn

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
)

const readLimit = 1 << 20

// WebSocketDialer dials the gateway push endpoint.
type WebSocketDialer struct {
	HTTPClient *http.Client
}

func (d WebSocketDialer) Dial(ctx context.Context, url string) (Socket, error) {
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPClient: d.HTTPClient})
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(readLimit)
	return &wsSocket{c: c}, nil
}

type wsSocket struct {
	c *websocket.Conn
}

// Read returns the next text or binary frame payload.
func (s *wsSocket) Read(ctx context.Context) ([]byte, error) {
	_, data, err := s.c.Read(ctx)
	return data, err
}

func (s *wsSocket) Close() error {
	return s.c.Close(websocket.StatusNormalClosure, "")
}
