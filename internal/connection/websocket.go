package connection

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"nhooyr.io/websocket"
)

// The websocket transport carries the exact TCP byte stream inside binary
// messages, so frames may span or share messages and the same accumulator
// logic applies on both ends.

// AcceptWebSocket upgrades an HTTP request and returns the websocket as a
// net.Conn. The returned conn lives until ctx is cancelled or it is closed.
func AcceptWebSocket(ctx context.Context, w http.ResponseWriter, r *http.Request) (net.Conn, error) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return nil, fmt.Errorf("accepting websocket: %w", err)
	}
	// Remove the default read limit so large frames are not rejected.
	ws.SetReadLimit(-1)
	return websocket.NetConn(ctx, ws, websocket.MessageBinary), nil
}

// DialWebSocket connects to a ws:// or wss:// endpoint and returns it as a
// net.Conn. Cancelling ctx after Dial returns does not close the conn.
func DialWebSocket(ctx context.Context, url string) (net.Conn, error) {
	ws, _, err := websocket.Dial(ctx, WebSocketURL(url), nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to websocket: %w", err)
	}
	ws.SetReadLimit(-1)
	// ctx only bounds the handshake; the conn lives until Close.
	return websocket.NetConn(context.WithoutCancel(ctx), ws, websocket.MessageBinary), nil
}

// WebSocketURL normalises http(s):// and bare ws(s):// addresses to the
// device's /ws endpoint.
func WebSocketURL(url string) string {
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	if !strings.HasSuffix(url, "/ws") {
		url = strings.TrimSuffix(url, "/") + "/ws"
	}
	return url
}
