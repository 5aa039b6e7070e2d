// Package client talks to a device over the framed link, either raw TCP or
// the websocket transport on the admin listener.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/codewiresh/h1link/internal/connection"
	"github.com/codewiresh/h1link/internal/device"
	"github.com/codewiresh/h1link/internal/protocol"
)

// DefaultPort is the device's link port.
const DefaultPort = "9999"

var (
	// ErrDisconnected is returned when the device closes the link before a
	// reply arrives.
	ErrDisconnected = errors.New("client: device disconnected")
	// ErrUnexpectedFrame is returned when a binary frame arrives where a JSON
	// reply was expected, or the reverse.
	ErrUnexpectedFrame = errors.New("client: unexpected frame")
)

// Target describes where a device listens. Addresses starting with ws://,
// wss://, http:// or https:// use the websocket transport; anything else is
// a TCP host[:port], with an optional tcp:// prefix.
type Target struct {
	Addr string
}

// IsWebSocket reports whether the target uses the websocket transport.
func (t Target) IsWebSocket() bool {
	for _, p := range []string{"ws://", "wss://", "http://", "https://"} {
		if strings.HasPrefix(t.Addr, p) {
			return true
		}
	}
	return false
}

// TCPAddr returns the host:port to dial for a TCP target.
func (t Target) TCPAddr() string {
	addr := strings.TrimPrefix(t.Addr, "tcp://")
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, DefaultPort)
	}
	return addr
}

// Reply is a decoded JSON reply.
type Reply map[string]any

// Status returns the reply's status, or StatusError when it has none.
func (r Reply) Status() device.Status {
	n, ok := r["status"].(json.Number)
	if !ok {
		return device.StatusError
	}
	i, err := n.Int64()
	if err != nil {
		return device.StatusError
	}
	return device.Status(i)
}

// Command returns the echoed command name, empty for unattributed errors.
func (r Reply) Command() string {
	s, _ := r["command"].(string)
	return s
}

// Client is one link connection. Calls are serialized: the device answers
// in request order, so each call owns the connection until its reply (and
// any transfer) has been read.
type Client struct {
	conn net.Conn
	r    connection.FrameReader
	w    *connection.StreamWriter

	mu sync.Mutex
}

// Dial connects to target.
func Dial(ctx context.Context, target Target) (*Client, error) {
	var (
		conn net.Conn
		err  error
	)
	if target.IsWebSocket() {
		conn, err = connection.DialWebSocket(ctx, target.Addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", target.TCPAddr())
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", target.Addr, err)
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		r:    connection.NewStreamReader(conn),
		w:    connection.NewStreamWriter(conn),
	}
}

func (c *Client) Close() error {
	c.w.Close()
	return c.conn.Close()
}

// Call sends {"command": command, ...fields} and returns the reply.
func (c *Client) Call(ctx context.Context, command string, fields map[string]any) (Reply, error) {
	req := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		req[k] = v
	}
	req["command"] = command
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", command, err)
	}
	return c.CallRaw(ctx, payload)
}

// CallRaw sends payload unmodified as a JSON frame and returns the reply.
func (c *Client) CallRaw(ctx context.Context, payload []byte) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.watch(ctx)()

	if err := c.w.WriteFrame(&protocol.Frame{Type: protocol.TypeJSON, Payload: payload}); err != nil {
		return nil, c.wrap(ctx, fmt.Errorf("sending request: %w", err))
	}
	reply, err := c.readReply()
	return reply, c.wrap(ctx, err)
}

// ReadFile fetches name with the readfile command and copies its contents
// to dst. A non-success reply is returned with a nil error and nothing is
// copied.
func (c *Client) ReadFile(ctx context.Context, name string, dst io.Writer) (Reply, int64, error) {
	payload, err := json.Marshal(map[string]any{"command": "readfile", "filename": name})
	if err != nil {
		return nil, 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.watch(ctx)()

	if err := c.w.WriteFrame(&protocol.Frame{Type: protocol.TypeJSON, Payload: payload}); err != nil {
		return nil, 0, c.wrap(ctx, fmt.Errorf("sending request: %w", err))
	}
	reply, err := c.readReply()
	if err != nil || !reply.Status().OK() {
		return reply, 0, c.wrap(ctx, err)
	}

	var n int64
	for {
		f, err := c.r.ReadFrame()
		if err != nil {
			return reply, n, c.wrap(ctx, fmt.Errorf("reading transfer: %w", err))
		}
		if f == nil {
			return reply, n, ErrDisconnected
		}
		if f.Type != protocol.TypeBinary {
			return reply, n, fmt.Errorf("%w: %s frame during transfer", ErrUnexpectedFrame, f.Type)
		}
		if f.IsEndOfStream() {
			return reply, n, nil
		}
		m, err := dst.Write(f.Payload)
		n += int64(m)
		if err != nil {
			return reply, n, fmt.Errorf("writing transfer: %w", err)
		}
	}
}

func (c *Client) readReply() (Reply, error) {
	f, err := c.r.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("reading reply: %w", err)
	}
	if f == nil {
		return nil, ErrDisconnected
	}
	if f.Type != protocol.TypeJSON {
		return nil, fmt.Errorf("%w: %s frame instead of reply", ErrUnexpectedFrame, f.Type)
	}
	return DecodeReply(f.Payload)
}

// DecodeReply parses a reply payload, keeping numbers exact.
func DecodeReply(payload []byte) (Reply, error) {
	var r Reply
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding reply: %w", err)
	}
	return r, nil
}

// watch unblocks pending I/O when ctx ends. The returned func stops the
// watch and clears the deadline.
func (c *Client) watch(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Unix(1, 0))
	})
	return func() {
		if !stop() {
			c.conn.SetDeadline(time.Time{})
		}
	}
}

func (c *Client) wrap(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}
