package node

import (
	"cmp"
	"io"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codewiresh/h1link/internal/connection"
	"github.com/codewiresh/h1link/internal/metrics"
	"github.com/codewiresh/h1link/internal/protocol"
)

// ConnID identifies one registered connection.
type ConnID = uuid.UUID

// Conn is a registry entry: one socket, its inbound accumulator and the
// resources released with it.
type Conn struct {
	ID        ConnID
	Remote    string
	Transport string
	Opened    time.Time

	seq     uint64
	mu      sync.Mutex
	acc     *connection.Accumulator
	closers []io.Closer
}

// ConnInfo is the public view of a registered connection.
type ConnInfo struct {
	ID        string    `json:"id"`
	Remote    string    `json:"remote"`
	Transport string    `json:"transport"`
	Opened    time.Time `json:"opened"`
	Buffered  int       `json:"buffered"`
	Dropped   int       `json:"dropped"`
}

// Registry tracks live connections. Each connection's accumulator is owned
// by its entry and released when the entry is removed.
type Registry struct {
	mu       sync.Mutex
	conns    map[ConnID]*Conn
	seq      uint64
	maxFrame uint32
	logger   *slog.Logger
}

// NewRegistry returns an empty registry. maxFrame is passed to every
// accumulator; zero means unlimited.
func NewRegistry(maxFrame uint32, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		conns:    make(map[ConnID]*Conn),
		maxFrame: maxFrame,
		logger:   logger,
	}
}

// Add registers c with an empty accumulator. The socket itself is the
// first attached resource, so it is closed last on removal.
func (r *Registry) Add(c net.Conn, transport string) *Conn {
	entry := &Conn{
		ID:        uuid.New(),
		Transport: transport,
		Opened:    time.Now(),
		acc:       connection.NewAccumulator(r.maxFrame),
		closers:   []io.Closer{c},
	}
	if addr := c.RemoteAddr(); addr != nil {
		entry.Remote = addr.String()
	}

	r.mu.Lock()
	r.seq++
	entry.seq = r.seq
	r.conns[entry.ID] = entry
	r.mu.Unlock()
	return entry
}

func (r *Registry) lookup(id ConnID) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		r.logger.Debug("unknown connection", "conn", id)
		return nil
	}
	return c
}

// Feed appends p to the connection's accumulator and returns every frame
// it completes, in arrival order. An unknown id yields no frames. The
// error is non-nil only when the stream can no longer be decoded.
func (r *Registry) Feed(id ConnID, p []byte) ([]protocol.Frame, error) {
	c := r.lookup(id)
	if c == nil {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acc == nil {
		return nil, nil
	}
	before := c.acc.Dropped()
	c.acc.Write(p)
	frames, err := c.acc.Frames()
	if n := c.acc.Dropped() - before; n > 0 {
		r.logger.Warn("dropped malformed frames", "conn", id, "count", n)
		for range n {
			metrics.RecordFrame("dropped", "malformed")
		}
	}
	return frames, err
}

// Attach ties a resource to the connection's lifetime. It reports false,
// leaving rc open, when id is not registered.
func (r *Registry) Attach(id ConnID, rc io.Closer) bool {
	c := r.lookup(id)
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acc == nil {
		return false
	}
	c.closers = append(c.closers, rc)
	return true
}

// Remove deregisters id, closes its resources in reverse attach order and
// releases its accumulator. Removing an unknown id is a no-op.
func (r *Registry) Remove(id ConnID) {
	r.mu.Lock()
	c, ok := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("removing unknown connection", "conn", id)
		return
	}
	c.release(r.logger)
}

func (c *Conn) release(logger *slog.Logger) {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	if c.acc != nil {
		c.acc.Reset()
		c.acc = nil
	}
	c.mu.Unlock()

	for _, rc := range slices.Backward(closers) {
		if err := rc.Close(); err != nil {
			logger.Debug("closing connection resource", "conn", c.ID, "error", err)
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// List returns the registered connections, oldest first.
func (r *Registry) List() []ConnInfo {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()
	slices.SortFunc(conns, func(a, b *Conn) int { return cmp.Compare(a.seq, b.seq) })

	out := make([]ConnInfo, 0, len(conns))
	for _, c := range conns {
		c.mu.Lock()
		info := ConnInfo{
			ID:        c.ID.String(),
			Remote:    c.Remote,
			Transport: c.Transport,
			Opened:    c.Opened,
		}
		if c.acc != nil {
			info.Buffered = c.acc.Buffered()
			info.Dropped = c.acc.Dropped()
		}
		c.mu.Unlock()
		out = append(out, info)
	}
	return out
}

// CloseAll removes every connection.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[ConnID]*Conn)
	r.mu.Unlock()

	for _, c := range conns {
		c.release(r.logger)
	}
}
