// Package command maps decoded request frames to device collaborators and
// writes the replies.
//
// Every JSON request gets exactly one JSON reply. Requests that cannot be
// attributed to a command get {"status":1}; requests for a known command
// that fail argument validation get {"command":name,"status":1} and never
// reach the collaborator. A handler may follow its reply with a chunked
// binary transfer.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/codewiresh/h1link/internal/connection"
	"github.com/codewiresh/h1link/internal/device"
	"github.com/codewiresh/h1link/internal/metrics"
	"github.com/codewiresh/h1link/internal/protocol"
	"github.com/codewiresh/h1link/internal/sysinfo"
	"github.com/codewiresh/h1link/internal/transfer"
)

// Handler runs one validated request.
type Handler func(ctx context.Context, req *Request) Reply

// Reply is what a handler hands back to the router.
type Reply struct {
	Status device.Status
	Fields map[string]any
	// Stream, when set on a successful reply, is sent as a chunked transfer
	// after the JSON reply and then closed.
	Stream io.ReadCloser
	// Then runs once the reply (and any transfer) has been written, whether
	// or not the write succeeded.
	Then func()
}

// Spec binds a command name to its required fields and handler.
type Spec struct {
	Name     string
	Required []Field
	Handle   Handler

	schema *gojsonschema.Schema
}

func status(s device.Status) Reply { return Reply{Status: s} }

// Options tune a Router. Zero values select defaults.
type Options struct {
	Cameras   int
	ChunkSize int
	Host      sysinfo.Host
	Now       func() time.Time
	Logger    *slog.Logger
}

// Router dispatches requests through a static command table.
type Router struct {
	specs  map[string]*Spec
	sender *transfer.Sender
	logger *slog.Logger
}

// NewRouter builds the full device command table over svc.
func NewRouter(svc device.Services, opts Options) (*Router, error) {
	if svc.System == nil || svc.Functions == nil {
		return nil, errors.New("command: system interface and functions are required")
	}
	if opts.Cameras <= 0 {
		opts.Cameras = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := &Router{
		specs:  make(map[string]*Spec),
		sender: transfer.NewSender(opts.ChunkSize),
		logger: opts.Logger,
	}
	h := &handlers{svc: svc, cameras: opts.Cameras, host: opts.Host, now: opts.Now, logger: opts.Logger}
	for _, s := range h.table() {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a command. Names must be unique.
func (r *Router) Register(s Spec) error {
	if s.Name == "" || s.Handle == nil {
		return fmt.Errorf("registering command %q: name and handler are required", s.Name)
	}
	if _, dup := r.specs[s.Name]; dup {
		return fmt.Errorf("registering command %q: already registered", s.Name)
	}
	schema, err := compileSchema(s.Required)
	if err != nil {
		return fmt.Errorf("compiling schema for %s: %w", s.Name, err)
	}
	s.schema = schema
	r.specs[s.Name] = &s
	return nil
}

// Commands lists the registered command names in sorted order.
func (r *Router) Commands() []string {
	return slices.Sorted(maps.Keys(r.specs))
}

// Dispatch handles one JSON payload and writes the reply to w. The
// returned error is non-nil only when writing to w failed, which means the
// connection is unusable.
func (r *Router) Dispatch(ctx context.Context, w connection.FrameWriter, payload []byte) error {
	start := time.Now()

	req, err := ParseRequest(payload)
	if err != nil {
		r.logger.Debug("rejecting request", "error", err)
		metrics.RecordCommand("", int(device.StatusError), time.Since(start))
		return writeJSON(w, ErrorEnvelope())
	}

	spec, ok := r.specs[req.Name]
	if !ok {
		r.logger.Debug("rejecting request", "command", req.Name, "error", ErrUnknownCommand)
		metrics.RecordCommand("", int(device.StatusError), time.Since(start))
		return writeJSON(w, ErrorEnvelope())
	}

	if err := validate(spec.schema, payload); err != nil {
		r.logger.Debug("rejecting request", "command", req.Name, "error", err)
		return r.reply(w, req.Name, status(device.StatusError), start)
	}
	if err := checkInts(spec.Required, req); err != nil {
		r.logger.Debug("rejecting request", "command", req.Name, "error", err)
		return r.reply(w, req.Name, status(device.StatusError), start)
	}

	return r.reply(w, req.Name, spec.Handle(ctx, req), start)
}

func (r *Router) reply(w connection.FrameWriter, name string, rep Reply, start time.Time) error {
	if rep.Then != nil {
		defer rep.Then()
	}
	if rep.Stream != nil {
		defer rep.Stream.Close()
	}
	defer func() {
		metrics.RecordCommand(name, int(rep.Status), time.Since(start))
	}()

	body, err := Envelope(name, rep.Status, rep.Fields)
	if err != nil {
		// Handler fields that cannot be encoded still owe the client a reply.
		r.logger.Error("encoding reply", "command", name, "error", err)
		rep.Status = device.StatusError
		body, _ = Envelope(name, rep.Status, nil)
	}
	if err := writeJSON(w, body); err != nil {
		return err
	}

	if rep.Stream == nil || !rep.Status.OK() {
		return nil
	}
	n, err := r.sender.Send(w, rep.Stream)
	if errors.Is(err, transfer.ErrTruncated) {
		r.logger.Warn("transfer truncated", "command", name, "bytes", n, "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("streaming %s: %w", name, err)
	}
	r.logger.Debug("transfer complete", "command", name, "bytes", n)
	return nil
}

func writeJSON(w connection.FrameWriter, body []byte) error {
	return w.WriteFrame(&protocol.Frame{Type: protocol.TypeJSON, Payload: body})
}
