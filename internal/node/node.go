// Package node runs the device link: a TCP listener whose connections carry
// framed JSON commands, plus an optional admin HTTP listener serving
// metrics, health, the connection list and a websocket transport.
package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/sync/errgroup"

	"github.com/codewiresh/h1link/internal/auth"
	"github.com/codewiresh/h1link/internal/command"
	"github.com/codewiresh/h1link/internal/config"
	"github.com/codewiresh/h1link/internal/connection"
	"github.com/codewiresh/h1link/internal/device"
	"github.com/codewiresh/h1link/internal/metrics"
	"github.com/codewiresh/h1link/internal/sysinfo"
)

const shutdownTimeout = 5 * time.Second

// Node is the link server.
type Node struct {
	Registry *Registry
	Router   *command.Router
	// AdminToken guards /connections and /commands when non-empty.
	AdminToken string

	cfg    *config.Config
	logger *slog.Logger
}

// NewNode builds the command router over svc and an empty registry.
func NewNode(cfg *config.Config, svc device.Services, logger *slog.Logger) (*Node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	router, err := command.NewRouter(svc, command.Options{
		Cameras:   cfg.Cameras,
		ChunkSize: cfg.ChunkSize,
		Host:      sysinfo.Host{WLAN: cfg.WLANInterface},
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("building command router: %w", err)
	}
	return &Node{
		Registry: NewRegistry(cfg.MaxFrame, logger),
		Router:   router,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Run listens on the configured addresses and serves until ctx is
// cancelled or a listener fails.
func (n *Node) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", n.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", n.cfg.Listen, err)
	}
	var admin net.Listener
	if n.cfg.AdminListen != nil {
		admin, err = net.Listen("tcp", *n.cfg.AdminListen)
		if err != nil {
			ln.Close()
			return fmt.Errorf("listening on %s: %w", *n.cfg.AdminListen, err)
		}
	}
	return n.Serve(ctx, ln, admin)
}

// Serve accepts link connections on ln and, when admin is non-nil, serves
// the admin HTTP surface on it. Both listeners are closed on return.
func (n *Node) Serve(ctx context.Context, ln, admin net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return n.acceptLoop(ctx, ln) })

	if admin != nil {
		srv := &http.Server{
			Handler:           n.AdminHandler(ctx),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			n.logger.Info("admin listening", "addr", admin.Addr().String())
			if err := srv.Serve(admin); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		ln.Close()
		n.Registry.CloseAll()
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (n *Node) acceptLoop(ctx context.Context, ln net.Listener) error {
	n.logger.Info("link listening", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			n.logger.Error("accept error", "error", err)
			continue
		}
		go handleClient(ctx, conn, "tcp", n.Registry, n.Router, n.logger)
	}
}

// AdminHandler returns the admin HTTP routes. Websocket clients are served
// until ctx is cancelled.
func (n *Node) AdminHandler(ctx context.Context) http.Handler {
	r := httprouter.New()
	r.Handler(http.MethodGet, "/metrics", metrics.Handler())
	r.GET("/healthz", n.handleHealth)
	r.GET("/connections", auth.Require(n.AdminToken, n.handleConnections))
	r.GET("/commands", auth.Require(n.AdminToken, n.handleCommands))
	r.GET("/ws", func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		conn, err := connection.AcceptWebSocket(ctx, w, req)
		if err != nil {
			n.logger.Error("websocket accept error", "error", err)
			return
		}
		handleClient(ctx, conn, "ws", n.Registry, n.Router, n.logger)
	})
	return r
}

func (n *Node) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, map[string]any{
		"status":      "ok",
		"connections": n.Registry.Len(),
		"time":        time.Now().Format(time.RFC3339),
	})
}

func (n *Node) handleConnections(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, n.Registry.List())
}

func (n *Node) handleCommands(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, n.Router.Commands())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
