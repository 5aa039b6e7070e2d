package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codewiresh/h1link/internal/auth"
	"github.com/codewiresh/h1link/internal/client"
	"github.com/codewiresh/h1link/internal/config"
	"github.com/codewiresh/h1link/internal/device"
	"github.com/codewiresh/h1link/internal/device/sim"
	"github.com/codewiresh/h1link/internal/logging"
	"github.com/codewiresh/h1link/internal/mcp"
	"github.com/codewiresh/h1link/internal/node"
	"github.com/codewiresh/h1link/internal/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	dataDirFlag string
	timeoutFlag time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "h1",
		Short:         "Control link for H1 in-car recorders",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Configuration directory (default ~/.h1)")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 30*time.Second, "Per-command timeout for device calls")

	rootCmd.AddCommand(
		serveCmd(),
		sendCmd(),
		pingCmd(),
		readFileCmd(),
		recordCmd(),
		loginCmd(),
		pairCmd(),
		devicesCmd(),
		configCmd(),
		mcpServerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[h1] %v\n", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// serveCmd
// ---------------------------------------------------------------------------

func serveCmd() *cobra.Command {
	var (
		simulate bool
		listen   string
		admin    string
		noAuth   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the device link server",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := dataDir()
			cfg, err := config.LoadConfig(dir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if admin != "" {
				cfg.AdminListen = &admin
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)

			if !simulate {
				return errors.New("this build has no hardware collaborators; run with --simulate")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer cancel()

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating data dir: %w", err)
			}
			st, err := store.NewSQLiteStore(dir)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			simulator, err := sim.New(sim.Options{
				Store:      st,
				Paths:      cfg.Paths,
				Cameras:    cfg.Cameras,
				Officers:   cfg.Officers,
				Versions:   cfg.Versions,
				SSID:       "h1-bench",
				Logger:     logger,
				OnShutdown: cancel,
			})
			if err != nil {
				return err
			}

			n, err := node.NewNode(cfg, device.Services{
				System:    simulator,
				Functions: simulator,
				Paths:     cfg.Paths,
			}, logger)
			if err != nil {
				return fmt.Errorf("initializing node: %w", err)
			}
			if cfg.AdminListen != nil && !noAuth {
				token, err := auth.LoadOrGenerateToken(dir)
				if err != nil {
					return fmt.Errorf("loading admin token: %w", err)
				}
				n.AdminToken = token
				logger.Info("admin token", "path", filepath.Join(dir, auth.TokenFile))
			}

			logger.Info("starting simulated device", "cameras", cfg.Cameras, "data_dir", dir)
			err = n.Run(ctx)
			logger.Info("stopped")
			return err
		},
	}

	cmd.Flags().BoolVar(&simulate, "simulate", false, "Serve a simulated recorder backed by the local store")
	cmd.Flags().StringVar(&listen, "listen", "", "Override the link listen address")
	cmd.Flags().StringVar(&admin, "admin", "", "Override the admin HTTP listen address")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "Serve /connections and /commands without a bearer token")
	return cmd
}

// ---------------------------------------------------------------------------
// mcpServerCmd
// ---------------------------------------------------------------------------

func mcpServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server <device>",
		Short: "Run an MCP (Model Context Protocol) server bridged to a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd, args[0])
			if err != nil {
				return err
			}
			defer c.Close()
			// stdout carries the protocol, so logs go to stderr.
			logger := logging.New(os.Stderr, "warn", "text")
			return mcp.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), c, version, logger)
		},
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func dataDir() string {
	if dataDirFlag != "" {
		return dataDirFlag
	}
	if dir := os.Getenv("H1_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		slog.Warn("home directory unavailable, using /tmp/.h1")
		return "/tmp/.h1"
	}
	return filepath.Join(home, ".h1")
}

// resolveTarget maps a saved device name or address to a client target.
func resolveTarget(nameOrAddr string) (client.Target, error) {
	devices, err := config.LoadDevicesConfig(dataDir())
	if err != nil {
		return client.Target{}, err
	}
	return client.Target{Addr: devices.Resolve(nameOrAddr)}, nil
}

// connect dials a device and returns a context bounded by --timeout for the
// first call.
func connect(cmd *cobra.Command, nameOrAddr string) (*client.Client, error) {
	target, err := resolveTarget(nameOrAddr)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()
	return client.Dial(ctx, target)
}

func callContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeoutFlag)
}
