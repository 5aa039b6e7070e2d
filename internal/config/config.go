package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/codewiresh/h1link/internal/device"
)

const (
	DefaultListen    = ":9999"
	DefaultCameras   = 3
	DefaultChunkSize = 4096
)

// Config is the top-level configuration loaded from h1.toml.
type Config struct {
	// TCP listen address for the device link.
	Listen string `toml:"listen"`
	// HTTP listen address for metrics, health and the websocket transport.
	// Nil means no admin listener.
	AdminListen *string `toml:"admin_listen,omitempty"`
	// Number of cameras fitted; valid camera ids are 0..Cameras-1.
	Cameras int `toml:"cameras"`
	// Payload bytes per frame in chunked transfers.
	ChunkSize int `toml:"chunk_size"`
	// Largest frame length accepted from a client. Zero disables the check.
	MaxFrame uint32 `toml:"max_frame"`
	// Interface reported as the device uplink by the network command.
	WLANInterface string `toml:"wlan_interface"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	Paths    device.Paths      `toml:"paths"`
	Officers []Officer         `toml:"officers"`
	Versions map[string]string `toml:"versions"`
}

// Officer is a credential accepted by the simulated device.
type Officer struct {
	ID           string `toml:"id"`
	Name         string `toml:"name"`
	PasswordHash string `toml:"password_hash"` // bcrypt
}

// DeviceEntry is a saved device address (client-side).
type DeviceEntry struct {
	Addr string `toml:"addr"`
}

// DevicesConfig is the client-side device list (~/.h1/devices.toml).
type DevicesConfig struct {
	Devices map[string]DeviceEntry `toml:"devices"`
}

var validDeviceName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateDeviceName checks that name is non-empty and contains only
// alphanumeric characters, hyphens, or underscores.
func ValidateDeviceName(name string) error {
	if name == "" || !validDeviceName.MatchString(name) {
		return fmt.Errorf("device name must be non-empty and alphanumeric (with - or _), got: %q", name)
	}
	return nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Listen:        DefaultListen,
		Cameras:       DefaultCameras,
		ChunkSize:     DefaultChunkSize,
		WLANInterface: "wlan0",
		LogLevel:      "info",
		LogFormat:     "text",
		Paths: device.Paths{
			Videos:   "/media/sdcard/videos/",
			XML:      "/media/sdcard/xml/",
			XMLFirst: "/media/sdcard/xml/first/",
			Snapshot: "/media/sdcard/snapshot/",
			Failsafe: "/media/msata/avs/",
			Cache:    "/var/cache/h1/",
			FocusX1:  "/media/x1/",
		},
		Versions: map[string]string{},
	}
}

// LoadConfig reads h1.toml from dataDir, applies environment variable
// overrides, and validates the result before returning.
func LoadConfig(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, "h1.toml")

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if listen := os.Getenv("H1_LISTEN"); listen != "" {
		cfg.Listen = listen
	}
	if cfg.AdminListen == nil {
		if admin := os.Getenv("H1_ADMIN_LISTEN"); admin != "" {
			cfg.AdminListen = &admin
		}
	}
	if level := os.Getenv("H1_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.AdminListen != nil {
		if _, _, err := net.SplitHostPort(*c.AdminListen); err != nil {
			return fmt.Errorf("invalid admin_listen address %q: %w", *c.AdminListen, err)
		}
	}
	if c.Cameras <= 0 {
		return fmt.Errorf("cameras must be positive, got %d", c.Cameras)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	for i, o := range c.Officers {
		if o.ID == "" || o.PasswordHash == "" {
			return fmt.Errorf("officers[%d]: id and password_hash are required", i)
		}
	}
	return nil
}

// LoadDevicesConfig reads devices.toml from dataDir. If the file does not
// exist an empty DevicesConfig is returned.
func LoadDevicesConfig(dataDir string) (*DevicesConfig, error) {
	path := filepath.Join(dataDir, "devices.toml")

	dc := &DevicesConfig{
		Devices: make(map[string]DeviceEntry),
	}

	if _, err := os.Stat(path); err != nil {
		return dc, nil
	}

	if _, err := toml.DecodeFile(path, dc); err != nil {
		return nil, fmt.Errorf("parsing devices.toml: %w", err)
	}
	if dc.Devices == nil {
		dc.Devices = make(map[string]DeviceEntry)
	}

	return dc, nil
}

// Save writes the DevicesConfig to devices.toml inside dataDir, creating
// the directory if necessary.
func (d *DevicesConfig) Save(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	path := filepath.Join(dataDir, "devices.toml")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encoding devices.toml: %w", err)
	}

	return nil
}

// Resolve maps a saved device name to its address. Anything that is not a
// saved name is returned unchanged.
func (d *DevicesConfig) Resolve(nameOrAddr string) string {
	if e, ok := d.Devices[nameOrAddr]; ok {
		return e.Addr
	}
	return nameOrAddr
}
