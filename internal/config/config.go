// ABOUTME: Persistent bridge configuration (engine address and listen port)
// ABOUTME: JSON file under the user config dir, with defaults, validation, and atomic save
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mtrack-remote/mtrack-remote-go/internal/connection"
)

const (
	DefaultMtrackPort = 43234
	DefaultListenPort = 43236

	dirName  = "mtrack-remote"
	fileName = "config.json"
)

// Config is what gets saved to disk
type Config struct {
	// MtrackAddr is the engine's host:port
	MtrackAddr string `json:"mtrack_addr"`

	// ListenPort is the local UDP port the engine replies to
	ListenPort int `json:"listen_port"`
}

// Default points at an engine on this machine
func Default() Config {
	return Config{
		MtrackAddr: net.JoinHostPort("127.0.0.1", strconv.Itoa(DefaultMtrackPort)),
		ListenPort: DefaultListenPort,
	}
}

// DefaultPath is <user config dir>/mtrack-remote/config.json
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not get config directory: %w", err)
	}
	return filepath.Join(dir, dirName, fileName), nil
}

// Validate checks the engine address and port ranges
func (c Config) Validate() error {
	host, port, err := net.SplitHostPort(c.MtrackAddr)
	if err != nil {
		return fmt.Errorf("invalid mtrack_addr %q: %w", c.MtrackAddr, err)
	}
	if host == "" {
		return fmt.Errorf("invalid mtrack_addr %q: missing host", c.MtrackAddr)
	}
	if err := validPort(port); err != nil {
		return fmt.Errorf("invalid mtrack_addr %q: %w", c.MtrackAddr, err)
	}
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("invalid listen_port %d", c.ListenPort)
	}
	return nil
}

func validPort(p string) error {
	n, err := strconv.Atoi(p)
	if err != nil || n < 1 || n > 65535 {
		return errors.New("invalid port")
	}
	return nil
}

// Endpoint converts to the connection manager's input
func (c Config) Endpoint() connection.Endpoint {
	return connection.Endpoint{RemoteAddr: c.MtrackAddr, LocalPort: c.ListenPort}
}

// Load reads and validates path. Missing fields keep their defaults.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	b = stripBOM(b)

	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("could not parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// stripBOM removes a UTF-8 byte order mark if present.
func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

// Save validates cfg and writes it atomically, creating the directory
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("could not serialize config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}
