package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds the application configuration.
type Config struct {
	Root    string  `yaml:"root" env:"ROOT" validate:"required"`
	Server  Server  `yaml:"server" envPrefix:"SERVER_"`
	Logger  Logger  `yaml:"logger" envPrefix:"LOG_"`
	Reload  Reload  `yaml:"reload" envPrefix:"RELOAD_"`
	Watch   Watch   `yaml:"watch" envPrefix:"WATCH_"`
	Render  Render  `yaml:"render" envPrefix:"RENDER_"`
	Metrics Metrics `yaml:"metrics" envPrefix:"METRICS_"`
}

// Server hold the configuration for the Fiber server Config
type Server struct {
	Host        string `yaml:"host" env:"HOST"`
	Port        uint32 `yaml:"port" env:"PORT" validate:"required,max=65535"`
	Prefix      string `yaml:"prefix" env:"PREFIX" validate:"omitempty,startswith=/"`
	PrintRoutes bool   `yaml:"show_routes" env:"SHOW_ROUTES"`
}

// Logger holds the configuration for the app logging
type Logger struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Level   string `yaml:"level" env:"LEVEL" validate:"omitempty,oneof=debug info warn error"`
	Format  string `yaml:"format" env:"FORMAT" validate:"omitempty,oneof=text json logfmt"`
}

// Reload configures the long-poll endpoint used by the hot-reload script.
type Reload struct {
	Enabled bool          `yaml:"enabled" env:"ENABLED"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gt=0"`
}

// Watch configures the filesystem watch backend. Ignored directories are not
// watched by the fsnotify backend; the notify backend still watches them and
// only drops their events.
type Watch struct {
	Backend  string   `yaml:"backend" env:"BACKEND" validate:"oneof=fsnotify notify"`
	Patterns []string `yaml:"patterns" env:"PATTERNS" validate:"min=1"`
	Ignore   []string `yaml:"ignore" env:"IGNORE"`
	Buffer   int      `yaml:"buffer" env:"BUFFER" validate:"gt=0"`
}

// Render configures document rendering.
type Render struct {
	Graphviz   bool     `yaml:"graphviz" env:"GRAPHVIZ"`
	DotPath    string   `yaml:"dot_path" env:"DOT_PATH"`
	Extensions []string `yaml:"extensions" env:"EXTENSIONS"`
}

// Metrics configures the prometheus endpoint.
type Metrics struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" env:"PATH" validate:"omitempty,startswith=/"`
}

// Address returns the listen address for the HTTP server.
func (s Server) Address() string {
	return net.JoinHostPort(s.Host, strconv.FormatUint(uint64(s.Port), 10))
}
