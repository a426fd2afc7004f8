package config

import "time"

// createDefaultConfig creates a new Config with sensible default values
func createDefaultConfig() *Config {
	return &Config{
		Root: ".",
		Server: Server{
			Host:        "127.0.0.1",
			Port:        5000,
			Prefix:      "",
			PrintRoutes: false,
		},
		Logger: Logger{
			Enabled: true,
			Level:   "info",
			Format:  "text",
		},
		Reload: Reload{
			Enabled: true,
			Timeout: 30 * time.Second,
		},
		Watch: Watch{
			Backend:  "fsnotify",
			Patterns: []string{"**/*.md"},
			Ignore:   []string{"**/.git", "**/node_modules"},
			Buffer:   64,
		},
		Render: Render{
			Graphviz:   true,
			DotPath:    "dot",
			Extensions: []string{"extra", "smarty", "tables", "autolink", "strikethrough"},
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    "/_mdlive/metrics",
		},
	}
}

// Default returns a fresh copy of the default configuration.
func Default() *Config {
	return createDefaultConfig()
}
