package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Manager holds the application configuration and provides thread-safe access to it.
type Manager struct {
	mu     sync.RWMutex
	config *Config
}

// NewManager creates a new ConfigManager.
func NewManager(config *Config) *Manager {
	return &Manager{config: config}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Update replaces the configuration. Only flag overrides call this, before
// any component has read the configuration.
func (m *Manager) Update(config *Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldConfig := m.config
	m.config = config

	if oldConfig != nil {
		slog.Debug("Configuration updated",
			"root_changed", oldConfig.Root != config.Root,
			"port_changed", oldConfig.Server.Port != config.Server.Port,
			"prefix_changed", oldConfig.Server.Prefix != config.Server.Prefix,
		)
	}
}

// ResolveRoot makes the served root absolute and checks it is a directory.
// Watch backends report absolute paths, so request paths must be built from
// the same absolute root to match them.
func (m *Manager) ResolveRoot() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	root, err := filepath.Abs(m.config.Root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root %s: %w", m.config.Root, err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("failed to stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root %s is not a directory", root)
	}
	m.config.Root = root
	slog.Info("Serving directory verified", "root", root)
	return root, nil
}

// GetYAML returns the current configuration as YAML.
func (m *Manager) GetYAML() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	yamlBytes, err := yaml.Marshal(m.config)
	if err != nil {
		slog.Error("failed to marshal config to YAML", "error", err)
		return err.Error()
	}
	return string(yamlBytes)
}
