package cmd

import (
	"context"
	"fmt"

	"configurablestub/internal/config"
	"configurablestub/internal/models"
	"configurablestub/internal/server"
)

// ServerManager runs one stub until its context is cancelled
type ServerManager struct {
	manager    *server.Manager
	configFile string
	overrides  func(*models.StubConfig)
}

// NewServerManager creates a manager for the given configuration file.
// An empty path falls back to CONFIG_FILE and then to defaults.
func NewServerManager(configFile string) *ServerManager {
	return &ServerManager{configFile: configFile}
}

// SetOverrides registers a hook applied after file and environment values
func (sm *ServerManager) SetOverrides(fn func(*models.StubConfig)) {
	sm.overrides = fn
}

// Load resolves the effective configuration
func (sm *ServerManager) Load() (*models.StubConfig, error) {
	cfg, err := config.Load(sm.configFile)
	if err != nil {
		return nil, err
	}
	if sm.overrides != nil {
		sm.overrides(cfg)
		if err := config.Validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return cfg, nil
}

// Run starts the stub and blocks until ctx is done
func (sm *ServerManager) Run(ctx context.Context) error {
	cfg, err := sm.Load()
	if err != nil {
		return err
	}

	sm.manager, err = server.New(*cfg)
	if err != nil {
		return err
	}
	if err := sm.manager.Start(); err != nil {
		sm.manager.Stop()
		return err
	}

	<-ctx.Done()

	sm.manager.Logger.Info().Msg("Shutting down stub...")
	sm.manager.Stop()
	return nil
}
