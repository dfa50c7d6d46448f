// Package stubtest runs a stub inside the test process.
//
//	stub := stubtest.Start(t)
//	stub.Client.ConfigureRoute(ctx, "GET", "orders/1", client.RouteConfig{StatusCode: 200})
//	// point the code under test at stub.HTTPSURL() + "/api"
package stubtest

import (
	"context"
	"testing"
	"time"

	"configurablestub/client"
	"configurablestub/internal/config"
	"configurablestub/internal/models"
	"configurablestub/internal/server"
)

// Stub is a running in-process stub
type Stub struct {
	Manager *server.Manager
	// Client talks to the HTTPS listener
	Client *client.Client
}

// Option adjusts the configuration before the stub starts
type Option func(*models.StubConfig)

// WithPorts binds fixed ports instead of free ones
func WithPorts(httpPort, httpsPort int) Option {
	return func(cfg *models.StubConfig) {
		cfg.Server.HttpPort = httpPort
		cfg.Server.HttpsPort = httpsPort
	}
}

// WithRoutes seeds routes before the first request
func WithRoutes(routes ...models.SeedRoute) Option {
	return func(cfg *models.StubConfig) {
		cfg.Routes = append(cfg.Routes, routes...)
	}
}

// WithConsoleLogging turns request logging on
func WithConsoleLogging() Option {
	return func(cfg *models.StubConfig) {
		enabled := true
		cfg.Server.Logger = &enabled
	}
}

// Start runs a stub on free loopback ports and waits until it is healthy.
// It is stopped when the test finishes.
func Start(t testing.TB, opts ...Option) *Stub {
	t.Helper()

	stub, err := New(context.Background(), client.DefaultStartupTimeout, opts...)
	if err != nil {
		t.Fatalf("failed to start stub: %v", err)
	}
	t.Cleanup(stub.Stop)
	return stub
}

// New starts a stub outside of a test and waits up to timeout for it to
// answer its health check.
func New(ctx context.Context, timeout time.Duration, opts ...Option) (*Stub, error) {
	cfg := config.Default()
	quiet := false
	cfg.Server.Host = config.DefaultHost
	cfg.Server.HttpPort = 0
	cfg.Server.HttpsPort = 0
	cfg.Server.Logger = &quiet
	cfg.Server.LoggerFile = &quiet
	for _, opt := range opts {
		opt(cfg)
	}

	manager, err := server.New(*cfg)
	if err != nil {
		return nil, err
	}
	if err := manager.Start(); err != nil {
		manager.Stop()
		return nil, err
	}

	stub := &Stub{
		Manager: manager,
		Client:  client.New(manager.HTTPSURL()),
	}

	if err := client.WaitUntilHealthy(ctx, stub.Client, timeout); err != nil {
		stub.Stop()
		return nil, err
	}
	return stub, nil
}

// HTTPURL is the base URL of the plain HTTP listener
func (s *Stub) HTTPURL() string {
	return s.Manager.HTTPURL()
}

// HTTPSURL is the base URL of the HTTPS listener
func (s *Stub) HTTPSURL() string {
	return s.Manager.HTTPSURL()
}

// Stop shuts the stub down
func (s *Stub) Stop() {
	s.Manager.Stop()
}
