package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"configurablestub/database"
	"configurablestub/internal/certificate"
	"configurablestub/internal/dispatch"
	"configurablestub/internal/handler"
	"configurablestub/internal/logger"
	"configurablestub/internal/models"
	"configurablestub/internal/state"
	prom "configurablestub/prometheus"

	"github.com/SOLUCIONESSYCOM/scribe"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const shutdownTimeout = 5 * time.Second

// Manager owns one stub instance: its state, its HTTP and HTTPS listeners
// and the certificate served on the latter.
type Manager struct {
	Config       models.StubConfig
	Router       *gin.Engine
	Routes       *state.RouteRegistry
	Requests     *state.RequestLedger
	Dispatcher   *dispatch.Dispatcher
	Handler      *handler.Handler
	Certificates *certificate.Holder
	Journal      *database.BatchManager
	Logger       *scribe.Scribe
	// Instance identifies this stub in metrics
	Instance string

	provisioner certificate.Provisioner
	httpServer  *http.Server
	httpsServer *http.Server
	httpAddr    net.Addr
	httpsAddr   net.Addr
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	started     bool
}

// New builds a stub from config. The certificate is provisioned here so a
// failure is reported before any port is bound.
func New(config models.StubConfig) (*Manager, error) {
	log, err := logger.GetLoggerContext(logger.FromServer(config.Server))
	if err != nil {
		return nil, fmt.Errorf("error creating logger: %w", err)
	}

	if config.Server.Logger != nil && *config.Server.Logger {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	prom.InitMetrics()

	m := &Manager{
		Config:      config,
		Routes:      state.NewRouteRegistry(),
		Requests:    state.NewRequestLedger(),
		Logger:      log,
		Instance:    uuid.New().String(),
		provisioner: certificate.Provisioner{Strength: config.Certificate.KeyBits},
	}

	cert, err := m.provisioner.Issue(m.validity(), config.Certificate.Password)
	if err != nil {
		return nil, fmt.Errorf("error provisioning certificate: %w", err)
	}
	m.Certificates = certificate.NewHolder(cert)

	m.Dispatcher = dispatch.NewDispatcher(m.Routes, m.Requests, log)
	m.Dispatcher.Instance = m.Instance

	if err := m.openJournal(); err != nil {
		return nil, err
	}

	for _, seed := range config.Routes {
		key := models.NewRouteKey(seed.Verb, seed.Path)
		m.Routes.Put(key, seed.Config)
		log.Info().Msg(fmt.Sprintf("Registered route: %s", key))
	}

	m.Router = gin.New()
	m.Router.Use(handler.Recovery(log))
	if config.Server.Logger != nil && *config.Server.Logger {
		m.Router.Use(handler.RequestLogger(log))
	}
	m.Router.Use(handler.ErrorBoundary(log))

	m.Handler = handler.NewHandler(m.Routes, m.Requests, m.Dispatcher, log)
	m.Handler.Instance = m.Instance
	m.Handler.RegisterRoutes(m.Router)

	return m, nil
}

// Start binds both listeners and serves in the background
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return errors.New("stub already started")
	}

	// a previous Stop closed the journal
	if err := m.openJournal(); err != nil {
		return err
	}
	prom.ConfiguredRoutes.WithLabelValues(m.Instance).Set(float64(m.Routes.Len()))
	prom.RecordedRequests.WithLabelValues(m.Instance).Set(float64(m.Requests.Count()))

	httpListener, err := net.Listen("tcp", m.address(m.Config.Server.HttpPort))
	if err != nil {
		return fmt.Errorf("error listening for http: %w", err)
	}
	httpsListener, err := net.Listen("tcp", m.address(m.Config.Server.HttpsPort))
	if err != nil {
		httpListener.Close()
		return fmt.Errorf("error listening for https: %w", err)
	}

	m.httpAddr = httpListener.Addr()
	m.httpsAddr = httpsListener.Addr()

	m.httpServer = &http.Server{
		Handler:           handler.CaseInsensitive(m.Router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	m.httpsServer = &http.Server{
		Handler:           handler.CaseInsensitive(m.Router),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig: &tls.Config{
			GetCertificate: m.Certificates.GetCertificate,
			MinVersion:     tls.VersionTLS12,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		if err := m.httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.Logger.Error().AnErr("error", err).Msg("HTTP listener stopped")
		}
	}()
	go func() {
		defer m.wg.Done()
		if err := m.httpsServer.ServeTLS(httpsListener, "", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.Logger.Error().AnErr("error", err).Msg("HTTPS listener stopped")
		}
	}()

	if m.Config.Certificate.Renew {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.Certificates.RenewalLoop(ctx, m.provisioner, m.validity(), m.Config.Certificate.Password, m.Logger)
		}()
	}

	m.started = true

	m.Logger.Info().
		Str("http", m.httpAddr.String()).
		Str("https", m.httpsAddr.String()).
		Str("certificate_not_after", m.Certificates.NotAfter().Format(time.RFC3339)).
		Msg("Stub listening")

	return nil
}

// Stop shuts both listeners down and flushes the journal
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		m.closeJournal()
		prom.ForgetInstance(m.Instance)
		return
	}
	m.started = false
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for name, srv := range map[string]*http.Server{"http": m.httpServer, "https": m.httpsServer} {
		if err := srv.Shutdown(ctx); err != nil {
			m.Logger.Error().Str("listener", name).AnErr("error", err).Msg("Error shutting down server")
		}
	}
	m.cancel()
	m.wg.Wait()

	m.closeJournal()
	prom.ForgetInstance(m.Instance)
	m.Logger.Info().Msg("Stub stopped")
}

// Wait blocks until every listener has stopped
func (m *Manager) Wait() {
	m.wg.Wait()
}

// HTTPAddr is the bound HTTP address, empty before Start
func (m *Manager) HTTPAddr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.httpAddr == nil {
		return ""
	}
	return m.httpAddr.String()
}

// HTTPSAddr is the bound HTTPS address, empty before Start
func (m *Manager) HTTPSAddr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.httpsAddr == nil {
		return ""
	}
	return m.httpsAddr.String()
}

// HTTPURL returns the base URL of the HTTP listener
func (m *Manager) HTTPURL() string {
	return "http://" + m.HTTPAddr()
}

// HTTPSURL returns the base URL of the HTTPS listener
func (m *Manager) HTTPSURL() string {
	return "https://" + m.HTTPSAddr()
}

// openJournal attaches a journal to the dispatcher when enabled and not
// already open
func (m *Manager) openJournal() error {
	if !m.Config.Journal.Enabled || m.Journal != nil {
		return nil
	}

	journal, err := database.Open(m.Config.Journal.Path, database.BatchConfig{
		BatchSize:     m.Config.Journal.BatchSize,
		FlushInterval: m.Config.Journal.FlushInterval,
	}, m.Logger)
	if err != nil {
		return fmt.Errorf("error opening journal %s: %w", m.Config.Journal.Path, err)
	}
	m.Journal = journal
	m.Dispatcher.Journal = journal
	return nil
}

// closeJournal flushes and detaches the journal from the dispatcher
func (m *Manager) closeJournal() {
	if m.Journal == nil {
		return
	}
	m.Dispatcher.Journal = nil
	if err := m.Journal.Close(); err != nil {
		m.Logger.Error().AnErr("error", err).Msg("Error closing journal")
	}
	m.Journal = nil
}

func (m *Manager) address(port int) string {
	return net.JoinHostPort(m.Config.Server.Host, strconv.Itoa(port))
}

func (m *Manager) validity() time.Duration {
	if m.Config.Certificate.Validity <= 0 {
		return certificate.DefaultValidity
	}
	return m.Config.Certificate.Validity
}
