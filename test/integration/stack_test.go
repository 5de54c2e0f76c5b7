//go:build integration

package integration

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-ambient/internal/adapters/clients"
	httpadapter "github.com/jsamuelsen/go-ambient/internal/adapters/http"
	"github.com/jsamuelsen/go-ambient/internal/adapters/http/handlers"
	"github.com/jsamuelsen/go-ambient/internal/adapters/storage"
	"github.com/jsamuelsen/go-ambient/internal/app"
	"github.com/jsamuelsen/go-ambient/internal/domain"
	"github.com/jsamuelsen/go-ambient/internal/platform/config"
	"github.com/jsamuelsen/go-ambient/internal/platform/logging"
	"github.com/jsamuelsen/go-ambient/internal/platform/poller"
	"github.com/jsamuelsen/go-ambient/internal/ports"
)

// echoDownstream answers every request with 200 and remembers the ambient
// headers it received, keyed by request path.
type echoDownstream struct {
	mu   sync.Mutex
	seen map[string]http.Header
}

func newEchoDownstream() *echoDownstream {
	return &echoDownstream{seen: make(map[string]http.Header)}
}

func (d *echoDownstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	d.seen[r.URL.Path] = r.Header.Clone()
	d.mu.Unlock()

	if r.URL.Path == "/fail" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (d *echoDownstream) headers(path string) http.Header {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.seen[path]
}

// service is the whole HTTP service wired in-process against a fake downstream.
type service struct {
	server     *httptest.Server
	downstream *echoDownstream
	jobs       *app.JobService
	driver     *poller.Driver

	close func()
}

func startService() (*service, error) {
	gin.SetMode(gin.TestMode)

	downstream := newEchoDownstream()
	downstreamServer := httptest.NewServer(downstream)

	logger := logging.WithAmbient(slog.New(slog.NewJSONHandler(io.Discard, nil)),
		domain.TraceIDs, domain.RequestIDs, domain.CorrelationIDs, domain.Tenants)

	client, err := clients.New(&clients.Config{
		BaseURL:     downstreamServer.URL,
		ServiceName: "echo",
		Timeout:     2 * time.Second,
		Circuit:     config.CircuitBreakerConfig{MaxFailures: 5, Timeout: time.Second, HalfOpenLimit: 1},
		Logger:      logger,
	})
	if err != nil {
		downstreamServer.Close()
		return nil, err
	}

	driver := poller.New(poller.Config{Size: 4}, logger)

	jobs := app.NewJobService(app.JobServiceConfig{
		Driver:     driver,
		Store:      storage.NewMemoryJobStore(),
		Downstream: clients.NewDownstream(client),
		Deadline:   10 * time.Second,
		Logger:     logger,
	})

	registry := ports.NewHealthRegistry()
	if err := registry.Register(driver); err != nil {
		driver.Stop()
		downstreamServer.Close()
		return nil, err
	}

	engine := gin.New()
	routerCfg := httpadapter.NewDefaultRouterConfig(
		logger,
		&config.AppConfig{Name: "go-ambient-it", Version: "test", Environment: "test"},
		nil,
		handlers.NewHealthHandler(registry, handlers.NewBuildInfo("test", "none", "now"), handlers.NewMetricsRegistry(driver)),
	)
	routerCfg.JobHandler = handlers.NewJobHandler(jobs)
	httpadapter.SetupRouter(engine, routerCfg)

	server := httptest.NewServer(engine)

	return &service{
		server:     server,
		downstream: downstream,
		jobs:       jobs,
		driver:     driver,
		close: func() {
			server.Close()
			driver.Stop()
			downstreamServer.Close()
		},
	}, nil
}
