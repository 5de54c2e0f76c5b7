package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/go-ambient/internal/domain"
	"github.com/jsamuelsen/go-ambient/internal/platform/config"
)

func TestDownstream_Fetch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("pong"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	down := NewDownstream(client)

	res, err := down.Fetch(context.Background(), "/ok")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "pong", string(res.Body))

	res, err = down.Fetch(context.Background(), "/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.Status)
}

func TestDownstream_FetchUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	cfg := defaultConfig()
	cfg.BaseURL = server.URL
	cfg.Retry.MaxAttempts = 1

	client, err := New(cfg)
	require.NoError(t, err)

	_, err = NewDownstream(client).Fetch(context.Background(), "/x")
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
	require.ErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestDownstream_Check(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		healthy bool
	}{
		{name: "ok", status: http.StatusOK, healthy: true},
		{name: "client error is reachable", status: http.StatusMethodNotAllowed, healthy: true},
		{name: "server error", status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				w.WriteHeader(tt.status)
			})
			down := NewDownstream(client)

			assert.Equal(t, "downstream:test-service", down.Name())

			err := down.Check(context.Background())
			if tt.healthy {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDownstream_OpenCircuit(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, func(cfg *Config) {
		cfg.Retry.MaxAttempts = 1
		cfg.Circuit = config.CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Minute, HalfOpenLimit: 1}
	})
	down := NewDownstream(client)

	_, err := down.Fetch(context.Background(), "/items")
	require.ErrorIs(t, err, ErrMaxRetriesExceeded)
	require.Equal(t, StateOpen, client.CircuitState())

	_, err = down.Fetch(context.Background(), "/items")
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, domain.IsUnavailable(err))
	assert.Contains(t, err.Error(), "circuit open")

	err = down.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
	assert.Equal(t, int32(1), calls.Load(), "neither the refused fetch nor the check reaches the downstream")
}
