package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/go-ambient/internal/domain"
	"github.com/jsamuelsen/go-ambient/internal/ports"
)

// maxBodyBytes caps how much of a downstream response is kept.
const maxBodyBytes = 1 << 20

// Downstream adapts a Client to ports.Downstream.
type Downstream struct {
	client *Client
}

var _ ports.Downstream = (*Downstream)(nil)

// NewDownstream wraps client.
func NewDownstream(client *Client) *Downstream {
	return &Downstream{client: client}
}

// Fetch performs a GET on path and reads up to 1 MiB of the body. Transport
// failures, including calls refused by an open circuit, are reported as
// domain.ErrUnavailable; any HTTP status is a result.
func (d *Downstream) Fetch(ctx context.Context, path string) (*ports.DownstreamResult, error) {
	resp, err := d.client.Get(ctx, path)
	if err != nil {
		reason := "request failed"
		if errors.Is(err, ErrCircuitOpen) {
			reason = "circuit open"
		}
		return nil, fmt.Errorf("%w: %w", domain.NewUnavailableError(d.client.serviceName, reason), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.NewUnavailableError(d.client.serviceName, "reading response"), err)
	}

	return &ports.DownstreamResult{Status: resp.StatusCode, Body: body}, nil
}

// Name implements ports.HealthChecker.
func (d *Downstream) Name() string {
	return "downstream:" + d.client.serviceName
}

// Check reports the downstream unhealthy while its circuit is open, or when
// it cannot be reached or answers with a server error.
func (d *Downstream) Check(ctx context.Context) error {
	if state := d.client.CircuitState(); state == StateOpen {
		return fmt.Errorf("circuit breaker %s", state)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, d.client.buildURL("/"), http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := d.client.http.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("downstream returned %d", resp.StatusCode)
	}

	return nil
}
