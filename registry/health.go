package registry

import (
	"context"
	"net/http"
	"strconv"
	"time"

	coreerrors "github.com/ckoons/tekton-core-sub005/errors"
)

// HealthChecker probes the liveness of a service. Implementations
// should honor the context deadline; the registry treats an error as
// unhealthy.
type HealthChecker interface {
	Check(ctx context.Context) (bool, error)
}

// HealthCheckFunc adapts a function to the HealthChecker interface.
type HealthCheckFunc func(ctx context.Context) (bool, error)

// Check implements HealthChecker.
func (f HealthCheckFunc) Check(ctx context.Context) (bool, error) {
	return f(ctx)
}

// HTTPChecker probes a service over HTTP. Any 2xx response is healthy.
type HTTPChecker struct {
	// URL to GET, typically the service's health endpoint.
	URL string

	// Client used for probes. Default: http.DefaultClient with the
	// registry's per-probe timeout applied via context.
	Client *http.Client
}

// NewHTTPChecker creates an HTTP health checker with its own client
// timeout as a second bound alongside the probe context.
func NewHTTPChecker(url string, timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Check implements HealthChecker.
func (h *HTTPChecker) Check(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return false, err
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, coreerrors.WrapWithCode(err, coreerrors.ErrCodeUnavailable,
			"health probe failed", coreerrors.WithMetadata("url", h.URL))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, nil
	}
	return false, coreerrors.New(coreerrors.ErrCodeUnavailable, "health endpoint unhealthy",
		coreerrors.WithMetadata("url", h.URL),
		coreerrors.WithMetadata("status", strconv.Itoa(resp.StatusCode)))
}
