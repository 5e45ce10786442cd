package http

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// Handler defines HTTP route registration interface.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// Handlers mounts several handlers on one server. Nil entries are skipped.
type Handlers []Handler

func (hs Handlers) RegisterRoutes(e *echo.Echo) {
	for _, h := range hs {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
}

// Check reports whether a dependency can serve traffic.
type Check func(ctx context.Context) error

// ReadinessHandler serves GET /readyz. Every check runs concurrently under
// a shared timeout; any failure answers 503.
type ReadinessHandler struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
}

func NewReadinessHandler(timeout time.Duration) *ReadinessHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ReadinessHandler{checks: make(map[string]Check), timeout: timeout}
}

// Add registers a named check, replacing one with the same name.
func (r *ReadinessHandler) Add(name string, c Check) {
	if c == nil {
		return
	}
	r.mu.Lock()
	r.checks[name] = c
	r.mu.Unlock()
}

func (r *ReadinessHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/readyz", r.serve)
}

// Run executes every check and returns the failures by name.
func (r *ReadinessHandler) Run(ctx context.Context) map[string]string {
	r.mu.RLock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]Check, len(names))
	for i, name := range names {
		checks[i] = r.checks[name]
	}
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	errs := make([]error, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c Check) {
			defer wg.Done()
			errs[i] = c(ctx)
		}(i, c)
	}
	wg.Wait()

	failed := make(map[string]string)
	for i, err := range errs {
		if err != nil {
			failed[names[i]] = err.Error()
		}
	}
	return failed
}

func (r *ReadinessHandler) serve(c echo.Context) error {
	failed := r.Run(c.Request().Context())
	if len(failed) > 0 {
		return DataResponse(c, http.StatusServiceUnavailable, failed)
	}
	return SuccessResponse(c, map[string]string{"status": "ready"})
}
