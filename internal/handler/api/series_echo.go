package api

import (
	"net/http"
	"time"

	"FinSeries/internal/domain/models"
	"FinSeries/internal/service/metrics"
	"FinSeries/internal/service/ratelimit"
	"FinSeries/internal/usecase"
	xhttp "FinSeries/pkg/http"
	xlogger "FinSeries/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SeriesEchoHandler serves the series API.
type SeriesEchoHandler struct {
	logger *xlogger.Logger
	uc     *usecase.SeriesUseCase
	rl     *ratelimit.Limiter

	rlCapacity int
	rlRefill   float64
}

type HandlerOption func(*SeriesEchoHandler)

// WithRateLimit limits write endpoints per client. A zero capacity disables it.
func WithRateLimit(capacity int, refillPerSec float64) HandlerOption {
	return func(h *SeriesEchoHandler) {
		h.rlCapacity = capacity
		h.rlRefill = refillPerSec
	}
}

func NewSeriesEchoHandler(logger *xlogger.Logger, uc *usecase.SeriesUseCase, opts ...HandlerOption) *SeriesEchoHandler {
	metrics.Register()
	h := &SeriesEchoHandler{logger: logger, uc: uc, rl: ratelimit.New()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *SeriesEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	write := h.rl.Middleware(h.rlCapacity, h.rlRefill)
	g := e.Group("/api/series")
	g.POST("", h.Create, write)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Remove, write)
	g.POST("/:id/points", h.AddPoint, write)
	g.POST("/:id/points/batch", h.AddPoints, write)
	g.GET("/:id/windows", h.Windows)
	g.GET("/:id/latest", h.Latest)
	g.GET("/:id/open", h.Open)
}

func (h *SeriesEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status": "ok",
		"series": len(h.uc.List()),
	})
}

func (h *SeriesEchoHandler) Create(c echo.Context) error {
	defer observe("create", time.Now())
	req := &models.CreateSeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.uc.Create(req)
	if err != nil {
		return h.fail(c, "create", err)
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *SeriesEchoHandler) List(c echo.Context) error {
	ids := h.uc.List()
	return xhttp.ListResponse(c, ids, int64(len(ids)))
}

func (h *SeriesEchoHandler) Get(c echo.Context) error {
	req := &models.SeriesIDParam{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.uc.Get(req.SeriesID)
	if err != nil {
		return h.fail(c, "get", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SeriesEchoHandler) Remove(c echo.Context) error {
	defer observe("remove", time.Now())
	req := &models.SeriesIDParam{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.uc.Remove(req.SeriesID); err != nil {
		return h.fail(c, "remove", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *SeriesEchoHandler) AddPoint(c echo.Context) error {
	defer observe("add_point", time.Now())
	req := &models.AddPointRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	err := h.uc.AddPoint(req.SeriesID, models.PointPayload{
		Timestamp: req.Timestamp,
		Value:     req.Value,
		Volume:    req.Volume,
	})
	if err != nil {
		return h.fail(c, "add_point", err)
	}
	return xhttp.SuccessResponse(c, models.BatchResult{Accepted: 1})
}

func (h *SeriesEchoHandler) AddPoints(c echo.Context) error {
	defer observe("add_points", time.Now())
	req := &models.AddPointsBatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.uc.AddPoints(req.SeriesID, req.Points)
	if err != nil {
		appErr := domainErrors.Map(err).
			WithParam("accepted", res.Accepted).
			WithParam("rejected", res.Rejected)
		return h.fail(c, "add_points", appErr)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SeriesEchoHandler) Windows(c echo.Context) error {
	defer observe("windows", time.Now())
	req := &models.WindowsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, ok := xhttp.ParseTime(req.Start)
	if !ok {
		return h.fail(c, "windows", xhttp.NewAppError("ERR_INVALID_RANGE", "start", "start must be RFC3339 or unix milliseconds", http.StatusBadRequest))
	}
	to, ok := xhttp.ParseTime(req.End)
	if !ok {
		return h.fail(c, "windows", xhttp.NewAppError("ERR_INVALID_RANGE", "end", "end must be RFC3339 or unix milliseconds", http.StatusBadRequest))
	}

	res, err := h.uc.Windows(usecase.GetWindowsParams{
		SeriesID:    req.SeriesID,
		Granularity: req.Granularity,
		From:        from,
		To:          to,
		Limit:       req.Limit,
	})
	if err != nil {
		return h.fail(c, "windows", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SeriesEchoHandler) Latest(c echo.Context) error {
	req := &models.LatestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.uc.Latest(req.SeriesID, req.Granularity)
	if err != nil {
		return h.fail(c, "latest", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SeriesEchoHandler) Open(c echo.Context) error {
	req := &models.LatestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.uc.Open(req.SeriesID, req.Granularity)
	if err != nil {
		return h.fail(c, "open", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// fail writes err in the error envelope. Domain errors become 4xx; anything
// else is logged and reported as 500.
func (h *SeriesEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := domainErrors.Map(err)
	metrics.APIErrors.WithLabelValues(endpoint, appErr.Code).Inc()
	if appErr.Status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error("series api error",
			xlogger.String("endpoint", endpoint),
			xlogger.Error(err))
	}
	return xhttp.ErrorResponse(c, appErr)
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

var _ xhttp.Handler = (*SeriesEchoHandler)(nil)
