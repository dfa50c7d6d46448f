package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"configurablestub/internal/dispatch"
	"configurablestub/internal/models"
	"configurablestub/internal/state"
	prom "configurablestub/prometheus"

	"github.com/SOLUCIONESSYCOM/scribe"
	"github.com/gin-gonic/gin"
)

// Handler serves the control API and the /api surface
type Handler struct {
	Routes     *state.RouteRegistry
	Requests   *state.RequestLedger
	Dispatcher *dispatch.Dispatcher
	Logger     *scribe.Scribe
	// Instance labels the per-stub gauges
	Instance string
}

// NewHandler creates a handler over the shared state
func NewHandler(routes *state.RouteRegistry, requests *state.RequestLedger, dispatcher *dispatch.Dispatcher, logger *scribe.Scribe) *Handler {
	return &Handler{
		Routes:     routes,
		Requests:   requests,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
}

// RegisterRoutes mounts every endpoint on router. Paths are lowercase here;
// serve the router through CaseInsensitive to accept other spellings.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(prom.PromHTTPHandler()))

	stub := router.Group("/stub")
	{
		stub.POST("/:verb/api/*route", h.ConfigureRoute)
		stub.GET("/:verb/api/*route", h.LastRequest)
		stub.GET("/:verb/history/api/*route", h.History)
		stub.DELETE("", h.Reset)
	}

	router.Any("/api/*route", h.Dispatch)
}

// Health answers 200 while the process is serving
func (h *Handler) Health(c *gin.Context) {
	c.Status(http.StatusOK)
}

// ConfigureRoute stores the RouteConfig in the body for (verb, route)
func (h *Handler) ConfigureRoute(c *gin.Context) {
	key := routeKey(c)

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.observe("configure", http.StatusBadRequest)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var config models.RouteConfig
	if err := json.Unmarshal(raw, &config); err != nil {
		h.Logger.WarnCtx(c.Request.Context()).
			Str("route_key", key.String()).
			AnErr("error", err).
			Msg("Rejected route configuration")
		h.observe("configure", http.StatusBadRequest)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid route configuration: %v", err)})
		return
	}

	h.Routes.Put(key, config)
	prom.ConfiguredRoutes.WithLabelValues(h.Instance).Set(float64(h.Routes.Len()))

	h.Logger.InfoCtx(c.Request.Context()).
		Str("route_key", key.String()).
		Int("status_code", config.StatusCode).
		Msg("Route configured")

	h.observe("configure", http.StatusNoContent)
	c.Status(http.StatusNoContent)
}

// LastRequest returns the recorded request for (verb, route)
func (h *Handler) LastRequest(c *gin.Context) {
	key := routeKey(c)

	record, ok := h.Requests.GetOne(key)
	if !ok {
		h.notFound(c, "last_request", key)
		return
	}

	h.observe("last_request", http.StatusOK)
	c.JSON(http.StatusOK, record)
}

// History returns every recorded request for (verb, route), oldest first
func (h *Handler) History(c *gin.Context) {
	key := routeKey(c)

	records, ok := h.Requests.GetAll(key)
	if !ok {
		h.notFound(c, "history", key)
		return
	}

	h.observe("history", http.StatusOK)
	c.JSON(http.StatusOK, records)
}

// Reset forgets all routes and all recorded requests
func (h *Handler) Reset(c *gin.Context) {
	h.Routes.ResetAll()
	h.Requests.ResetAll()
	prom.ConfiguredRoutes.WithLabelValues(h.Instance).Set(0)
	prom.RecordedRequests.WithLabelValues(h.Instance).Set(0)

	h.Logger.InfoCtx(c.Request.Context()).Msg("Stub state reset")

	h.observe("reset", http.StatusNoContent)
	c.Status(http.StatusNoContent)
}

// Dispatch answers a request on the /api surface
func (h *Handler) Dispatch(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		_ = c.Error(fmt.Errorf("reading request body: %w", err))
		return
	}

	header := c.Request.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	// net/http lifts Host out of the header map
	if c.Request.Host != "" {
		header.Set("Host", c.Request.Host)
	}

	resp, err := h.Dispatcher.Dispatch(c.Request.Context(), dispatch.Inbound{
		Method: c.Request.Method,
		Path:   c.Param("route"),
		Header: header,
		Body:   body,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	for name, values := range resp.Header {
		for _, value := range values {
			c.Writer.Header().Add(name, value)
		}
	}

	if resp.ContentType != "" {
		c.Data(resp.StatusCode, resp.ContentType, resp.Body)
		return
	}

	// no configured type: send none rather than a sniffed one
	c.Writer.Header()["Content-Type"] = nil
	c.Status(resp.StatusCode)
	_, _ = c.Writer.Write(resp.Body)
}

func (h *Handler) notFound(c *gin.Context, operation string, key models.RouteKey) {
	h.observe(operation, http.StatusNotFound)
	c.String(http.StatusNotFound, "couldn't find any recent requests for %s", key.String())
}

func (h *Handler) observe(operation string, status int) {
	prom.ControlRequestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
}

func routeKey(c *gin.Context) models.RouteKey {
	return models.NewRouteKey(c.Param("verb"), c.Param("route"))
}
