package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"configurablestub/internal/dispatch"
	"configurablestub/internal/handler"
	"configurablestub/internal/logger"
	"configurablestub/internal/state"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStubServer(t *testing.T, tls bool) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.Console("client-test")
	require.NoError(t, err)
	routes := state.NewRouteRegistry()
	requests := state.NewRequestLedger()

	router := gin.New()
	router.Use(handler.Recovery(log), handler.ErrorBoundary(log))
	handler.NewHandler(routes, requests, dispatch.NewDispatcher(routes, requests, log), log).RegisterRoutes(router)

	var srv *httptest.Server
	if tls {
		srv = httptest.NewTLSServer(handler.CaseInsensitive(router))
	} else {
		srv = httptest.NewServer(handler.CaseInsensitive(router))
	}
	t.Cleanup(srv.Close)
	return srv
}

func TestConfigureAndInspect(t *testing.T) {
	srv := newStubServer(t, false)
	c := New(srv.URL)
	ctx := context.Background()

	err := c.ConfigureRoute(ctx, "post", "/orders", RouteConfig{
		StatusCode:  http.StatusCreated,
		Response:    `{"id":42}`,
		ContentType: "application/json",
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/orders", "application/json", strings.NewReader(`{"item":"book","qty":2}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	last, err := c.LastRequest(ctx, "POST", "orders")
	require.NoError(t, err)

	var order struct {
		Item string `json:"item"`
		Qty  int    `json:"qty"`
	}
	require.NoError(t, DecodeBody(*last, &order))
	assert.Equal(t, "book", order.Item)
	assert.Equal(t, 2, order.Qty)
	assert.Equal(t, "application/json", last.RequestHeaders["Content-Type"])

	history, err := c.History(ctx, "POST", "/orders")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLastRequestNotFound(t *testing.T) {
	srv := newStubServer(t, false)
	c := New(srv.URL)

	_, err := c.LastRequest(context.Background(), "GET", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.History(context.Background(), "GET", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReset(t *testing.T) {
	srv := newStubServer(t, false)
	c := New(srv.URL)
	ctx := context.Background()

	require.NoError(t, c.ConfigureRoute(ctx, "GET", "x", RouteConfig{StatusCode: http.StatusOK}))
	require.NoError(t, c.Reset(ctx))

	resp, err := http.Get(srv.URL + "/api/x")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHealthCheckOverTLS(t *testing.T) {
	srv := newStubServer(t, true)
	c := New(srv.URL + "/")

	assert.True(t, c.HealthCheck(context.Background()))
	assert.Equal(t, srv.URL, c.BaseURL())
}

func TestHealthCheckFalseWhenDown(t *testing.T) {
	srv := newStubServer(t, false)
	url := srv.URL
	srv.Close()

	c := New(url, WithTimeout(time.Second))
	assert.False(t, c.HealthCheck(context.Background()))
}

func TestConfigureRouteReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := New(srv.URL).ConfigureRoute(context.Background(), "GET", "x", RouteConfig{StatusCode: 200})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "nope")
}

func TestRoutePath(t *testing.T) {
	assert.Equal(t, "/Stub/GET/api/a/b", routePath("get", "api", "/a/b"))
	assert.Equal(t, "/Stub/DELETE/history/api/a", routePath("DELETE", "history/api", "a"))
}

func TestWaitForSucceedsEventually(t *testing.T) {
	var calls int32
	err := WaitFor(context.Background(), func(context.Context) (bool, error) {
		return atomic.AddInt32(&calls, 1) >= 3, nil
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWaitForTimesOutWithLastError(t *testing.T) {
	boom := errors.New("connection refused")
	err := WaitFor(context.Background(), func(context.Context) (bool, error) {
		return false, boom
	}, 50*time.Millisecond, 10*time.Millisecond)

	assert.ErrorIs(t, err, ErrStartupTimeout)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWaitForEvaluatesAtLeastOnce(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitFor(ctx, func(context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, nil
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWaitUntilHealthy(t *testing.T) {
	srv := newStubServer(t, true)

	err := WaitUntilHealthy(context.Background(), New(srv.URL), time.Second)

	assert.NoError(t, err)
}
