package stubtest

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"configurablestub/client"
	"configurablestub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	},
}

func call(t *testing.T, method, url, body string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

// A system under test posts to a configured route twice; the test then
// inspects what it sent.
func TestEndToEndScenario(t *testing.T) {
	stub := Start(t)
	ctx := context.Background()

	require.NoError(t, stub.Client.ConfigureRoute(ctx, "POST", "payments", client.RouteConfig{
		StatusCode:      http.StatusAccepted,
		RequiredHeaders: []string{"Authorization"},
		Response:        `{"status":"queued"}`,
		ContentType:     "application/json",
	}))

	resp, body := call(t, http.MethodPost, stub.HTTPSURL()+"/api/payments", `{"amount":10}`, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Missing required headers: Authorization", body)

	resp, body = call(t, http.MethodPost, stub.HTTPURL()+"/api/payments", `{"amount":20}`, map[string]string{"Authorization": "Bearer t"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, `{"status":"queued"}`, body)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	history, err := stub.Client.History(ctx, "POST", "payments")
	require.NoError(t, err)
	require.Len(t, history, 2)

	var second struct {
		Amount int `json:"amount"`
	}
	require.NoError(t, client.DecodeBody(history[1], &second))
	assert.Equal(t, 20, second.Amount)
	assert.Equal(t, "Bearer t", history[1].RequestHeaders["Authorization"])

	last, err := stub.Client.LastRequest(ctx, "POST", "payments")
	require.NoError(t, err)
	assert.Equal(t, history[0], *last)

	require.NoError(t, stub.Client.Reset(ctx))
	_, err = stub.Client.History(ctx, "POST", "payments")
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestSeededBinaryRoute(t *testing.T) {
	payload := []byte("%PDF-1.4")
	stub := Start(t, WithRoutes(models.SeedRoute{
		Verb: "GET",
		Path: "docs/1",
		Config: models.RouteConfig{
			StatusCode:                  http.StatusOK,
			ContentType:                 "application/pdf",
			Base64EncodedBinaryResponse: base64.StdEncoding.EncodeToString(payload),
		},
	}))

	resp, body := call(t, http.MethodGet, stub.HTTPSURL()+"/api/docs/1/", "", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(payload), body)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
}

func TestStubsAreIsolated(t *testing.T) {
	first := Start(t)
	second := Start(t)
	ctx := context.Background()

	require.NoError(t, first.Client.ConfigureRoute(ctx, "GET", "only-first", client.RouteConfig{StatusCode: http.StatusOK}))

	resp, body := call(t, http.MethodGet, second.HTTPURL()+"/api/only-first", "", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "NO ROUTE DEFINED!", body)
}
