package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"configurablestub/internal/models"

	"github.com/SOLUCIONESSYCOM/scribe"
	"github.com/gin-gonic/gin"
)

const (
	clientCertHeader = "X-Arr-Clientcert"
	redactedBody     = "Redacted as its not JSON."
)

// Recovery turns a panic in any handler into a bare 500
func Recovery(logger *scribe.Scribe) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.ErrorCtx(c.Request.Context()).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("panic", fmt.Sprint(recovered)).
			Msg("Panic recovered")
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

// ErrorBoundary logs errors attached with c.Error and, when nothing has been
// written yet, answers a bare 500.
func ErrorBoundary(logger *scribe.Scribe) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		for _, err := range c.Errors {
			logger.ErrorCtx(c.Request.Context()).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				AnErr("error", err.Err).
				Msg("Request failed")
		}

		if !c.Writer.Written() {
			c.AbortWithStatus(http.StatusInternalServerError)
		}
	}
}

// bodyCaptureWriter keeps a copy of everything written to the client
type bodyCaptureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// RequestLogger logs every request and its response. Response bodies that
// are not JSON are redacted; the client certificate header is never logged.
func RequestLogger(logger *scribe.Scribe) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(requestBody))
		}

		capture := &bodyCaptureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = capture

		c.Next()

		headers, _ := json.Marshal(loggableHeaders(c.Request.Header))

		logger.InfoCtx(c.Request.Context()).
			Str("method", c.Request.Method).
			Str("url", c.Request.URL.String()).
			Str("headers", string(headers)).
			Str("request_body", string(requestBody)).
			Int("status_code", c.Writer.Status()).
			Int("response_length", capture.body.Len()).
			Str("content_type", c.Writer.Header().Get("Content-Type")).
			Str("response_body", loggableBody(capture.body.Bytes())).
			Str("latency", time.Since(start).String()).
			Msg("Request handled")
	}
}

func loggableHeaders(h http.Header) map[string]string {
	flat := models.FlattenHeaders(h)
	delete(flat, clientCertHeader)
	return flat
}

func loggableBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if !json.Valid(body) {
		return redactedBody
	}
	return string(body)
}
