// Package dispatch turns inbound /api requests into configured responses.
// It does not depend on any web framework: the hosting layer converts its
// request into an Inbound and writes the returned Response.
package dispatch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"configurablestub/database"
	"configurablestub/internal/models"
	"configurablestub/internal/state"
	prom "configurablestub/prometheus"

	"github.com/SOLUCIONESSYCOM/scribe"
	"github.com/google/uuid"
)

const (
	NoRouteBody           = "NO ROUTE DEFINED!"
	MissingHeadersPrefix  = "Missing required headers: "
	plainTextContentType  = "text/plain; charset=utf-8"
	binaryJournalTemplate = "<binary %d bytes>"
)

// ErrMalformedConfiguration is returned when a stored route cannot be turned
// into a response (bad base64 payload, impossible status code).
var ErrMalformedConfiguration = errors.New("malformed route configuration")

type Outcome string

const (
	OutcomeMatched        Outcome = "matched"
	OutcomeNoRoute        Outcome = "no_route"
	OutcomeMissingHeaders Outcome = "missing_headers"
	OutcomeMalformed      Outcome = "malformed_configuration"
)

// Inbound is a request on the /api surface
type Inbound struct {
	Method string
	// Path below /api, slashes are normalized by the route key
	Path   string
	Header http.Header
	Body   []byte
}

// Response is what the hosting layer must write back
type Response struct {
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
	// Binary is set when Body came from the base64 payload
	Binary  bool
	Outcome Outcome
}

// Journal receives a copy of every dispatch
type Journal interface {
	AddOperation(t *database.Transaction) error
}

// Dispatcher records inbound requests and answers them from the registry
type Dispatcher struct {
	Routes   *state.RouteRegistry
	Requests *state.RequestLedger
	Logger   *scribe.Scribe
	Journal  Journal
	// Instance labels the per-stub gauges
	Instance string
}

// NewDispatcher creates a dispatcher over the given state
func NewDispatcher(routes *state.RouteRegistry, requests *state.RequestLedger, logger *scribe.Scribe) *Dispatcher {
	return &Dispatcher{
		Routes:   routes,
		Requests: requests,
		Logger:   logger,
	}
}

// Dispatch records the request and synthesizes its response. A non-nil
// error means the stored configuration for the route is unusable; the
// caller must answer with a generic failure.
func (d *Dispatcher) Dispatch(ctx context.Context, in Inbound) (*Response, error) {
	start := time.Now()
	key := models.NewRouteKey(in.Method, in.Path)

	ctx = scribe.WithCtx(ctx)
	logCtx := scribe.GetLogContext(ctx)
	logCtx.Set("request_trace_id", uuid.New().String())

	d.Logger.DebugCtx(ctx).
		Str("route_key", key.String()).
		Int("body_bytes", len(in.Body)).
		Msg("Dispatching request")

	d.Requests.Append(key, models.RequestRecord{
		RequestBody:    d.decodeBody(ctx, key, in.Body),
		RequestHeaders: models.FlattenHeaders(in.Header),
	})
	prom.RecordedRequests.WithLabelValues(d.Instance).Set(float64(d.Requests.Count()))

	resp, err := d.respond(key, in.Header)

	status := http.StatusInternalServerError
	outcome := OutcomeMalformed
	if err == nil {
		status = resp.StatusCode
		outcome = resp.Outcome
	}

	prom.DispatchRequestsTotal.WithLabelValues(key.Verb, strconv.Itoa(status)).Inc()
	prom.DispatchOutcomesTotal.WithLabelValues(string(outcome)).Inc()
	prom.DispatchDuration.WithLabelValues(key.Verb).Observe(time.Since(start).Seconds())

	d.journal(ctx, key, in, resp, status, outcome)

	if err != nil {
		d.Logger.ErrorCtx(ctx).
			Str("route_key", key.String()).
			AnErr("error", err).
			Msg("Stored route configuration is unusable")
		return nil, err
	}

	d.Logger.InfoCtx(ctx).
		Str("route_key", key.String()).
		Str("outcome", string(outcome)).
		Int("status_code", status).
		Msg("Request dispatched")

	return resp, nil
}

func (d *Dispatcher) respond(key models.RouteKey, header http.Header) (*Response, error) {
	config, ok := d.Routes.Get(key)
	if !ok {
		return &Response{
			StatusCode:  http.StatusInternalServerError,
			ContentType: plainTextContentType,
			Header:      http.Header{},
			Body:        []byte(NoRouteBody),
			Outcome:     OutcomeNoRoute,
		}, nil
	}

	if config.StatusCode < 100 || config.StatusCode > 999 {
		return nil, fmt.Errorf("%w: %s: status code %d", ErrMalformedConfiguration, key, config.StatusCode)
	}

	resp := &Response{
		StatusCode:  config.StatusCode,
		ContentType: config.ContentType,
		Header:      http.Header{},
		Outcome:     OutcomeMatched,
	}

	if config.LastModified != nil {
		resp.Header.Set("Last-Modified", config.LastModified.UTC().Format(http.TimeFormat))
	}

	if missing := MissingHeaders(config.RequiredHeaders, header); len(missing) > 0 {
		resp.StatusCode = http.StatusInternalServerError
		resp.Body = []byte(MissingHeadersPrefix + strings.Join(missing, ", "))
		resp.Outcome = OutcomeMissingHeaders
		return resp, nil
	}

	if config.HasBinaryResponse() {
		payload, err := base64.StdEncoding.DecodeString(config.Base64EncodedBinaryResponse)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedConfiguration, key, err)
		}
		resp.Body = payload
		resp.Binary = true
		return resp, nil
	}

	resp.Body = []byte(config.Response)
	return resp, nil
}

// MissingHeaders returns the required names absent from header, in the
// order they were required. Names are compared case-insensitively.
func MissingHeaders(required []string, header http.Header) []string {
	var missing []string
	for _, name := range required {
		if !hasHeader(header, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func hasHeader(header http.Header, name string) bool {
	if _, ok := header[http.CanonicalHeaderKey(name)]; ok {
		return true
	}
	for present := range header {
		if strings.EqualFold(present, name) {
			return true
		}
	}
	return false
}

// decodeBody parses the body as JSON, falling back to the raw text
func (d *Dispatcher) decodeBody(ctx context.Context, key models.RouteKey, raw []byte) interface{} {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	body, err := decodeJSON(raw)
	if err != nil {
		d.Logger.InfoCtx(ctx).
			Str("route_key", key.String()).
			AnErr("error", err).
			Msg("Non-fatal error on deserializing request as json. Request will be stored as a string instead.")
		return string(raw)
	}
	return body
}

// decodeJSON decodes exactly one JSON value, keeping numbers as json.Number
// so they are echoed back unchanged.
func decodeJSON(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var body interface{}
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return body, nil
}

func (d *Dispatcher) journal(ctx context.Context, key models.RouteKey, in Inbound, resp *Response, status int, outcome Outcome) {
	if d.Journal == nil {
		return
	}

	headers, _ := json.Marshal(models.FlattenHeaders(in.Header))

	t := &database.Transaction{
		UUID:               uuid.New().String(),
		RouteKey:           key.String(),
		RequestMethod:      key.Verb,
		RequestEndpoint:    "/api/" + key.Path,
		RequestHeaders:     string(headers),
		RequestBody:        string(in.Body),
		ResponseStatusCode: status,
		Outcome:            string(outcome),
		Timestamp:          time.Now(),
	}
	if resp != nil {
		t.ResponseContentType = resp.ContentType
		t.ResponseBody = string(resp.Body)
		if resp.Binary {
			t.ResponseBody = fmt.Sprintf(binaryJournalTemplate, len(resp.Body))
		}
	}

	if err := d.Journal.AddOperation(t); err != nil {
		if errors.Is(err, database.ErrQueueFull) {
			prom.JournalDroppedTotal.Inc()
		}
		d.Logger.WarnCtx(ctx).
			Str("route_key", key.String()).
			AnErr("error", err).
			Msg("Journal entry dropped")
	}
}
