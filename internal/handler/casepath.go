package handler

import (
	"net/http"
	"strings"
)

// literal path segments matched regardless of case
const (
	segmentAPI     = "api"
	segmentStub    = "stub"
	segmentHistory = "history"
	segmentHealth  = "health"
	segmentMetrics = "metrics"
)

// CaseInsensitive lowercases the fixed segments of the stub's paths before
// routing, so /API/orders, /Stub/GET/Api/orders and /Health reach the same
// handlers as their lowercase forms. Verbs and route paths keep their case.
// A bare /api or /stub/VERB/api gains its trailing slash instead of being
// redirected.
func CaseInsensitive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := canonicalPath(r.URL.Path)
		rawPath := r.URL.RawPath
		if rawPath != "" {
			rawPath = canonicalPath(rawPath)
		}
		if path == r.URL.Path && rawPath == r.URL.RawPath {
			next.ServeHTTP(w, r)
			return
		}

		u := *r.URL
		u.Path = path
		u.RawPath = rawPath
		r2 := r.WithContext(r.Context())
		r2.URL = &u
		next.ServeHTTP(w, r2)
	})
}

// canonicalPath rewrites the literal segments of path. Segments are split
// on "/" so the leading empty segment sits at index 0.
func canonicalPath(path string) string {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || segments[0] != "" {
		return path
	}

	// index of the segment that opens the route, -1 when there is none
	apiAt := -1

	switch first := strings.ToLower(segments[1]); first {
	case segmentAPI:
		segments[1] = first
		apiAt = 1
	case segmentHealth, segmentMetrics:
		if len(segments) == 2 {
			segments[1] = first
		}
	case segmentStub:
		segments[1] = first
		if len(segments) < 4 {
			break
		}
		switch third := strings.ToLower(segments[3]); third {
		case segmentAPI:
			segments[3] = third
			apiAt = 3
		case segmentHistory:
			segments[3] = third
			if len(segments) > 4 && strings.EqualFold(segments[4], segmentAPI) {
				segments[4] = segmentAPI
				apiAt = 4
			}
		}
	}

	if apiAt == len(segments)-1 {
		segments = append(segments, "")
	}
	return strings.Join(segments, "/")
}
