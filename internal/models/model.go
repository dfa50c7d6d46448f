package models

import (
	"net/http"
	"strings"
	"time"
)

// RouteKey identifies a configured or recorded endpoint
type RouteKey struct {
	Verb string
	Path string
}

// NewRouteKey builds a normalized key: verb upper-cased, path without
// leading or trailing slashes.
func NewRouteKey(verb, path string) RouteKey {
	return RouteKey{
		Verb: strings.ToUpper(strings.TrimSpace(verb)),
		Path: strings.Trim(path, "/"),
	}
}

func (k RouteKey) String() string {
	return k.Verb + ":api/" + k.Path
}

// RouteConfig is the desired response behaviour for a RouteKey
type RouteConfig struct {
	StatusCode                  int        `yaml:"status_code" json:"statusCode"`
	RequiredHeaders             []string   `yaml:"required_headers" json:"requiredHeaders,omitempty"`
	Response                    string     `yaml:"response" json:"response,omitempty"`
	Base64EncodedBinaryResponse string     `yaml:"base64_encoded_binary_response" json:"base64EncodedBinaryResponse,omitempty"`
	ContentType                 string     `yaml:"content_type" json:"contentType,omitempty"`
	LastModified                *time.Time `yaml:"last_modified" json:"lastModified,omitempty"`
}

// HasBinaryResponse reports whether the binary payload overrides the text one
func (c RouteConfig) HasBinaryResponse() bool {
	return c.Base64EncodedBinaryResponse != ""
}

// RequestRecord is a captured inbound request
type RequestRecord struct {
	RequestBody    interface{}       `json:"requestBody"`
	RequestHeaders map[string]string `json:"requestHeaders"`
}

// FlattenHeaders joins multi-valued headers the way they appear on the wire
func FlattenHeaders(h http.Header) map[string]string {
	flat := make(map[string]string, len(h))
	for name, values := range h {
		flat[name] = strings.Join(values, ", ")
	}
	return flat
}

// StubConfig is the root of the YAML configuration file
type StubConfig struct {
	Server      Server      `yaml:"server" json:"server"`
	Certificate Certificate `yaml:"certificate" json:"certificate"`
	Journal     Journal     `yaml:"journal" json:"journal"`
	Routes      []SeedRoute `yaml:"routes" json:"routes"`
}

type Server struct {
	Host       string  `yaml:"host" json:"host"`
	HttpPort   int     `yaml:"http_port" json:"httpPort"`
	HttpsPort  int     `yaml:"https_port" json:"httpsPort"`
	Logger     *bool   `yaml:"logger" json:"logger"`
	LoggerPath *string `yaml:"logger_path" json:"logger_path"`
	LoggerFile *bool   `yaml:"logger_file" json:"logger_file"`
	Name       *string `yaml:"name" json:"name"`
	Version    *string `yaml:"version" json:"version"`
}

type Certificate struct {
	Validity time.Duration `yaml:"validity" json:"validity"`
	Password string        `yaml:"password" json:"password"`
	KeyBits  int           `yaml:"key_bits" json:"keyBits"`
	Renew    bool          `yaml:"renew" json:"renew"`
}

type Journal struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	Path          string        `yaml:"path" json:"path"`
	BatchSize     int           `yaml:"batch_size" json:"batchSize"`
	FlushInterval time.Duration `yaml:"flush_interval" json:"flushInterval"`
}

// SeedRoute is a route registered at start-up, before any control call
type SeedRoute struct {
	Verb   string      `yaml:"verb" json:"verb"`
	Path   string      `yaml:"path" json:"path"`
	Config RouteConfig `yaml:"config" json:"config"`
}

type LogDescriptor struct {
	Name    string
	Version string
	Path    string
	File    bool
	Logger  bool
}

type LogSettings struct {
	Console            bool   `yaml:"console"`
	BeautifyConsoleLog bool   `yaml:"beautify_console"`
	File               bool   `yaml:"file"`
	Path               string `yaml:"path"`
	MinLevel           string `yaml:"min_level"`
	RotationMaxSizeMB  int    `yaml:"rotation_max_size_mb"`
	MaxAgeDay          int    `yaml:"max_age_day"`
	MaxBackups         int    `yaml:"max_backups"`
	Compress           bool   `yaml:"compress"`
}
