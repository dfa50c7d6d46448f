package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"configurablestub/internal/certificate"
	"configurablestub/internal/models"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHost      = "127.0.0.1"
	DefaultHttpPort  = 54988
	DefaultHttpsPort = 43455
)

// Default returns the configuration used when no file is given
func Default() *models.StubConfig {
	logger := true
	name := "configurablestub"
	version := "0.1.0"
	loggerPath := "./logs/configurablestub.log"

	return &models.StubConfig{
		Server: models.Server{
			Host:       DefaultHost,
			HttpPort:   DefaultHttpPort,
			HttpsPort:  DefaultHttpsPort,
			Logger:     &logger,
			LoggerPath: &loggerPath,
			Name:       &name,
			Version:    &version,
		},
		Certificate: models.Certificate{
			Validity: certificate.DefaultValidity,
			Password: certificate.DefaultPassword,
			KeyBits:  certificate.DefaultStrength,
		},
		Journal: models.Journal{
			Path:          "./data/journal.db",
			BatchSize:     20,
			FlushInterval: 2 * time.Second,
		},
	}
}

// LoadConfig loads a stub configuration from a YAML file on top of the defaults
func LoadConfig(filePath string) (*models.StubConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Load resolves the configuration: the given file, else CONFIG_FILE, else
// defaults. Environment overrides are applied last.
func Load(filePath string) (*models.StubConfig, error) {
	if filePath == "" {
		filePath = os.Getenv("CONFIG_FILE")
	}

	config := Default()
	if filePath != "" {
		loaded, err := LoadConfig(filePath)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides listener and certificate settings from STUB_* variables
func ApplyEnv(config *models.StubConfig) error {
	if host := os.Getenv("STUB_HOST"); host != "" {
		config.Server.Host = host
	}

	for env, target := range map[string]*int{
		"STUB_HTTP_PORT":  &config.Server.HttpPort,
		"STUB_HTTPS_PORT": &config.Server.HttpsPort,
	} {
		value := os.Getenv(env)
		if value == "" {
			continue
		}
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("error parsing %s: %w", env, err)
		}
		*target = port
	}

	if password := os.Getenv("STUB_CERT_PASSWORD"); password != "" {
		config.Certificate.Password = password
	}

	return nil
}

// SaveConfig saves a stub configuration to a YAML file
func SaveConfig(config *models.StubConfig, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate checks a stub configuration
func Validate(config *models.StubConfig) error {
	if err := validatePort("http_port", config.Server.HttpPort); err != nil {
		return err
	}
	if err := validatePort("https_port", config.Server.HttpsPort); err != nil {
		return err
	}
	if config.Server.HttpPort != 0 && config.Server.HttpPort == config.Server.HttpsPort {
		return fmt.Errorf("http_port and https_port must differ: %d", config.Server.HttpPort)
	}

	if config.Certificate.Validity <= 0 {
		return fmt.Errorf("certificate validity must be positive: %s", config.Certificate.Validity)
	}
	if config.Certificate.KeyBits < 0 {
		return fmt.Errorf("certificate key_bits must not be negative: %d", config.Certificate.KeyBits)
	}

	if config.Journal.Enabled && config.Journal.Path == "" {
		return fmt.Errorf("journal is enabled but has no path")
	}

	for i, route := range config.Routes {
		if route.Verb == "" {
			return fmt.Errorf("route %d has empty verb", i)
		}
		if route.Config.StatusCode < 100 || route.Config.StatusCode > 999 {
			return fmt.Errorf("route %d has invalid status code: %d", i, route.Config.StatusCode)
		}
	}

	return nil
}

// 0 asks the OS for a free port
func validatePort(name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s out of range: %d", name, port)
	}
	return nil
}

// GetLogSettings returns the default logging configuration
func GetLogSettings() *models.LogSettings {
	return &models.LogSettings{
		Console:            true,
		BeautifyConsoleLog: true,
		File:               false,
		Path:               "./logs/configurablestub.log",
		MinLevel:           "info",
		RotationMaxSizeMB:  100,
		MaxAgeDay:          30,
		MaxBackups:         5,
		Compress:           true,
	}
}
