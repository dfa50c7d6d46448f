package logger

import (
	"configurablestub/internal/config"
	"configurablestub/internal/models"

	"github.com/SOLUCIONESSYCOM/scribe"
	"github.com/google/uuid"
)

// GetLoggerContext builds a scribe logger for one stub instance
func GetLoggerContext(server models.LogDescriptor) (*scribe.Scribe, error) {

	logSettings := config.GetLogSettings()

	loggerConfig := &scribe.ConfigLogger{
		FilePath:          server.Path,
		MinLevel:          logSettings.MinLevel,
		RotationMaxSizeMB: logSettings.RotationMaxSizeMB,
		MaxBackups:        logSettings.MaxBackups,
		MaxAgeDay:         logSettings.MaxAgeDay,
		Compress:          logSettings.Compress,
		Console:           server.Logger,
		BeutifyConsoleLog: logSettings.BeautifyConsoleLog,
		File:              server.File,
	}

	globals := map[string]interface{}{
		"service_name":    server.Name,
		"service_version": server.Version,
		"service_id":      uuid.New().String(),
	}

	globalContext := scribe.NewGlobalLogContext(globals, []string{"service_name", "service_version", "service_id"})

	return scribe.New(loggerConfig, globalContext, []string{"service_name", "service_version", "service_id", "timestamp"})
}

// FromServer derives the log descriptor from the server section of the config
func FromServer(server models.Server) models.LogDescriptor {
	descriptor := models.LogDescriptor{
		Name:    "configurablestub",
		Version: "0.1.0",
	}
	if server.Name != nil {
		descriptor.Name = *server.Name
	}
	if server.Version != nil {
		descriptor.Version = *server.Version
	}
	if server.LoggerPath != nil {
		descriptor.Path = *server.LoggerPath
	}
	if server.Logger != nil {
		descriptor.Logger = *server.Logger
	}
	if server.LoggerFile != nil {
		descriptor.File = *server.LoggerFile && descriptor.Path != ""
	}
	return descriptor
}

// Console returns a console-only logger, used by tests and in-process stubs
func Console(name string) (*scribe.Scribe, error) {
	return GetLoggerContext(models.LogDescriptor{
		Name:    name,
		Version: "test",
		Logger:  true,
	})
}
