package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

// Validate checks everything that does not require running jobs: engine
// settings, logging levels, the storage driver and that every job builds.
// Cross-job checks (duplicate names, dangling dependencies) belong to
// job.ValidateJobs.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	var errs []error
	if _, err := cfg.Engine.Resolve(); err != nil {
		errs = append(errs, err)
	}
	if lvl := strings.TrimSpace(cfg.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if lvl := strings.TrimSpace(cfg.Logging.Sink.MinLevel); lvl != "" && !logx.ValidLevel(lvl) {
		errs = append(errs, fmt.Errorf("logging.sink.min_level: unknown level %q", cfg.Logging.Sink.MinLevel))
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		errs = append(errs, fmt.Errorf("logging.file.path required when file logging is enabled"))
	}
	if cfg.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
		case "", "none", "file", "sqlite":
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.API.Enabled {
		if _, _, err := net.SplitHostPort(cfg.API.ListenAddr()); err != nil {
			errs = append(errs, fmt.Errorf("api.addr: %w", err))
		}
	}
	if _, err := BuildJobs(cfg.Jobs, logx.Nop()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LoggerConfig maps the logging section onto logx.Config.
func (l LoggingConfig) LoggerConfig() logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File: logx.FileConfig{
			Enabled:    l.File.Enabled,
			Path:       l.File.Path,
			MaxSizeMB:  l.File.MaxSizeMB,
			MaxBackups: l.File.MaxBackups,
			MaxAgeDays: l.File.MaxAgeDays,
			Compress:   l.File.Compress,
		},
		Sink: logx.SinkConfig{
			Enabled:    l.Sink.Enabled,
			MinLevel:   l.Sink.MinLevel,
			RatePerSec: l.Sink.RatePerSec,
		},
	}
}
