package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultMaxSimultaneousJobs = 4
	DefaultScanFrequency       = 10 * time.Second
	DefaultResultHistory       = 10
	DefaultStreamBuffer        = 64
	DefaultAPIAddr             = "127.0.0.1:8089"
)

// EngineSettings is EngineConfig with defaults applied and durations parsed.
type EngineSettings struct {
	MaxSimultaneousJobs int
	ScanFrequency       time.Duration
	ResultHistory       int
	StreamBuffer        int
	ValidationPolicy    string
}

func (e EngineConfig) Resolve() (EngineSettings, error) {
	out := EngineSettings{
		MaxSimultaneousJobs: e.MaxSimultaneousJobs,
		ResultHistory:       e.ResultHistory,
		StreamBuffer:        e.StreamBuffer,
		ValidationPolicy:    strings.ToLower(strings.TrimSpace(e.ValidationPolicy)),
	}
	if out.MaxSimultaneousJobs < 0 {
		return EngineSettings{}, fmt.Errorf("engine.max_simultaneous_jobs must be >= 1")
	}
	if out.MaxSimultaneousJobs == 0 {
		out.MaxSimultaneousJobs = DefaultMaxSimultaneousJobs
	}
	scan, err := ParseDurationField("engine.scan_frequency", e.ScanFrequency)
	if err != nil {
		return EngineSettings{}, err
	}
	if strings.TrimSpace(e.ScanFrequency) == "" {
		scan = DefaultScanFrequency
	}
	out.ScanFrequency = scan
	if out.ResultHistory <= 0 {
		out.ResultHistory = DefaultResultHistory
	}
	if out.StreamBuffer <= 0 {
		out.StreamBuffer = DefaultStreamBuffer
	}
	switch out.ValidationPolicy {
	case "":
		out.ValidationPolicy = PolicySkipInvalid
	case PolicySkipInvalid, PolicyRefuse:
	default:
		return EngineSettings{}, fmt.Errorf("engine.validation_policy: unknown policy %q (use %q or %q)", e.ValidationPolicy, PolicySkipInvalid, PolicyRefuse)
	}
	return out, nil
}

// ListenAddr returns the configured listen address or the default.
func (a APIConfig) ListenAddr() string {
	if s := strings.TrimSpace(a.Addr); s != "" {
		return s
	}
	return DefaultAPIAddr
}
