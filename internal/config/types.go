package config

// Config is the on-disk configuration (JSON, YAML or TOML).
type Config struct {
	Engine  EngineConfig   `json:"engine"`
	Logging LoggingConfig  `json:"logging"`
	Storage *StorageConfig `json:"storage,omitempty"`
	API     APIConfig      `json:"api"`
	Jobs    []JobConfig    `json:"jobs"`
}

// EngineConfig controls the scheduler and runner.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - max_simultaneous_jobs: 4
//   - scan_frequency: "10s"
//   - result_history: 10
//   - stream_buffer: 64
//   - validation_policy: "skip_invalid"
type EngineConfig struct {
	MaxSimultaneousJobs int    `json:"max_simultaneous_jobs,omitempty"`
	ScanFrequency       string `json:"scan_frequency,omitempty"`
	ResultHistory       int    `json:"result_history,omitempty"`
	StreamBuffer        int    `json:"stream_buffer,omitempty"`
	ValidationPolicy    string `json:"validation_policy,omitempty"`
}

const (
	PolicySkipInvalid = "skip_invalid"
	PolicyRefuse      = "refuse"
)

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Sink    LoggingSink `json:"sink"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

// LoggingSink forwards log records to the storage log table/file.
type LoggingSink struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the optional persistence of statuses, results and logs.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./ketl.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// APIConfig controls the HTTP observability endpoint.
//
// Security note: prefer binding to localhost (the default is "127.0.0.1:8089").
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Pprof   bool   `json:"pprof,omitempty"`

	// Token, when set, is required as "Authorization: Bearer <token>" or ?token=.
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

// JobConfig describes one job.
//
// Enabled is a pointer so we can distinguish "omitted" (enabled) from an explicit false.
type JobConfig struct {
	Name         string           `json:"name"`
	Enabled      *bool            `json:"enabled,omitempty"`
	Timeout      string           `json:"timeout,omitempty"`
	Retries      int              `json:"retries,omitempty"`
	Dependencies []string         `json:"dependencies,omitempty"`
	Schedule     []ScheduleConfig `json:"schedule"`
	Action       ActionConfig     `json:"action"`
}

func (j JobConfig) IsEnabled() bool { return j.Enabled == nil || *j.Enabled }

type ScheduleConfig struct {
	Name  string               `json:"name,omitempty"`
	Parts []SchedulePartConfig `json:"parts"`
}

// SchedulePartConfig is one frequency + window pair.
//
// Frequency accepts a Go duration, "HH:MM", "@every <dur>" or a cron
// descriptor/expression. Start is RFC3339.
type SchedulePartConfig struct {
	Frequency string        `json:"frequency"`
	Start     string        `json:"start,omitempty"`
	Window    *WindowConfig `json:"window,omitempty"`
}

// WindowConfig fields accept "a-b", "a" or "*". Omitted fields are unrestricted.
type WindowConfig struct {
	Months   string `json:"months,omitempty"`
	Days     string `json:"days,omitempty"`
	Weekdays string `json:"weekdays,omitempty"`
	Hours    string `json:"hours,omitempty"`
	Minutes  string `json:"minutes,omitempty"`
	Seconds  string `json:"seconds,omitempty"`
}

type ActionConfig struct {
	Kind         string   `json:"kind"`
	Command      []string `json:"command,omitempty"`
	Dir          string   `json:"dir,omitempty"`
	Env          []string `json:"env,omitempty"`
	SkipExitCode int      `json:"skip_exit_code,omitempty"`
	Sleep        string   `json:"sleep,omitempty"`
	Message      string   `json:"message,omitempty"`
	Unit         string   `json:"unit,omitempty"`
	UserBus      bool     `json:"user_bus,omitempty"`
}
