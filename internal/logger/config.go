package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel string            `yaml:"default_level" json:"default_level" mapstructure:"default_level"` // default log level for all modules
	Timezone     string            `yaml:"timezone" json:"timezone" mapstructure:"timezone"`                // "Local", "UTC", or IANA name
	Console      *ConsoleOutput    `yaml:"console" json:"console" mapstructure:"console"`                   // console output configuration
	FileOutput   *FileOutput       `yaml:"file_output" json:"file_output" mapstructure:"file_output"`       // file output configuration
	ModuleLevels map[string]string `yaml:"module_levels" json:"module_levels" mapstructure:"module_levels"` // per-module log levels
}

// ConsoleOutput represents console logging configuration.
// Console output is human-readable text without timestamps; journald or
// docker adds them.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Level   string `yaml:"level" json:"level" mapstructure:"level"`
}

// FileOutput represents file logging configuration.
// File output is JSON with RFC3339 timestamps, rotated by size.
type FileOutput struct {
	Enabled    bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Path       string `yaml:"path" json:"path" mapstructure:"path"`
	Level      string `yaml:"level" json:"level" mapstructure:"level"`
	MaxSize    int    `yaml:"max_size" json:"max_size" mapstructure:"max_size"`          // megabytes before rotation
	MaxBackups int    `yaml:"max_backups" json:"max_backups" mapstructure:"max_backups"` // rotated files kept
	MaxAge     int    `yaml:"max_age" json:"max_age" mapstructure:"max_age"`             // days to keep rotated files
	Compress   bool   `yaml:"compress" json:"compress" mapstructure:"compress"`
}

// Default values for logging configuration, kept in sync with conf/defaults.go.
const (
	DefaultLogLevel       = "info"
	DefaultLogPath        = "logs/sawring.log"
	DefaultConsoleEnabled = true
	DefaultFileEnabled    = false
	DefaultMaxSize        = 100
	DefaultMaxBackups     = 3
	DefaultMaxAge         = 28
)

// applyConfigDefaults fills nil sections so an empty config still logs to the console
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}

	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}

	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   cfg.DefaultLevel,
		}
	}

	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{
			Enabled: DefaultFileEnabled,
			Path:    DefaultLogPath,
			Level:   cfg.DefaultLevel,
		}
	}
	if cfg.FileOutput.MaxSize <= 0 {
		cfg.FileOutput.MaxSize = DefaultMaxSize
	}
	if cfg.FileOutput.MaxBackups <= 0 {
		cfg.FileOutput.MaxBackups = DefaultMaxBackups
	}
	if cfg.FileOutput.MaxAge <= 0 {
		cfg.FileOutput.MaxAge = DefaultMaxAge
	}
}
