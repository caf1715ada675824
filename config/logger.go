package config

import "os"

// LOGGER_LEVEL_ENV is the single environment variable spec.md §6 allows for
// verbosity; when set it always wins over the config file value.
const LOGGER_LEVEL_ENV = "BICYCLEDB_LOG_LEVEL" //nolint:staticcheck

type Logger struct {
	// Level is one of off/error/warn/info/debug/trace.
	Level      string `json:"level" mapstructure:"level" ini:"level" yaml:"level"`
	File       string `json:"file" mapstructure:"file" ini:"file" yaml:"file"`
	Format     string `json:"format" mapstructure:"format" ini:"format" yaml:"format"`
	MaxAge     int    `json:"max_age" mapstructure:"max_age" ini:"max_age" yaml:"max_age"`
	MaxSize    int    `json:"max_size" mapstructure:"max_size" ini:"max_size" yaml:"max_size"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups" ini:"max_backups" yaml:"max_backups"`
}

func (*Logger) setDefault() {
	cv.SetDefault("logger.level", "info")
	cv.SetDefault("logger.file", "/dev/stdout")
	cv.SetDefault("logger.format", "json")
	cv.SetDefault("logger.max_age", 7)
	cv.SetDefault("logger.max_size", 100)
	cv.SetDefault("logger.max_backups", 5)
}

// EffectiveLevel returns the configured log level, overridden by
// LOGGER_LEVEL_ENV when that variable is set to a non-empty value.
func (l Logger) EffectiveLevel() string {
	if v := os.Getenv(LOGGER_LEVEL_ENV); v != "" {
		return v
	}
	return l.Level
}
