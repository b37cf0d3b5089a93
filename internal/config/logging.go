package config

import (
	"strings"

	"github.com/rshade/rowprompt/internal/logging"
)

// ToLoggingConfig converts the logging section to logging.Config.
//
// The conversion applies these rules:
//   - Level is copied directly
//   - "json" selects JSON output; anything else selects the console writer
//   - If File is set, Output becomes "file"; otherwise it is "stderr"
func (lc *LoggingConfig) ToLoggingConfig() logging.Config {
	output := logging.OutputStderr
	if lc.File != "" {
		output = logging.OutputFile
	}

	format := logging.FormatConsole
	if strings.EqualFold(lc.Format, logging.FormatJSON) {
		format = logging.FormatJSON
	}

	return logging.Config{
		Level:  lc.Level,
		Format: format,
		Output: output,
		File:   lc.File,
	}
}

// GetLoggingConfig returns a copy of the global Logging section. Flag
// overrides such as --debug are applied by the caller.
func GetLoggingConfig() LoggingConfig {
	return GetGlobalConfig().Logging
}
