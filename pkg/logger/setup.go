package logger

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// ParseLevel maps a level name to a LogLevel. Unknown names mean info.
func ParseLevel(name string) LogLevel {
	switch level := LogLevel(strings.ToLower(strings.TrimSpace(name))); level {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel, DisabledLevel:
		return level
	default:
		return InfoLevel
	}
}

// SetupLogger replaces the default logger and returns it.
func SetupLogger(level string, asJSON, withSource bool) Logger {
	cfg := DefaultConfig()
	cfg.Level = ParseLevel(level)
	cfg.JSON = asJSON
	cfg.AddSource = withSource
	Init(cfg)
	return GetDefault()
}

// FlagOverrides holds the logging flags set explicitly on a command line.
// A nil field was left at its default.
type FlagOverrides struct {
	Level  *string
	JSON   *bool
	Source *bool
}

func OverridesFromFlags(fs *pflag.FlagSet) (FlagOverrides, error) {
	var (
		o   FlagOverrides
		err error
	)
	if o.Level, err = changed(fs, "log-level", fs.GetString); err != nil {
		return o, err
	}
	if o.JSON, err = changed(fs, "log-json", fs.GetBool); err != nil {
		return o, err
	}
	if o.Source, err = changed(fs, "log-source", fs.GetBool); err != nil {
		return o, err
	}
	return o, nil
}

func changed[T any](fs *pflag.FlagSet, name string, get func(string) (T, error)) (*T, error) {
	if !fs.Changed(name) {
		return nil, nil
	}
	v, err := get(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s flag: %w", name, err)
	}
	return &v, nil
}
