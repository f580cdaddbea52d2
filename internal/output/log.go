// Package output provides terminal output utilities for the appforge CLI.
package output

import (
	"os"

	"github.com/charmbracelet/log"
)

// logger is the process-wide logger. Use the package helpers or
// ProjectLogger rather than touching it directly.
var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: false,
	ReportCaller:    false,
})

// LogConfig controls how SetupLogging builds the logger.
type LogConfig struct {
	// Verbose enables debug output and caller reporting. It forces
	// timestamps on.
	Verbose bool

	// Timestamps toggles timestamp reporting. Nil means on.
	Timestamps *bool
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// SetupLogging replaces the process-wide logger.
func SetupLogging(cfg LogConfig) {
	level := log.InfoLevel
	if cfg.Verbose {
		level = log.DebugLevel
	}

	timestamps := true
	if cfg.Timestamps != nil && !cfg.Verbose {
		timestamps = *cfg.Timestamps
	}

	logger = log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: timestamps,
		ReportCaller:    cfg.Verbose,
		TimeFormat:      "15:04:05",
	})
}

// Logger returns the process-wide logger.
func Logger() *log.Logger {
	return logger
}

// ProjectLogger returns a child logger whose lines are prefixed with the
// project id. It inherits the level and options of the current logger.
func ProjectLogger(projectID string) *log.Logger {
	return logger.WithPrefix(StyleNoun.Render("p:" + projectID))
}

// Debug logs a debug message.
func Debug(msg string, keyvals ...any) {
	logger.Debug(msg, keyvals...)
}

// Info logs an info message.
func Info(msg string, keyvals ...any) {
	logger.Info(msg, keyvals...)
}

// Warn logs a warning message.
func Warn(msg string, keyvals ...any) {
	logger.Warn(msg, keyvals...)
}

// Error logs an error message.
func Error(msg string, keyvals ...any) {
	logger.Error(msg, keyvals...)
}

// Println prints a message to stdout with a newline.
func Println(msg string) {
	os.Stdout.WriteString(msg + "\n")
}

// Details prints multi-line detail text to stderr without log formatting.
func Details(text string) {
	os.Stderr.WriteString(text)
}
