// Package logging provides formatted console logging with color support,
// verbosity gating, and optional JSON-RPC message tracing.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ANSI escape sequences used when color output is enabled.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Logger writes formatted log lines to a single writer. All methods are safe
// to call on a nil receiver, which discards the output.
type Logger struct {
	verbose     bool
	useColor    bool
	jsonRPCMode bool
	writer      io.Writer
}

// NewLogger creates a logger writing to stdout.
func NewLogger(verbose, useColor, jsonRPC bool) *Logger {
	return NewLoggerWithWriter(verbose, useColor, jsonRPC, os.Stdout)
}

// NewLoggerWithWriter creates a logger writing to the given writer.
func NewLoggerWithWriter(verbose, useColor, jsonRPC bool, w io.Writer) *Logger {
	return &Logger{
		verbose:     verbose,
		useColor:    useColor,
		jsonRPCMode: jsonRPC,
		writer:      w,
	}
}

// SetVerbose toggles verbose output.
func (l *Logger) SetVerbose(verbose bool) {
	if l == nil {
		return
	}
	l.verbose = verbose
}

// SetWriter redirects subsequent output to w.
func (l *Logger) SetWriter(w io.Writer) {
	if l == nil {
		return
	}
	l.writer = w
}

func (l *Logger) log(color, prefix, format string, args ...interface{}) {
	if l == nil || l.writer == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.useColor && color != "" {
		fmt.Fprintf(l.writer, "%s%s%s %s\n", color, prefix, colorReset, msg)
		return
	}
	fmt.Fprintf(l.writer, "%s %s\n", prefix, msg)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(colorCyan, "ℹ", format, args...)
}

// InfoVerbose logs an informational message only in verbose mode.
func (l *Logger) InfoVerbose(format string, args ...interface{}) {
	if l == nil || !l.verbose {
		return
	}
	l.Info(format, args...)
}

// Success logs a success message.
func (l *Logger) Success(format string, args ...interface{}) {
	l.log(colorGreen, "✓", format, args...)
}

// Warning logs a warning message.
func (l *Logger) Warning(format string, args ...interface{}) {
	l.log(colorYellow, "⚠", format, args...)
}

// WarningVerbose logs a warning only in verbose mode.
func (l *Logger) WarningVerbose(format string, args ...interface{}) {
	if l == nil || !l.verbose {
		return
	}
	l.Warning(format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(colorRed, "✗", format, args...)
}

// Debug logs a message only in verbose mode.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l == nil || !l.verbose {
		return
	}
	l.log(colorGray, "·", format, args...)
}

// Request traces an outgoing JSON-RPC request when JSON-RPC mode is enabled.
func (l *Logger) Request(method string, params interface{}) {
	if l == nil || !l.jsonRPCMode {
		return
	}
	l.log(colorGray, "→", "%s %s", method, compactJSON(params))
}

// Response traces an incoming JSON-RPC response when JSON-RPC mode is enabled.
func (l *Logger) Response(method string, result interface{}) {
	if l == nil || !l.jsonRPCMode {
		return
	}
	l.log(colorGray, "←", "%s %s", method, compactJSON(result))
}

// Notification traces an incoming JSON-RPC notification when JSON-RPC mode is
// enabled.
func (l *Logger) Notification(method string, params interface{}) {
	if l == nil || !l.jsonRPCMode {
		return
	}
	l.log(colorGray, "«", "%s %s", method, compactJSON(params))
}

func compactJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
