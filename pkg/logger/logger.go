// Package logger provides the ambient logging used by the ppu and mapper
// packages. It mirrors the level-gated, per-subsystem logger the rest of
// this codebase's lineage uses: a global sink with independent enable
// flags per component so a caller can turn on PPU tracing without also
// paying for mapper tracing.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"
)

// LogLevel gates how much detail reaches the writer.
type LogLevel int

const (
	LogLevelOff LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// Logger writes subsystem-tagged, timestamped lines to a writer.
type Logger struct {
	level         LogLevel
	writer        io.Writer
	ppuEnabled    bool
	mapperEnabled bool
}

var global *Logger

// Initialize installs the global logger. filename == "" logs to stdout.
func Initialize(level LogLevel, filename string) error {
	var writer io.Writer = os.Stdout

	if filename != "" {
		file, err := os.Create(filename)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		writer = file
	}

	global = &Logger{
		level:         level,
		writer:        writer,
		ppuEnabled:    false,
		mapperEnabled: false,
	}

	return nil
}

// SetPPULogging enables or disables PPU tracing.
func SetPPULogging(enabled bool) {
	if global != nil {
		global.ppuEnabled = enabled
	}
}

// SetMapperLogging enables or disables mapper tracing.
func SetMapperLogging(enabled bool) {
	if global != nil {
		global.mapperEnabled = enabled
	}
}

// LogPPU logs a PPU trace line, gated by SetPPULogging and LogLevelTrace.
func LogPPU(format string, args ...interface{}) {
	if global != nil && global.ppuEnabled && global.level >= LogLevelTrace {
		emit(global.writer, "PPU", format, args...)
	}
}

// LogMapper logs a mapper trace line, gated by SetMapperLogging and LogLevelDebug.
func LogMapper(format string, args ...interface{}) {
	if global != nil && global.mapperEnabled && global.level >= LogLevelDebug {
		emit(global.writer, "MAPPER", format, args...)
	}
}

// LogInfo logs a lifecycle event (attach, reset) regardless of subsystem flags.
func LogInfo(format string, args ...interface{}) {
	if global != nil && global.level >= LogLevelInfo {
		emit(global.writer, "INFO", format, args...)
	}
}

// LogError logs an error-level event.
func LogError(format string, args ...interface{}) {
	if global != nil && global.level >= LogLevelError {
		emit(global.writer, "ERROR", format, args...)
	}
}

func emit(w io.Writer, tag, format string, args ...interface{}) {
	timestamp := time.Now().Format("15:04:05.000")
	message := fmt.Sprintf(format, args...)
	fmt.Fprintf(w, "[%s] %s: %s\n", timestamp, tag, message)
}

// Close releases the file backing the global logger, if any.
func Close() {
	if global != nil {
		if file, ok := global.writer.(*os.File); ok && file != os.Stdout && file != os.Stderr {
			file.Close()
		}
	}
}
