// Package logger is a small leveled logger shared by all covpub packages.
// Messages are printf-style and go to stderr unless configured otherwise,
// which keeps stdout free for command output.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents the logging level.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levels = [...]struct {
	name  string
	color string
}{
	DEBUG: {"DEBUG", "\033[36m"},
	INFO:  {"INFO", "\033[32m"},
	WARN:  {"WARN", "\033[33m"},
	ERROR: {"ERROR", "\033[31m"},
}

const colorReset = "\033[0m"

func (l Level) valid() bool {
	return l >= DEBUG && l <= ERROR
}

// String returns the upper-case level name.
func (l Level) String() string {
	if !l.valid() {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levels[l].name
}

// ParseLevel converts a level name to a Level. The empty name is INFO.
func ParseLevel(name string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", name)
}

// Options configures the default logger.
type Options struct {
	Level Level
	// Output defaults to os.Stderr.
	Output io.Writer
	// Color adds ANSI colors to the level tag. It is ignored when the
	// NO_COLOR environment variable is set.
	Color bool
}

type logger struct {
	mu    sync.Mutex
	level Level
	color bool
	out   *log.Logger
}

var std = newLogger(Options{Level: INFO, Color: true})

func newLogger(opts Options) *logger {
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}
	_, noColor := os.LookupEnv("NO_COLOR")
	return &logger{
		level: opts.Level,
		color: opts.Color && !noColor,
		out:   log.New(w, "", log.LstdFlags),
	}
}

// Configure replaces the settings of the default logger.
func Configure(opts Options) {
	l := newLogger(opts)
	std.mu.Lock()
	defer std.mu.Unlock()
	std.level, std.color, std.out = l.level, l.color, l.out
}

// SetLevel changes the level of the default logger.
func SetLevel(level Level) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.level = level
}

// GetLevel returns the level of the default logger.
func GetLevel() Level {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.level
}

// Enabled reports whether messages of the given level are written.
func Enabled(level Level) bool {
	return level >= GetLevel()
}

func (l *logger) logf(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	tag := "[" + level.String() + "]"
	if l.color {
		tag = levels[level].color + tag + colorReset
	}
	l.out.Println(tag + " " + fmt.Sprintf(format, args...))
}

// Debug logs a debug message.
func Debug(format string, args ...interface{}) {
	std.logf(DEBUG, format, args...)
}

// Info logs an info message.
func Info(format string, args ...interface{}) {
	std.logf(INFO, format, args...)
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	std.logf(WARN, format, args...)
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	std.logf(ERROR, format, args...)
}
