package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// Logger defines a minimal, printf-style logging contract.
//
// Packages depend on this interface rather than a concrete logger so tests
// can inject Nop() and the CLI can redirect output without touching callers.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

var (
	fileLoggerOnce sync.Once
	fileLogger     *fileBackedLogger
)

// fileBackedLogger writes formatted lines to hive-debug.log and stderr.
type fileBackedLogger struct {
	mu        sync.Mutex
	out       io.Writer
	file      *os.File
	level     Level
	component string
}

// NewComponentLogger returns the shared debug logger scoped to a component.
// All component loggers append to the same hive-debug.log in the user's
// home directory; if the file cannot be opened only stderr is used.
func NewComponentLogger(component string) Logger {
	fileLoggerOnce.Do(func() {
		fileLogger = &fileBackedLogger{out: os.Stderr, level: DEBUG}
		home, err := os.UserHomeDir()
		if err != nil {
			log.Printf("logging: failed to resolve home directory: %v", err)
			return
		}
		path := filepath.Join(home, "hive-debug.log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("logging: failed to open %s: %v", path, err)
			return
		}
		fileLogger.file = file
	})
	return &fileBackedLogger{
		out:       fileLogger.out,
		file:      fileLogger.file,
		level:     fileLogger.level,
		component: component,
	}
}

// SetLevel adjusts the minimum level for this logger instance.
func (l *fileBackedLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *fileBackedLogger) log(level Level, format string, args ...any) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	component := l.component
	if component == "" {
		component = "hive"
	}

	// Format: 2025-09-30 12:34:56 [INFO] [component] file.go:123 - message
	message := fmt.Sprintf(format, args...)
	entry := fmt.Sprintf("%s [%s] [%s] %s:%d - %s\n",
		time.Now().Format("2006-01-02 15:04:05"), levelString(level), component, file, line, message)

	if l.file != nil {
		_, _ = l.file.WriteString(entry)
	}
	if l.out != nil {
		_, _ = io.WriteString(l.out, entry)
	}
}

func (l *fileBackedLogger) Debug(format string, args ...any) { l.log(DEBUG, format, args...) }
func (l *fileBackedLogger) Info(format string, args ...any)  { l.log(INFO, format, args...) }
func (l *fileBackedLogger) Warn(format string, args ...any)  { l.log(WARN, format, args...) }
func (l *fileBackedLogger) Error(format string, args ...any) { l.log(ERROR, format, args...) }

func levelString(level Level) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
