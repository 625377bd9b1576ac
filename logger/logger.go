// logger/logger.go
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelTags = [...]string{"[DEBUG] ", "[INFO]  ", "[WARN]  ", "[ERROR] "}
var levelColors = [...]string{colorGray, colorReset, colorYellow, colorRed}

// Logger is never mutated once published as defaultLogger; changes swap in
// a new value under mu.
type Logger struct {
	console  [4]*log.Logger
	file     [4]*log.Logger
	handle   *os.File
	minLevel LogLevel
}

var (
	defaultLogger *Logger
	once          sync.Once
	mu            sync.RWMutex
)

// ensureInitialized creates a console-only default logger if Init was never called
func ensureInitialized() {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if defaultLogger == nil {
			defaultLogger = newLogger(os.Stdout, nil, INFO)
		}
	})
}

func newLogger(console io.Writer, file io.Writer, level LogLevel) *Logger {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	l := &Logger{minLevel: level}
	for lvl := DEBUG; lvl <= ERROR; lvl++ {
		if console != nil {
			l.console[lvl] = log.New(console, levelColors[lvl]+levelTags[lvl]+colorReset, flags)
		}
		if file != nil {
			l.file[lvl] = log.New(file, levelTags[lvl], flags)
		}
	}
	return l
}

// Init configures the process logger.
// If filename is empty, logs only to console.
// If console is false, logs only to file.
func Init(filename string, console bool) error {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()

	var fileOut io.Writer
	var handle *os.File
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		handle = f
		fileOut = f
	}

	var consoleOut io.Writer
	if console {
		consoleOut = os.Stdout
	}
	if fileOut == nil && consoleOut == nil {
		return fmt.Errorf("no output destination specified")
	}

	level := defaultLogger.minLevel
	if defaultLogger.handle != nil {
		defaultLogger.handle.Close()
	}
	defaultLogger = newLogger(consoleOut, fileOut, level)
	defaultLogger.handle = handle
	return nil
}

// InitWriter points console output at w. Used by tests to capture log lines.
func InitWriter(w io.Writer, level LogLevel) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = newLogger(w, nil, level)
}

// SetLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR)
func SetLevel(level LogLevel) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	next := *defaultLogger
	next.minLevel = level
	defaultLogger = &next
}

// ParseLevel maps "debug", "info", "warn"/"warning" and "error" to a level.
// Unknown values map to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// SetLevelFromString is SetLevel(ParseLevel(s)).
func SetLevelFromString(s string) {
	SetLevel(ParseLevel(s))
}

// Close closes the log file if one is open
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if defaultLogger != nil && defaultLogger.handle != nil {
		handle := defaultLogger.handle
		next := *defaultLogger
		next.handle = nil
		next.file = [4]*log.Logger{}
		defaultLogger = &next
		handle.Close()
	}
}

func emit(depth int, level LogLevel, msg string) {
	ensureInitialized()
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if level < l.minLevel {
		return
	}
	if c := l.console[level]; c != nil {
		c.Output(depth, msg)
	}
	if f := l.file[level]; f != nil {
		f.Output(depth, msg)
	}
}

// Debug logs a debug message
func Debug(v ...interface{}) { emit(3, DEBUG, fmt.Sprint(v...)) }

// Debugf logs a formatted debug message
func Debugf(format string, v ...interface{}) { emit(3, DEBUG, fmt.Sprintf(format, v...)) }

// Info logs an info message
func Info(v ...interface{}) { emit(3, INFO, fmt.Sprint(v...)) }

// Infof logs a formatted info message
func Infof(format string, v ...interface{}) { emit(3, INFO, fmt.Sprintf(format, v...)) }

// Warn logs a warning message
func Warn(v ...interface{}) { emit(3, WARN, fmt.Sprint(v...)) }

// Warnf logs a formatted warning message
func Warnf(format string, v ...interface{}) { emit(3, WARN, fmt.Sprintf(format, v...)) }

// Error logs an error message
func Error(v ...interface{}) { emit(3, ERROR, fmt.Sprint(v...)) }

// Errorf logs a formatted error message
func Errorf(format string, v ...interface{}) { emit(3, ERROR, fmt.Sprintf(format, v...)) }

// Fatal logs an error message and exits the program
func Fatal(v ...interface{}) {
	emit(3, ERROR, fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf logs a formatted error message and exits the program
func Fatalf(format string, v ...interface{}) {
	emit(3, ERROR, fmt.Sprintf(format, v...))
	os.Exit(1)
}

// JobLogger prefixes every message with the job id so interleaved jobs can be
// told apart in one stream.
type JobLogger struct {
	prefix string
}

// ForJob returns a logger scoped to jobID.
func ForJob(jobID string) *JobLogger {
	return &JobLogger{prefix: "[job " + jobID + "] "}
}

func (j *JobLogger) Debugf(format string, v ...interface{}) {
	emit(3, DEBUG, j.prefix+fmt.Sprintf(format, v...))
}

func (j *JobLogger) Infof(format string, v ...interface{}) {
	emit(3, INFO, j.prefix+fmt.Sprintf(format, v...))
}

func (j *JobLogger) Warnf(format string, v ...interface{}) {
	emit(3, WARN, j.prefix+fmt.Sprintf(format, v...))
}

func (j *JobLogger) Errorf(format string, v ...interface{}) {
	emit(3, ERROR, j.prefix+fmt.Sprintf(format, v...))
}
