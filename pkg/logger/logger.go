package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a LOG_LEVEL value to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

type Logger struct {
	level       atomic.Int32
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	debugLogger *log.Logger
}

func New(out, errOut io.Writer) *Logger {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	l := &Logger{
		infoLogger:  log.New(out, "INFO: ", flags),
		warnLogger:  log.New(out, "WARN: ", flags),
		errorLogger: log.New(errOut, "ERROR: ", flags),
		debugLogger: log.New(out, "DEBUG: ", flags),
	}
	l.level.Store(int32(LevelInfo))
	return l
}

func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func (l *Logger) enabled(level Level) bool {
	return Level(l.level.Load()) <= level
}

func (l *Logger) target(level Level) *log.Logger {
	switch level {
	case LevelDebug:
		return l.debugLogger
	case LevelWarn:
		return l.warnLogger
	case LevelError:
		return l.errorLogger
	default:
		return l.infoLogger
	}
}

// logf writes at calldepth 3 so Lshortfile reports the caller of Info/Error/...
// for both the methods and the package-level helpers.
func (l *Logger) logf(level Level, format string, v ...interface{}) {
	if !l.enabled(level) {
		return
	}
	_ = l.target(level).Output(3, fmt.Sprintf(format, v...))
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.logf(LevelInfo, format, v...)
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.logf(LevelWarn, format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.logf(LevelError, format, v...)
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.logf(LevelDebug, format, v...)
}

func (l *Logger) Fatal(format string, v ...interface{}) {
	_ = l.errorLogger.Output(2, fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Global logger instance
var GlobalLogger = New(os.Stdout, os.Stderr)

func SetLevel(level Level) {
	GlobalLogger.SetLevel(level)
}

// Convenience functions
func Info(format string, v ...interface{}) {
	GlobalLogger.logf(LevelInfo, format, v...)
}

func Warn(format string, v ...interface{}) {
	GlobalLogger.logf(LevelWarn, format, v...)
}

func Error(format string, v ...interface{}) {
	GlobalLogger.logf(LevelError, format, v...)
}

func Debug(format string, v ...interface{}) {
	GlobalLogger.logf(LevelDebug, format, v...)
}

func Fatal(format string, v ...interface{}) {
	_ = GlobalLogger.errorLogger.Output(2, fmt.Sprintf(format, v...))
	os.Exit(1)
}
