// Package logx adds levels, colored tags and access-log formatting on top of
// the standard library logger.
package logx

import (
	"fmt"
	"log"
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

const tag = "[jsonnet-exporter]"

var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
}

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// SetLevel changes the minimum level for the process.
func SetLevel(l Level) { current.Store(int32(l)) }

func CurrentLevel() Level { return Level(current.Load()) }

func Enabled(l Level) bool { return l >= CurrentLevel() }

func levelTag(l Level) string {
	s := l.String()
	if !ColorEnabled() {
		return s
	}
	switch l {
	case LevelWarn:
		return "\x1b[1;33m" + s + "\x1b[0m"
	case LevelError:
		return "\x1b[1;31m" + s + "\x1b[0m"
	default:
		return s
	}
}

func logf(l Level, format string, args ...any) {
	if !Enabled(l) {
		return
	}
	log.Printf(tag+" "+levelTag(l)+" "+format, args...)
}

func Debugf(format string, args ...any) { logf(LevelDebug, format, args...) }

func Infof(format string, args ...any) { logf(LevelInfo, format, args...) }

func Warnf(format string, args ...any) { logf(LevelWarn, format, args...) }

func Errorf(format string, args ...any) { logf(LevelError, format, args...) }
