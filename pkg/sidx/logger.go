package sidx

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/tomatolog/columnar/internal/common"
)

// Logger is re-exported so callers configuring a Builder never need to
// import internal/common directly.
type Logger = common.Logger

// NewNullLogger returns a Logger that discards everything.
func NewNullLogger() Logger { return &common.NullLogger{} }

// DefaultLogger writes structured JSON lines to stderr, the shape the
// teacher's pkg/srad/logger.go uses.
type DefaultLogger struct {
	mu     sync.Mutex
	level  common.LogLevel
	logger *log.Logger
}

// NewDefaultLogger creates a logger at LogLevelInfo.
func NewDefaultLogger() Logger {
	return NewDefaultLoggerWithLevel(common.LogLevelInfo)
}

// NewDefaultLoggerWithLevel creates a logger at the given minimum level.
func NewDefaultLoggerWithLevel(level common.LogLevel) Logger {
	return &DefaultLogger{level: level, logger: log.New(os.Stderr, "", 0)}
}

func (l *DefaultLogger) Debug(msg string, fields ...interface{}) {
	if l.level <= common.LogLevelDebug {
		l.log("DEBUG", msg, fields...)
	}
}

func (l *DefaultLogger) Info(msg string, fields ...interface{}) {
	if l.level <= common.LogLevelInfo {
		l.log("INFO", msg, fields...)
	}
}

func (l *DefaultLogger) Warn(msg string, fields ...interface{}) {
	if l.level <= common.LogLevelWarn {
		l.log("WARN", msg, fields...)
	}
}

func (l *DefaultLogger) Error(msg string, fields ...interface{}) {
	if l.level <= common.LogLevelError {
		l.log("ERROR", msg, fields...)
	}
}

func (l *DefaultLogger) log(level, msg string, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level,
		"message":   msg,
	}
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			entry[key] = fields[i+1]
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf(`{"level":"ERROR","message":"failed to marshal log entry","error":"%s"}`, err)
		return
	}
	l.logger.Println(string(data))
}
