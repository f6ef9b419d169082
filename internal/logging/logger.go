package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Level is the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel converts a level name ("debug", "info", "warn", "error") to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func (l Level) logrus() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Category groups log entries by the part of the program that produced them.
type Category string

const (
	CatSystem  Category = "system"
	CatReader  Category = "reader"
	CatCard    Category = "card"
	CatConsole Category = "console"
)

// LogEntry is a single buffered log record.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Category  Category       `json:"category"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`

	level Level
}

// Stats summarizes the contents of the log buffer.
type Stats struct {
	Total      int            `json:"total"`
	Capacity   int            `json:"capacity"`
	ByLevel    map[string]int `json:"byLevel"`
	ByCategory map[string]int `json:"byCategory"`
}

// Logger keeps the most recent entries in memory and forwards every entry
// to a logrus sink.
type Logger struct {
	mu         sync.RWMutex
	entries    []LogEntry
	maxEntries int
	minLevel   Level
	runID      string
	sink       *logrus.Logger
}

var (
	defaultLogger *Logger
	defaultMu     sync.Mutex
)

// New creates a logger that buffers up to maxEntries entries at or above minLevel.
// The logrus sink discards output until SetOutput is called.
func New(maxEntries int, minLevel Level) *Logger {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	sink := logrus.New()
	sink.SetOutput(io.Discard)
	sink.SetLevel(minLevel.logrus())
	sink.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return &Logger{
		entries:    make([]LogEntry, 0, maxEntries),
		maxEntries: maxEntries,
		minLevel:   minLevel,
		runID:      uuid.NewString(),
		sink:       sink,
	}
}

// Init replaces the package logger.
func Init(maxEntries int, minLevel Level) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = New(maxEntries, minLevel)
}

// Get returns the package logger, creating one at info level if Init was never called.
func Get() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(1000, LevelInfo)
	}
	return defaultLogger
}

// SetOutput directs the logrus sink to w.
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.SetOutput(w)
}

// RunID identifies this process run in every entry written to the sink.
func (l *Logger) RunID() string {
	return l.runID
}

// Log records an entry.
func (l *Logger) Log(level Level, category Category, message string, data map[string]any) {
	if level < l.minLevel {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Category:  category,
		Message:   message,
		Data:      data,
		level:     level,
	}

	l.mu.Lock()
	if len(l.entries) >= l.maxEntries {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	fields := logrus.Fields{
		"category": string(category),
		"run_id":   l.runID,
	}
	for k, v := range data {
		fields[k] = v
	}
	l.sink.WithFields(fields).Log(level.logrus(), message)
}

// GetEntries returns up to limit of the newest entries, oldest first.
// minLevel and category are optional filters.
func (l *Logger) GetEntries(limit int, minLevel *Level, category *Category) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []LogEntry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		e := l.entries[i]
		if minLevel != nil && e.level < *minLevel {
			continue
		}
		if category != nil && e.Category != *category {
			continue
		}
		result = append(result, e)
	}

	// Restore chronological order
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// Stats returns counts of the buffered entries.
func (l *Logger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{
		Total:      len(l.entries),
		Capacity:   l.maxEntries,
		ByLevel:    make(map[string]int),
		ByCategory: make(map[string]int),
	}
	for _, e := range l.entries {
		s.ByLevel[e.Level]++
		s.ByCategory[string(e.Category)]++
	}
	return s
}

// OpenLogFile opens (appending) the log file in dir, creating dir if needed.
func OpenLogFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "card-uid.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

func Debug(category Category, message string, data map[string]any) {
	Get().Log(LevelDebug, category, message, data)
}

func Info(category Category, message string, data map[string]any) {
	Get().Log(LevelInfo, category, message, data)
}

func Warn(category Category, message string, data map[string]any) {
	Get().Log(LevelWarn, category, message, data)
}

func Error(category Category, message string, data map[string]any) {
	Get().Log(LevelError, category, message, data)
}
