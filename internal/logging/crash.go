package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// MaxCrashLogs is the maximum number of crash logs to keep
	MaxCrashLogs = 20
	// CrashLogMaxAge is the maximum age of crash logs before cleanup
	CrashLogMaxAge = 30 * 24 * time.Hour // 30 days
	// crashLogEntries is how many buffered log entries go into a crash report
	crashLogEntries = 50
)

var (
	logDirMu       sync.RWMutex
	logDirOverride string
)

// SetLogDir overrides the platform default log directory. An empty dir
// restores the default.
func SetLogDir(dir string) {
	logDirMu.Lock()
	defer logDirMu.Unlock()
	logDirOverride = dir
}

// LogDir returns the directory for log and crash files based on the platform.
func LogDir() string {
	logDirMu.RLock()
	override := logDirOverride
	logDirMu.RUnlock()
	if override != "" {
		return override
	}

	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Logs", "Card-UID")
	case "windows":
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData, _ = os.UserHomeDir()
		}
		return filepath.Join(appData, "Card-UID", "logs")
	default: // Linux and others
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "card-uid", "logs")
	}
}

// WriteCrashLog writes a crash report to a timestamped file.
// Returns the path to the crash log file.
// Also triggers cleanup of old crash logs.
func WriteCrashLog(panicValue interface{}, stack []byte) (string, error) {
	dir := LogDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create crash log directory: %w", err)
	}

	now := time.Now()
	filename := fmt.Sprintf("crash_%s.log", now.Format("2006-01-02_15-04-05"))
	crashFilePath := filepath.Join(dir, filename)

	content := fmt.Sprintf(`Card UID Crash Report
=====================
Time: %s
Run ID: %s
Go Version: %s
OS/Arch: %s/%s

Panic Value:
%v

Stack Trace:
%s

Log Stats:
%s

Recent Log Entries:
%s
Build Info:
%s
`,
		now.Format(time.RFC3339),
		Get().RunID(),
		runtime.Version(),
		runtime.GOOS, runtime.GOARCH,
		panicValue,
		string(stack),
		formatStats(Get().Stats()),
		formatEntries(Get().GetEntries(crashLogEntries, nil, nil)),
		getBuildInfo(),
	)

	if err := os.WriteFile(crashFilePath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write crash log: %w", err)
	}

	// The process is usually about to exit, so don't leave this to a goroutine
	cleanupOldCrashLogs(dir, now)

	return crashFilePath, nil
}

func formatStats(s Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "total=%d capacity=%d", s.Total, s.Capacity)
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		if n := s.ByLevel[level.String()]; n > 0 {
			fmt.Fprintf(&b, " %s=%d", level, n)
		}
	}
	return b.String()
}

func formatEntries(entries []LogEntry) string {
	if len(entries) == 0 {
		return "(none)\n"
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s [%s] %s: %s", e.Timestamp.Format(time.RFC3339), e.Level, e.Category, e.Message)
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == "stack" {
				continue
			}
			fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// getBuildInfo returns build information if available.
func getBuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "Build info not available"
	}
	return info.String()
}

// RecoverAndLogFunc recovers from a panic, writes a crash log and calls onPanic
// before optionally re-panicking.
// Use this as: defer logging.RecoverAndLogFunc("context", true, cleanup)
func RecoverAndLogFunc(context string, rePanic bool, onPanic func(panicValue interface{}, crashFile string)) {
	if r := recover(); r != nil {
		crashFile := handlePanic(context, r)
		if onPanic != nil {
			onPanic(r, crashFile)
		}
		if rePanic {
			panic(r)
		}
	}
}

func handlePanic(context string, r interface{}) string {
	stack := debug.Stack()

	CapturePanic(r, stack, context)

	Error(CatSystem, fmt.Sprintf("PANIC in %s: %v", context, r), map[string]any{
		"panic": fmt.Sprintf("%v", r),
		"stack": string(stack),
	})

	crashFile, err := WriteCrashLog(r, stack)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write crash log: %v\n", err)
		crashFile = ""
	} else {
		fmt.Fprintf(os.Stderr, "Crash log written to: %s\n", crashFile)
	}

	fmt.Fprintf(os.Stderr, "\n=== PANIC in %s ===\n%v\n\nStack trace:\n%s\n", context, r, string(stack))
	return crashFile
}

// CrashLogInfo contains metadata about a crash log file.
type CrashLogInfo struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// GetCrashLogs returns up to limit crash log files, newest first.
func GetCrashLogs(limit int) ([]CrashLogInfo, error) {
	dir := LogDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []CrashLogInfo{}, nil
		}
		return nil, err
	}

	logs := []CrashLogInfo{}
	// ReadDir sorts by name, and names carry the timestamp
	for i := len(entries) - 1; i >= 0 && len(logs) < limit; i-- {
		entry := entries[i]
		if !isCrashLog(entry) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		logs = append(logs, CrashLogInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return logs, nil
}

// ReadCrashLog reads the contents of a crash log file.
func ReadCrashLog(filename string) (string, error) {
	// Only bare file names inside the log directory
	if filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid filename")
	}

	content, err := os.ReadFile(filepath.Join(LogDir(), filename))
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func isCrashLog(entry os.DirEntry) bool {
	name := entry.Name()
	return !entry.IsDir() && strings.HasPrefix(name, "crash_") && strings.HasSuffix(name, ".log")
}

// cleanupOldCrashLogs keeps at most MaxCrashLogs files in dir and removes any
// older than CrashLogMaxAge.
func cleanupOldCrashLogs(dir string, now time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var crashLogs []os.DirEntry
	for _, entry := range entries {
		if isCrashLog(entry) {
			crashLogs = append(crashLogs, entry)
		}
	}

	// Sort by name (which includes timestamp, so newest last)
	sort.Slice(crashLogs, func(i, j int) bool {
		return crashLogs[i].Name() < crashLogs[j].Name()
	})

	for i, entry := range crashLogs {
		shouldDelete := len(crashLogs)-i > MaxCrashLogs

		if info, err := entry.Info(); err == nil {
			if now.Sub(info.ModTime()) > CrashLogMaxAge {
				shouldDelete = true
			}
		}

		if shouldDelete {
			_ = os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
}
