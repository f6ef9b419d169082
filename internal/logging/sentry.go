package logging

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

var sentryEnabled bool

// InitSentry initializes Sentry for crash reporting.
// Opt-in: enabled via user settings or CARD_UID_SENTRY=1, and only when a DSN
// is supplied through CARD_UID_SENTRY_DSN.
// Returns true if Sentry was successfully initialized.
func InitSentry(version string, crashReportingEnabled bool) bool {
	// Environment variable takes precedence over settings
	enabled := crashReportingEnabled
	switch os.Getenv("CARD_UID_SENTRY") {
	case "1":
		enabled = true
	case "0":
		enabled = false
	}

	if !enabled {
		return false
	}

	dsn := os.Getenv("CARD_UID_SENTRY_DSN")
	if dsn == "" {
		Warn(CatSystem, "Crash reporting enabled but CARD_UID_SENTRY_DSN is not set", nil)
		return false
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          "card-uid@" + version,
		Environment:      getEnvironment(),
		AttachStacktrace: true,
		TracesSampleRate: 0.0,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to initialize Sentry: %v\n", err)
		return false
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("run_id", Get().RunID())
	})

	sentryEnabled = true
	return true
}

// getEnvironment returns the environment name for Sentry.
func getEnvironment() string {
	if env := os.Getenv("CARD_UID_ENVIRONMENT"); env != "" {
		return env
	}
	return "production"
}

// SentryEnabled returns whether Sentry is currently enabled.
func SentryEnabled() bool {
	return sentryEnabled
}

// FlushSentry flushes any buffered events to Sentry.
// Call this before application exit.
func FlushSentry(timeout time.Duration) {
	if sentryEnabled {
		sentry.Flush(timeout)
	}
}

// CapturePanic sends a panic to Sentry along with the stack trace.
func CapturePanic(panicValue interface{}, stack []byte, context string) {
	if !sentryEnabled {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("panic_context", context)
		scope.SetExtra("stack_trace", string(stack))
		scope.SetLevel(sentry.LevelFatal)

		switch v := panicValue.(type) {
		case error:
			sentry.CaptureException(v)
		case string:
			sentry.CaptureMessage(v)
		default:
			sentry.CaptureMessage(fmt.Sprintf("%v", v))
		}
	})

	// Flush immediately for panics since app may crash
	sentry.Flush(2 * time.Second)
}

// CaptureError sends an error to Sentry.
func CaptureError(err error, context string, data map[string]interface{}) {
	if !sentryEnabled || err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_context", context)
		for k, v := range data {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}
