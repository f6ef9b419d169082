package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/SimplyPrint/card-uid/internal/console"
	"github.com/SimplyPrint/card-uid/internal/logging"
	"github.com/SimplyPrint/card-uid/internal/settings"
)

// maxListedCrashLogs matches how many crash logs are kept on disk.
const maxListedCrashLogs = logging.MaxCrashLogs

// runCrashes lists crash logs, or prints one when given its file name.
func runCrashes(args []string, out, errOut io.Writer) int {
	if len(args) > 1 {
		fmt.Fprintln(errOut, "Usage: card-uid crashes [file]")
		return console.ExitFailure
	}

	if len(args) == 1 {
		content, err := logging.ReadCrashLog(args[0])
		if err != nil {
			fmt.Fprintf(errOut, "Failed to read crash log: %v\n", err)
			return console.ExitFailure
		}
		fmt.Fprint(out, content)
		return console.ExitOK
	}

	logs, err := logging.GetCrashLogs(maxListedCrashLogs)
	if err != nil {
		fmt.Fprintf(errOut, "Failed to list crash logs: %v\n", err)
		return console.ExitFailure
	}
	if len(logs) == 0 {
		fmt.Fprintf(out, "No crash logs in %s\n", logging.LogDir())
		return console.ExitOK
	}

	fmt.Fprintf(out, "Crash logs in %s:\n", logging.LogDir())
	for _, l := range logs {
		fmt.Fprintf(out, "  %s  %s  %d bytes\n", l.Name, l.ModTime.Format("2006-01-02 15:04:05"), l.Size)
	}
	return console.ExitOK
}

// runCrashReporting shows or changes the saved crash reporting preference.
func runCrashReporting(args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		state := "off"
		if settings.IsCrashReportingEnabled() {
			state = "on"
		}
		fmt.Fprintf(out, "Crash reporting: %s\n", state)
		if env := os.Getenv("CARD_UID_SENTRY"); env == "0" || env == "1" {
			fmt.Fprintf(out, "Overridden by CARD_UID_SENTRY=%s\n", env)
		}
		return console.ExitOK
	}

	var enabled bool
	switch strings.ToLower(args[0]) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		fmt.Fprintln(errOut, "Usage: card-uid crash-reporting [on|off]")
		return console.ExitFailure
	}
	if len(args) > 1 {
		fmt.Fprintln(errOut, "Usage: card-uid crash-reporting [on|off]")
		return console.ExitFailure
	}

	if err := settings.SetCrashReporting(enabled); err != nil {
		fmt.Fprintf(errOut, "Failed to save settings: %v\n", err)
		return console.ExitFailure
	}
	logging.Info(logging.CatSystem, "Crash reporting preference changed", map[string]any{
		"enabled": settings.Get().CrashReporting,
	})
	fmt.Fprintf(out, "Crash reporting turned %s\n", strings.ToLower(args[0]))
	return console.ExitOK
}
