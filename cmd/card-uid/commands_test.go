package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SimplyPrint/card-uid/internal/logging"
	"github.com/SimplyPrint/card-uid/internal/settings"
)

func useTempDirs(t *testing.T) (logDir, settingsPath string) {
	t.Helper()
	logDir = t.TempDir()
	settingsPath = filepath.Join(t.TempDir(), "settings.json")
	logging.SetLogDir(logDir)
	settings.SetPath(settingsPath)
	t.Cleanup(func() {
		logging.SetLogDir("")
		settings.SetPath("")
	})
	return logDir, settingsPath
}

func TestRunCrashesEmpty(t *testing.T) {
	logDir, _ := useTempDirs(t)

	var out, errOut bytes.Buffer
	if code := runCrashes(nil, &out, &errOut); code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr: %q)", code, errOut.String())
	}
	if out.String() != "No crash logs in "+logDir+"\n" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestRunCrashesListAndRead(t *testing.T) {
	useTempDirs(t)

	path, err := logging.WriteCrashLog("reader vanished", []byte("goroutine 1 [running]"))
	if err != nil {
		t.Fatalf("WriteCrashLog() returned error: %v", err)
	}
	name := filepath.Base(path)

	var out, errOut bytes.Buffer
	if code := runCrashes(nil, &out, &errOut); code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr: %q)", code, errOut.String())
	}
	if !strings.Contains(out.String(), name) {
		t.Errorf("listing %q does not mention %s", out.String(), name)
	}

	out.Reset()
	if code := runCrashes([]string{name}, &out, &errOut); code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr: %q)", code, errOut.String())
	}
	if !strings.Contains(out.String(), "reader vanished") {
		t.Errorf("crash log contents not printed: %q", out.String())
	}
}

func TestRunCrashesErrors(t *testing.T) {
	useTempDirs(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing file", args: []string{"crash_2000-01-01_00-00-00.log"}, want: "Failed to read crash log"},
		{name: "path outside log dir", args: []string{"../settings.json"}, want: "Failed to read crash log"},
		{name: "too many args", args: []string{"a", "b"}, want: "Usage:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			if code := runCrashes(tt.args, &out, &errOut); code != 1 {
				t.Errorf("expected exit 1, got %d", code)
			}
			if !strings.Contains(errOut.String(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, errOut.String())
			}
		})
	}
}

func TestRunCrashReporting(t *testing.T) {
	_, settingsPath := useTempDirs(t)
	t.Setenv("CARD_UID_SENTRY", "")

	var out, errOut bytes.Buffer
	if code := runCrashReporting(nil, &out, &errOut); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if out.String() != "Crash reporting: off\n" {
		t.Errorf("default should be off, got %q", out.String())
	}

	out.Reset()
	if code := runCrashReporting([]string{"on"}, &out, &errOut); code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr: %q)", code, errOut.String())
	}
	if !settings.IsCrashReportingEnabled() {
		t.Error("crash reporting should be enabled")
	}
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		t.Fatalf("settings were not saved: %v", err)
	}
	if !strings.Contains(string(data), `"crashReporting": true`) {
		t.Errorf("saved settings missing opt-in: %s", data)
	}

	out.Reset()
	runCrashReporting([]string{"OFF"}, &out, &errOut)
	if settings.IsCrashReportingEnabled() {
		t.Error("crash reporting should be disabled again")
	}
}

func TestRunCrashReportingEnvOverride(t *testing.T) {
	useTempDirs(t)
	t.Setenv("CARD_UID_SENTRY", "1")

	var out, errOut bytes.Buffer
	runCrashReporting(nil, &out, &errOut)
	if !strings.Contains(out.String(), "Overridden by CARD_UID_SENTRY=1") {
		t.Errorf("expected override note, got %q", out.String())
	}
}

func TestRunCrashReportingInvalid(t *testing.T) {
	useTempDirs(t)

	for _, args := range [][]string{{"maybe"}, {"on", "now"}} {
		var out, errOut bytes.Buffer
		if code := runCrashReporting(args, &out, &errOut); code != 1 {
			t.Errorf("%v: expected exit 1, got %d", args, code)
		}
		if !strings.Contains(errOut.String(), "Usage:") {
			t.Errorf("%v: expected usage, got %q", args, errOut.String())
		}
	}
}
