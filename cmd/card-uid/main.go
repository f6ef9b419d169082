package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SimplyPrint/card-uid/internal/config"
	"github.com/SimplyPrint/card-uid/internal/console"
	"github.com/SimplyPrint/card-uid/internal/core"
	"github.com/SimplyPrint/card-uid/internal/logging"
	"github.com/SimplyPrint/card-uid/internal/settings"
	"github.com/SimplyPrint/card-uid/internal/version"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Card UID - read the UID of a smartcard through PC/SC\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  card-uid\n")
		fmt.Fprintf(os.Stderr, "  card-uid version\n")
		fmt.Fprintf(os.Stderr, "  card-uid crashes [file]       List crash logs or print one\n")
		fmt.Fprintf(os.Stderr, "  card-uid crash-reporting [on|off]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  CARD_UID_LOG_LEVEL    debug, info, warn or error (default: info)\n")
		fmt.Fprintf(os.Stderr, "  CARD_UID_LOG_DIR      Directory for the log file and crash logs\n")
		fmt.Fprintf(os.Stderr, "  CARD_UID_DEBUG        Set to 1 to mirror logs to stderr\n")
		fmt.Fprintf(os.Stderr, "  CARD_UID_SENTRY       Set to 1/0 to force crash reporting on/off\n")
		fmt.Fprintf(os.Stderr, "  CARD_UID_SENTRY_DSN   Sentry DSN for crash reports\n")
	}

	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}

	s, settingsErr := settings.Load()
	cfg := config.Load(s)
	if cfg.LogDir != "" {
		logging.SetLogDir(cfg.LogDir)
	}

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			return
		case "crashes":
			os.Exit(runCrashes(args[1:], os.Stdout, os.Stderr))
		case "crash-reporting":
			os.Exit(runCrashReporting(args[1:], os.Stdout, os.Stderr))
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			flag.Usage()
			os.Exit(console.ExitFailure)
		}
	}

	os.Exit(run(s, cfg, settingsErr))
}

func printVersion() {
	fmt.Printf("card-uid %s\n", version.Version)
	fmt.Printf("Build time: %s\n", version.BuildTime)
	fmt.Printf("Git commit: %s\n", version.GitCommit)
}

func run(s *settings.Settings, cfg *config.Config, settingsErr error) int {
	logging.Init(1000, cfg.LogLevel)

	var sink io.Writer = io.Discard
	if logFile, err := logging.OpenLogFile(logging.LogDir()); err == nil {
		defer logFile.Close()
		sink = logFile
	}
	if cfg.Debug {
		sink = io.MultiWriter(sink, os.Stderr)
	}
	logging.Get().SetOutput(sink)

	if settingsErr != nil {
		logging.Warn(logging.CatSystem, "Failed to load settings, using defaults", map[string]any{
			"error": settingsErr.Error(),
		})
	}

	logging.InitSentry(version.Version, s.CrashReporting)
	defer logging.FlushSentry(2 * time.Second)

	logging.Info(logging.CatSystem, "card-uid starting", map[string]any{
		"version": version.Version,
	})

	runner := console.NewRunner(core.DefaultContextFactory{}, os.Stdin, os.Stdout, os.Stderr)
	defer logging.RecoverAndLogFunc("main", true, func(interface{}, string) {
		runner.Abort()
	})

	// The session handles a signal itself unless it is blocked where nothing
	// can wake it (establishing the context or reading the selection).
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for range sigChan {
			if runner.Interrupt() {
				continue
			}
			logging.Info(logging.CatSystem, "Interrupted, shutting down", nil)
			runner.Abort()
			logging.FlushSentry(2 * time.Second)
			os.Exit(console.ExitInterrupted)
		}
	}()

	code := runner.Run()
	logging.Info(logging.CatSystem, "card-uid finished", map[string]any{
		"exitCode": code,
	})
	return code
}
