package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	testbridge "github.com/editorkit/testbridge"
	"github.com/editorkit/testbridge/debugger"
	"github.com/editorkit/testbridge/exitcodes"
	"github.com/editorkit/testbridge/flags"
	"github.com/editorkit/testbridge/registry"
	"github.com/editorkit/testbridge/reporting"
	"github.com/editorkit/testbridge/service"
	"github.com/editorkit/testbridge/types"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "testbridge"
	app.Usage = "Editor test-runner bridge"
	app.Description = "testbridge runs build-tool tests and maps their reports onto editor test positions"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			// RuntimeError and TestFailureError carry their own exit
			// codes; anything untyped counts as a test failure.
			code := exitcodes.TestFailure
			var coder interface{ ExitCode() int }
			if errors.As(err, &coder) {
				code = coder.ExitCode()
			}
			cli.HandleExitCoder(cli.Exit(err.Error(), code))
		}
	}

	// Start telemetry
	shutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server
	svc := service.New()
	svc.Start(ctx)
	defer svc.Shutdown()

	// Start CLI
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// levelFromString maps the log-level flag onto slog levels, including the
// trace and crit extremes the geth logger defines beyond stock slog.
func levelFromString(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	}
	return log.LevelInfo, fmt.Errorf("unknown log level: %q", s)
}

func run(ctx *cli.Context) error {
	lvl, err := levelFromString(ctx.String(flags.LogLevel.Name))
	if err != nil {
		lvl = log.LevelInfo
	}
	logger := log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stdout, lvl, true))
	log.SetDefault(logger)

	cfg, err := testbridge.NewConfig(ctx, logger)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return testbridge.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	logger.Debug("Config", "config", cfg)

	tree, err := types.LoadTreeFile(cfg.TreeFile)
	if err != nil {
		return testbridge.NewRuntimeError(fmt.Errorf("failed to load position tree: %w", err))
	}

	reg, err := registry.NewRegistry(registry.Config{
		Log:          logger,
		ProfilesFile: cfg.ProfilesFile,
	})
	if err != nil {
		return testbridge.NewRuntimeError(fmt.Errorf("failed to load runner profiles: %w", err))
	}

	coordinator := testbridge.NewCoordinator(logger, reg, cfg.LogDir)

	req := testbridge.RunRequest{
		Tree:             tree,
		Targets:          cfg.Targets,
		Profile:          cfg.Profile,
		WorkDir:          cfg.WorkDir,
		ReportDir:        cfg.ReportDir,
		Strategy:         cfg.Strategy,
		RunTimeout:       cfg.RunTimeout,
		ReadinessTimeout: cfg.ReadinessTimeout,
	}
	if cfg.Strategy == testbridge.StrategyDebugAttach {
		// Without an editor attached the CLI plays the session itself:
		// runner output goes to stdout, the descriptor is logged.
		req.Session = &debugger.WriterSession{W: os.Stdout, Log: logger}
	}

	summary, runErr := coordinator.Run(ctx.Context, req)
	if summary != nil {
		fmt.Println(reporting.RenderTree(tree, summary.Results))
		fmt.Println(reporting.RenderSummaryTable(tree, summary.Results,
			fmt.Sprintf("Test Run %s", summary.RunID)))
		logger.Info("Run logs stored", "dir", summary.LogDir)
	}
	return runErr
}
