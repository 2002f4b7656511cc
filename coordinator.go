package testbridge

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/editorkit/testbridge/debugger"
	"github.com/editorkit/testbridge/junitxml"
	"github.com/editorkit/testbridge/logging"
	"github.com/editorkit/testbridge/metrics"
	"github.com/editorkit/testbridge/orchestrator"
	"github.com/editorkit/testbridge/registry"
	"github.com/editorkit/testbridge/reporting"
	"github.com/editorkit/testbridge/results"
	"github.com/editorkit/testbridge/types"
)

// Strategy selects how the test runner is driven.
type Strategy string

const (
	// StrategyIntegrated runs the tests to completion with output persisted
	// to the run log.
	StrategyIntegrated Strategy = "integrated"
	// StrategyDebugAttach waits for debugger readiness, hands the connection
	// descriptor to the injected session and streams output to it.
	StrategyDebugAttach Strategy = "debug-attach"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyIntegrated, StrategyDebugAttach:
		return Strategy(s), nil
	case "":
		return StrategyIntegrated, nil
	}
	return "", fmt.Errorf("invalid strategy: %s. Must be one of: %s, %s",
		s, StrategyIntegrated, StrategyDebugAttach)
}

// RunRequest describes one coordinated test run.
type RunRequest struct {
	Tree    *types.PositionTree
	Targets []string // locators; each becomes its own filter argument
	Profile string
	WorkDir string
	// ReportDir overrides the profile's report directory. Relative paths
	// resolve against WorkDir.
	ReportDir string
	Strategy  Strategy
	// Session receives the connection descriptor and the forwarded output
	// in debug-attach runs. Required for StrategyDebugAttach.
	Session debugger.Session
	Env     []string

	RunTimeout       time.Duration // 0 disables the overall timeout
	ReadinessTimeout time.Duration // 0 keeps the profile's timeout
}

// RunSummary is the outcome of one coordinated run.
type RunSummary struct {
	RunID       string
	Results     types.ResultSet
	Stats       types.Stats
	Duration    time.Duration
	Termination orchestrator.TerminationReason
	ExitCode    int
	LogDir      string
}

// Coordinator composes the orchestrator and the result aggregator into one
// request/response cycle per run. Runs are independent; a Coordinator may
// serve several concurrently.
type Coordinator struct {
	log        log.Logger
	registry   *registry.Registry
	orch       *orchestrator.Orchestrator
	aggregator *results.Aggregator
	tracer     trace.Tracer
	logDir     string
}

// NewCoordinator creates a coordinator writing per-run logs under logDir.
func NewCoordinator(logger log.Logger, reg *registry.Registry, logDir string) *Coordinator {
	if logger == nil {
		logger = log.Root()
	}
	return &Coordinator{
		log:        logger,
		registry:   reg,
		orch:       orchestrator.New(logger, 0),
		aggregator: results.NewAggregator(logger),
		tracer:     otel.Tracer("test coordinator"),
		logDir:     logDir,
	}
}

// Run executes one test run end to end: spawn the runner, optionally await
// debugger readiness and hand off the connection descriptor, wait for exit,
// parse the reports and map them onto the tree.
//
// Every test position ends up with a result: positions the reports never
// mentioned are marked failed, with the message distinguishing a run that
// produced no results at all from a single test missing its result. The
// returned error is a TestFailureError when any position failed and a
// RuntimeError for operational problems; a completed run with failures still
// returns its summary.
func (c *Coordinator) Run(ctx context.Context, req RunRequest) (*RunSummary, error) {
	runID := uuid.New().String()
	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("test run %s", runID))
	defer span.End()

	if req.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.RunTimeout)
		defer cancel()
	}

	if req.Tree == nil {
		return nil, NewRuntimeError(fmt.Errorf("no position tree provided"))
	}
	if err := req.Tree.Validate(); err != nil {
		return nil, NewRuntimeError(fmt.Errorf("invalid position tree: %w", err))
	}
	strategy, err := ParseStrategy(string(req.Strategy))
	if err != nil {
		return nil, NewRuntimeError(err)
	}
	debug := strategy == StrategyDebugAttach
	if debug && req.Session == nil {
		return nil, NewRuntimeError(fmt.Errorf("strategy %s requires a debugger session", strategy))
	}

	profile, ok := c.registry.Profile(req.Profile)
	if !ok {
		return nil, NewRuntimeError(fmt.Errorf("unknown runner profile %q (known: %v)",
			req.Profile, c.registry.Names()))
	}

	fileLogger, err := logging.NewFileLogger(c.logDir, runID)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to set up run logging: %w", err))
	}
	defer func() {
		if err := fileLogger.Close(); err != nil {
			c.log.Warn("Failed to close run logger", "run_id", runID, "err", err)
		}
	}()

	start := time.Now()
	c.log.Info("Starting test run",
		"run_id", runID,
		"profile", profile.Name,
		"strategy", strategy,
		"targets", len(req.Targets))

	command := registry.BuildCommand(profile, req.Targets, debug, req.WorkDir, req.Env)
	handle, err := c.orch.Spawn(ctx, command)
	if err != nil {
		metrics.RecordErrorDetails("spawn", err)
		return nil, NewRuntimeError(fmt.Errorf("failed to start test runner: %w", err))
	}
	defer handle.Cleanup()

	if debug {
		if err := c.awaitAndAttach(ctx, req, profile, handle, fileLogger); err != nil {
			// Readiness failed; the handle is already terminated. Fall
			// through so the no-data policy reports every test.
			c.log.Error("Debugger readiness failed", "run_id", runID, "err", err)
		}
	} else {
		handle.Attach(fileLogger.RunnerOutput())
	}

	if handle.State() != orchestrator.StateTerminated {
		if _, err := handle.Wait(ctx); err != nil {
			c.log.Warn("Test run did not complete", "run_id", runID, "err", err)
		}
	}

	reportDir := req.ReportDir
	if reportDir == "" {
		reportDir = profile.ReportDir
	}
	if reportDir != "" && !filepath.IsAbs(reportDir) {
		reportDir = filepath.Join(req.WorkDir, reportDir)
	}
	parser := junitxml.NewParser(profile.ReportSuffix, c.log)
	suites, err := parser.ParseDirectory(reportDir)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to read test reports: %w", err))
	}

	resultSet := c.aggregator.Aggregate(req.Tree, suites)
	c.applyNoDataPolicy(req.Tree, resultSet, handle.TerminationReason())

	stats := types.CollectStats(req.Tree, resultSet)
	duration := time.Since(start)
	runStatus := types.TestStatusPass
	if stats.Failed > 0 {
		runStatus = types.TestStatusFail
	}
	metrics.RecordRun(runID, profile.Name, string(strategy), runStatus, duration)
	for _, pos := range req.Tree.Tests() {
		if r, ok := resultSet[pos.ID]; ok {
			metrics.RecordTestResult(runID, r.Status)
		}
	}

	table := reporting.RenderSummaryTable(req.Tree, resultSet, fmt.Sprintf("Test Run %s", runID))
	if err := fileLogger.WriteSummary(table + "\n"); err != nil {
		c.log.Warn("Failed to write run summary", "run_id", runID, "err", err)
	}

	exitCode, exited := handle.ExitCode()
	if !exited {
		exitCode = -1
	}
	summary := &RunSummary{
		RunID:       runID,
		Results:     resultSet,
		Stats:       stats,
		Duration:    duration,
		Termination: handle.TerminationReason(),
		ExitCode:    exitCode,
		LogDir:      fileLogger.RunDir(),
	}

	c.log.Info("Test run complete",
		"run_id", runID,
		"duration", duration,
		"total", stats.Total,
		"passed", stats.Passed,
		"failed", stats.Failed,
		"termination", summary.Termination)

	if stats.Failed > 0 {
		return summary, NewTestFailureError(
			fmt.Sprintf("%d of %d tests failed", stats.Failed, stats.Total))
	}
	return summary, nil
}

// awaitAndAttach blocks until the profile's readiness condition holds, then
// hands the descriptor to the debugger session and streams output to it.
// Output is persisted to the run log as well.
func (c *Coordinator) awaitAndAttach(ctx context.Context, req RunRequest, profile registry.Profile, handle *orchestrator.Handle, fileLogger *logging.FileLogger) error {
	spec := profile.ReadinessConfig()
	if req.ReadinessTimeout > 0 {
		spec.Timeout = req.ReadinessTimeout
	}

	waitStart := time.Now()
	res := handle.AwaitReady(ctx, spec)
	outcome := "ready"
	if !res.Ready {
		outcome = string(res.Reason)
	}
	metrics.RecordReadiness(string(spec.Strategy), outcome, time.Since(waitStart))
	if !res.Ready {
		return fmt.Errorf("test runner not ready for attachment: %s", res.Reason)
	}

	handle.Attach(io.MultiWriter(req.Session.Output(), fileLogger.RunnerOutput()))

	desc := debugger.Descriptor{
		Host:     spec.Host,
		Port:     spec.Port,
		Protocol: "jdwp",
	}
	if err := req.Session.Attach(ctx, desc); err != nil {
		// The run continues without the debugger; tests still execute.
		c.log.Warn("Debugger failed to attach", "host", desc.Host, "port", desc.Port, "err", err)
		metrics.RecordErrorDetails("debugger_attach", err)
	}
	return nil
}

// applyNoDataPolicy marks every test position the reports never mentioned
// as failed. The message distinguishes a run that produced nothing at all
// from a single test missing its result, so a crashed run can never be shown
// as a pass.
func (c *Coordinator) applyNoDataPolicy(tree *types.PositionTree, resultSet types.ResultSet, reason orchestrator.TerminationReason) {
	producedAny := len(resultSet) > 0
	for _, pos := range tree.Tests() {
		if _, ok := resultSet[pos.ID]; ok {
			continue
		}
		msg := "no result was reported for this test"
		if !producedAny {
			msg = noResultsMessage(reason)
		}
		resultSet[pos.ID] = types.Result{
			Status:       types.TestStatusFail,
			ShortMessage: msg,
		}
	}
}

// noResultsMessage explains a run that produced no results at all.
func noResultsMessage(reason orchestrator.TerminationReason) string {
	switch reason {
	case orchestrator.TerminationReadinessTimeout:
		return "test runner was killed before becoming ready; no results were produced"
	case orchestrator.TerminationProcessExited:
		return "test runner exited before becoming ready; no results were produced"
	case orchestrator.TerminationCancelled:
		return "test run was cancelled; no results were produced"
	}
	return "test runner produced no results"
}
