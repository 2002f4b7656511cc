package testbridge

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/editorkit/testbridge/flags"
)

// Config holds the application configuration
type Config struct {
	TreeFile         string        // Path to the position tree file
	Profile          string        // Runner profile name
	ProfilesFile     string        // Optional extra profiles YAML
	Strategy         Strategy      // integrated or debug-attach
	Targets          []string      // Test/namespace locators; empty runs everything
	WorkDir          string        // Directory the runner is invoked in
	ReportDir        string        // Report directory override; empty uses the profile's
	LogDir           string        // Directory to store run logs
	RunTimeout       time.Duration // Overall run timeout; 0 disables it
	ReadinessTimeout time.Duration // Override for the profile's readiness timeout
	Log              log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, logger log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	strategy, err := ParseStrategy(ctx.String(flags.Strategy.Name))
	if err != nil {
		return nil, err
	}

	treeFile, err := filepath.Abs(ctx.String(flags.TreeFile.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for tree file: %w", err)
	}
	workDir, err := filepath.Abs(ctx.String(flags.WorkDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for work directory: %w", err)
	}

	// Get log directory, default to "logs" if not specified
	logDir := ctx.String(flags.LogDir.Name)
	if logDir == "" {
		logDir = "logs"
	}
	logDir, err = filepath.Abs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory: %w", err)
	}

	var profilesFile string
	if pf := ctx.String(flags.ProfilesFile.Name); pf != "" {
		profilesFile, err = filepath.Abs(pf)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for profiles file: %w", err)
		}
	}

	return &Config{
		TreeFile:         treeFile,
		Profile:          ctx.String(flags.Profile.Name),
		ProfilesFile:     profilesFile,
		Strategy:         strategy,
		Targets:          ctx.StringSlice(flags.Target.Name),
		WorkDir:          workDir,
		ReportDir:        ctx.String(flags.ReportDir.Name),
		LogDir:           logDir,
		RunTimeout:       ctx.Duration(flags.RunTimeout.Name),
		ReadinessTimeout: ctx.Duration(flags.ReadinessTimeout.Name),
		Log:              logger,
	}, nil
}
