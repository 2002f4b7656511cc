package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "TESTBRIDGE"

// prefixEnvVars adds the application env-var prefix to a name.
func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	TreeFile = &cli.StringFlag{
		Name:     "tree",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("TREE"),
		Usage:    "Path to the position tree file (eg. 'tree.yaml')",
	}
	Profile = &cli.StringFlag{
		Name:    "profile",
		Value:   "gradle",
		EnvVars: prefixEnvVars("PROFILE"),
		Usage:   "Runner profile to use (eg. 'gradle', 'maven')",
	}
	ProfilesFile = &cli.StringFlag{
		Name:    "profiles",
		Value:   "",
		EnvVars: prefixEnvVars("PROFILES"),
		Usage:   "Path to a YAML file with additional runner profiles",
	}
	Strategy = &cli.StringFlag{
		Name:    "strategy",
		Value:   "integrated",
		EnvVars: prefixEnvVars("STRATEGY"),
		Usage:   "Run strategy: 'integrated' or 'debug-attach'",
	}
	Target = &cli.StringSliceFlag{
		Name:    "target",
		EnvVars: prefixEnvVars("TARGET"),
		Usage:   "Test/namespace locator to run; repeatable. Empty runs everything.",
	}
	WorkDir = &cli.StringFlag{
		Name:    "workdir",
		Value:   ".",
		EnvVars: prefixEnvVars("WORKDIR"),
		Usage:   "Project directory the runner is invoked in",
	}
	ReportDir = &cli.StringFlag{
		Name:    "report-dir",
		Value:   "",
		EnvVars: prefixEnvVars("REPORT_DIR"),
		Usage:   "Directory with XML test reports (defaults to the profile's)",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: prefixEnvVars("LOGDIR"),
		Usage:   "Directory to store run logs",
	}
	RunTimeout = &cli.DurationFlag{
		Name:    "run-timeout",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_TIMEOUT"),
		Usage:   "Overall timeout for one run; 0 disables it",
	}
	ReadinessTimeout = &cli.DurationFlag{
		Name:    "readiness-timeout",
		Value:   30 * time.Second,
		EnvVars: prefixEnvVars("READINESS_TIMEOUT"),
		Usage:   "How long to wait for the runner to become debugger-ready",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "Log level: trace, debug, info, warn, error, crit",
	}
)

var requiredFlags = []cli.Flag{
	TreeFile,
}

var optionalFlags = []cli.Flag{
	Profile,
	ProfilesFile,
	Strategy,
	Target,
	WorkDir,
	ReportDir,
	LogDir,
	RunTimeout,
	ReadinessTimeout,
	LogLevel,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
