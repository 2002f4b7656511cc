// Package registry manages build-tool runner profiles: how to invoke the
// external test runner, where it writes reports and how readiness is
// detected for debugger attachment.
package registry

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/editorkit/testbridge/orchestrator"
)

// Profile describes one build-tool test runner.
type Profile struct {
	Name       string   `yaml:"name"`
	Executable string   `yaml:"executable"`
	Args       []string `yaml:"args"`

	// FilterFlag is repeated once per target locator; no glob expansion.
	FilterFlag string `yaml:"filter_flag"`

	// ReportDir is where the runner writes JUnit XML reports, relative to
	// the working directory unless absolute.
	ReportDir    string `yaml:"report_dir"`
	ReportSuffix string `yaml:"report_suffix"`

	// DebugArgs are appended when the run should await a debugger.
	DebugArgs []string      `yaml:"debug_args"`
	Readiness ReadinessSpec `yaml:"readiness"`
}

// Duration parses human-readable forms like "10s" out of YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(time.Duration(n))
	return nil
}

// ReadinessSpec is the YAML form of the orchestrator readiness config.
type ReadinessSpec struct {
	Strategy string   `yaml:"strategy"` // "port", "log" or "none"
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Marker   string   `yaml:"marker"`
	Timeout  Duration `yaml:"timeout"`
}

// profilesFile is the YAML document shape.
type profilesFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// Config contains registry configuration.
type Config struct {
	Log log.Logger
	// ProfilesFile optionally overrides or extends the built-in profiles.
	ProfilesFile string
}

// Registry holds the known runner profiles.
type Registry struct {
	config   Config
	profiles map[string]Profile
	mu       sync.RWMutex
}

// NewRegistry creates a registry seeded with the built-in profiles and, if
// configured, profiles loaded from a YAML file. File entries override
// built-ins with the same name.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config:   cfg,
		profiles: make(map[string]Profile),
	}
	for _, p := range DefaultProfiles() {
		r.profiles[p.Name] = p
	}

	if cfg.ProfilesFile != "" {
		if err := r.loadProfiles(cfg.ProfilesFile); err != nil {
			return nil, fmt.Errorf("failed to load profiles: %w", err)
		}
	}

	cfg.Log.Debug("Registry loaded", "len(profiles)", len(r.profiles))
	return r, nil
}

func (r *Registry) loadProfiles(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read profiles file %s: %w", path, err)
	}
	var doc profilesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse profiles file %s: %w", path, err)
	}
	for _, p := range doc.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profile with empty name in %s", path)
		}
		if p.Executable == "" {
			return fmt.Errorf("profile %q has no executable", p.Name)
		}
		r.profiles[p.Name] = p
	}
	return nil
}

// Profile returns the named profile.
func (r *Registry) Profile(name string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[name]
	return p, ok
}

// Names returns the known profile names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	return names
}

// BuildCommand assembles the runner invocation for the given targets. Every
// distinct locator becomes its own filter argument.
func BuildCommand(p Profile, targets []string, debug bool, workDir string, env []string) orchestrator.Command {
	args := append([]string{}, p.Args...)
	if debug {
		args = append(args, p.DebugArgs...)
	}
	for _, target := range targets {
		if p.FilterFlag != "" {
			args = append(args, p.FilterFlag, target)
		} else {
			args = append(args, target)
		}
	}
	return orchestrator.Command{
		Executable: p.Executable,
		Args:       args,
		WorkDir:    workDir,
		Env:        env,
	}
}

// ReadinessConfig converts the profile's readiness spec to the orchestrator
// form, falling back to the package default timeout.
func (p Profile) ReadinessConfig() orchestrator.ReadinessSpec {
	spec := orchestrator.ReadinessSpec{
		Strategy: orchestrator.ReadinessStrategy(p.Readiness.Strategy),
		Host:     p.Readiness.Host,
		Port:     p.Readiness.Port,
		Marker:   p.Readiness.Marker,
		Timeout:  time.Duration(p.Readiness.Timeout),
	}
	if spec.Strategy == "" {
		spec.Strategy = orchestrator.ReadinessNone
	}
	return spec
}

// DefaultProfiles returns the built-in Gradle and Maven profiles. The JDWP
// agent prints its listen line on stdout, which is what the log strategy
// keys on; Surefire opens the debug port directly, which suits the port
// strategy.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Name:         "gradle",
			Executable:   "./gradlew",
			Args:         []string{"test"},
			FilterFlag:   "--tests",
			ReportDir:    "build/test-results/test",
			ReportSuffix: ".xml",
			DebugArgs:    []string{"--debug-jvm"},
			Readiness: ReadinessSpec{
				Strategy: "log",
				Host:     "127.0.0.1",
				Port:     5005,
				Marker:   "Listening for transport dt_socket",
				Timeout:  Duration(30 * time.Second),
			},
		},
		{
			Name:         "maven",
			Executable:   "./mvnw",
			Args:         []string{"test"},
			FilterFlag:   "-Dtest",
			ReportDir:    "target/surefire-reports",
			ReportSuffix: ".xml",
			DebugArgs:    []string{"-Dmaven.surefire.debug"},
			Readiness: ReadinessSpec{
				Strategy: "port",
				Host:     "127.0.0.1",
				Port:     5005,
				Timeout:  Duration(30 * time.Second),
			},
		},
	}
}
