package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/editorkit/testbridge/orchestrator"
)

func TestNewRegistryDefaults(t *testing.T) {
	r, err := NewRegistry(Config{Log: log.New()})
	require.NoError(t, err)

	gradle, ok := r.Profile("gradle")
	require.True(t, ok)
	assert.Equal(t, "./gradlew", gradle.Executable)
	assert.Equal(t, "--tests", gradle.FilterFlag)
	assert.Equal(t, "log", gradle.Readiness.Strategy)

	maven, ok := r.Profile("maven")
	require.True(t, ok)
	assert.Equal(t, "port", maven.Readiness.Strategy)
	assert.Equal(t, 5005, maven.Readiness.Port)

	_, ok = r.Profile("bazel")
	assert.False(t, ok)
	assert.Len(t, r.Names(), 2)
}

func TestNewRegistryProfilesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	content := `profiles:
  - name: sbt
    executable: ./sbt
    args: ["test"]
    filter_flag: testOnly
    report_dir: target/test-reports
    readiness:
      strategy: log
      marker: "sbt server started"
      timeout: 10s
  - name: gradle
    executable: /opt/gradle/bin/gradle
    args: ["test"]
    filter_flag: --tests
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r, err := NewRegistry(Config{Log: log.New(), ProfilesFile: path})
	require.NoError(t, err)

	sbt, ok := r.Profile("sbt")
	require.True(t, ok)
	assert.Equal(t, Duration(10*time.Second), sbt.Readiness.Timeout)

	// File entries override built-ins
	gradle, ok := r.Profile("gradle")
	require.True(t, ok)
	assert.Equal(t, "/opt/gradle/bin/gradle", gradle.Executable)
}

func TestNewRegistryBadProfilesFile(t *testing.T) {
	dir := t.TempDir()

	missingName := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(missingName, []byte("profiles:\n  - executable: x\n"), 0o644))
	_, err := NewRegistry(Config{Log: log.New(), ProfilesFile: missingName})
	assert.Error(t, err)

	_, err = NewRegistry(Config{Log: log.New(), ProfilesFile: filepath.Join(dir, "nope.yaml")})
	assert.Error(t, err)
}

func TestBuildCommand(t *testing.T) {
	p := Profile{
		Name:       "gradle",
		Executable: "./gradlew",
		Args:       []string{"test"},
		FilterFlag: "--tests",
		DebugArgs:  []string{"--debug-jvm"},
	}

	cmd := BuildCommand(p, []string{"pkg.Foo.bar", "pkg.Baz"}, false, "/work", nil)
	assert.Equal(t, "./gradlew", cmd.Executable)
	// The filter argument is repeated once per locator, no glob expansion
	assert.Equal(t, []string{"test", "--tests", "pkg.Foo.bar", "--tests", "pkg.Baz"}, cmd.Args)
	assert.Equal(t, "/work", cmd.WorkDir)

	debugCmd := BuildCommand(p, []string{"pkg.Foo.bar"}, true, "", nil)
	assert.Equal(t, []string{"test", "--debug-jvm", "--tests", "pkg.Foo.bar"}, debugCmd.Args)
}

func TestReadinessConfig(t *testing.T) {
	p := Profile{Readiness: ReadinessSpec{Strategy: "port", Host: "127.0.0.1", Port: 5005}}
	spec := p.ReadinessConfig()
	assert.Equal(t, orchestrator.ReadinessPort, spec.Strategy)
	assert.Equal(t, 5005, spec.Port)

	none := Profile{}
	assert.Equal(t, orchestrator.ReadinessNone, none.ReadinessConfig().Strategy)
}
