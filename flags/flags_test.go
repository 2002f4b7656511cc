package flags

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUniqueFlagNames asserts no flag name is registered twice.
func TestUniqueFlagNames(t *testing.T) {
	seen := make(map[string]struct{})
	for _, f := range Flags {
		for _, name := range f.Names() {
			_, dup := seen[name]
			require.False(t, dup, "duplicate flag name %q", name)
			seen[name] = struct{}{}
		}
	}
}

// TestEnvVarFormat asserts every flag's env var carries the app prefix and
// follows the SCREAMING_SNAKE convention.
func TestEnvVarFormat(t *testing.T) {
	for _, f := range Flags {
		docFlag, ok := f.(interface{ GetEnvVars() []string })
		require.True(t, ok, "flag %v has no env vars", f.Names())
		for _, envVar := range docFlag.GetEnvVars() {
			assert.True(t, strings.HasPrefix(envVar, EnvVarPrefix+"_"), "env var %q misses prefix", envVar)
			assert.Equal(t, strings.ToUpper(envVar), envVar)
		}
	}
}
