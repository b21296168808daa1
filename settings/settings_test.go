package settings

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	parsed := ParseSettings(defaults, "SG")
	require.Equal(t, defaults.ListenAddr, parsed.ListenAddr)
	require.Equal(t, defaults.Gate.DataDir, parsed.Gate.DataDir)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SG_LISTEN_ADDR", ":9999")
	t.Setenv("SG_GATE__DATA_DIR", "/var/lib/streamgate")
	parsed := ParseSettings(defaults, "SG")
	require.Equal(t, ":9999", parsed.ListenAddr)
	require.Equal(t, "/var/lib/streamgate", parsed.Gate.DataDir)
	// untouched values keep their defaults
	require.Equal(t, defaults.Gate.PipelineConfig, parsed.Gate.PipelineConfig)
}
