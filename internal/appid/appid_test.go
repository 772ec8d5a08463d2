package appid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetReturnsCopy(t *testing.T) {
	first, err := Get(context.Background())
	require.NoError(t, err)
	first.BinaryName = "mutated"

	second, err := Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "coinbridge", second.BinaryName)
	require.NotEmpty(t, second.EnvPrefix)
	require.NotEmpty(t, second.ConfigName)
}

func TestEnvKey(t *testing.T) {
	id := &Identity{EnvPrefix: "COINBRIDGE"}
	require.Equal(t, "COINBRIDGE_ADMIN_TOKEN", id.EnvKey("ADMIN_TOKEN"))
	require.Equal(t, "COINBRIDGE", id.ViperPrefix())

	var nilID *Identity
	require.Equal(t, "COINBRIDGE_PORT", nilID.EnvKey("PORT"))
}

func TestTelemetryNamespaceFallsBackToBinary(t *testing.T) {
	id := &Identity{BinaryName: "cb"}
	require.Equal(t, "cb", id.TelemetryNamespace())
	id.Namespace = "ns"
	require.Equal(t, "ns", id.TelemetryNamespace())
}
