package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCurrent_DefaultsAndSet(t *testing.T) {
	ov, od, oc := BuildVersion, BuildDate, BuildCommit
	t.Cleanup(func() { BuildVersion, BuildDate, BuildCommit = ov, od, oc })

	BuildVersion, BuildDate, BuildCommit = "", "", ""
	require.Equal(t, Info{Version: "N/A", Date: "N/A", Commit: "N/A"}, Current())

	BuildVersion, BuildDate, BuildCommit = "v1", "2025-09-06", "deadbeef"
	require.Equal(t, "v1 (deadbeef, 2025-09-06)", Current().String())
}

func TestLog(t *testing.T) {
	ov := BuildVersion
	t.Cleanup(func() { BuildVersion = ov })
	BuildVersion = "v2"

	core, logs := observer.New(zapcore.InfoLevel)
	Log(zap.New(core).Sugar(), "server")

	entries := logs.FilterMessage("build info").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "server", fields["component"])
	require.Equal(t, "v2", fields["version"])
}
