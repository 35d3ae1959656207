package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/and161185/fleet-status/internal/config"
	"github.com/and161185/fleet-status/internal/crypto"
	"github.com/and161185/fleet-status/internal/server/testutils"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRun_StopsCleanly(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	s := testutils.NewTestServer(context.Background())
	m := testutils.AddMachine(t, s, "b-01")
	pemKey, err := crypto.EncodePrivateKey(m.Priv)
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "private.pem")
	require.NoError(t, os.WriteFile(keyPath, pemKey, 0o600))

	cfg := &config.ClientConfig{
		ServerAddr:     ts.URL,
		Logger:         zap.NewNop().Sugar(),
		MachineID:      m.ID,
		PrivateKeyPath: keyPath,
		ReportInterval: 60,
		ClientTimeout:  1,
		ServiceUnit:    "fleet-backend",
		DiskPath:       "/",
		MetricScheme:   "flat",
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestRun_BadScheme(t *testing.T) {
	cfg := &config.ClientConfig{Logger: zap.NewNop().Sugar(), MetricScheme: "columnar"}
	require.Error(t, run(context.Background(), cfg))
}

func TestRun_MissingKey(t *testing.T) {
	cfg := &config.ClientConfig{
		Logger:         zap.NewNop().Sugar(),
		MachineID:      "b-01",
		PrivateKeyPath: filepath.Join(t.TempDir(), "none.pem"),
		MetricScheme:   "structured",
	}
	require.Error(t, run(context.Background(), cfg))
}
