// Package testutils builds servers and signed reports for handler tests.
package testutils

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"testing"
	"time"

	"github.com/and161185/fleet-status/internal/auth"
	"github.com/and161185/fleet-status/internal/config"
	"github.com/and161185/fleet-status/internal/crypto"
	"github.com/and161185/fleet-status/internal/events"
	"github.com/and161185/fleet-status/internal/ingest"
	"github.com/and161185/fleet-status/internal/server"
	"github.com/and161185/fleet-status/internal/telemetry"
	"github.com/and161185/fleet-status/model"
	"github.com/and161185/fleet-status/storage/inmemory"
	"go.uber.org/zap"
)

// AdminPassword is accepted by servers built with NewTestServer.
const AdminPassword = "s3cret"

var adminHash string

func init() {
	h, err := auth.HashPassword(AdminPassword)
	if err != nil {
		panic(err)
	}
	adminHash = h
}

// TestConfig returns a server config suitable for tests.
func TestConfig() *config.ServerConfig {
	return &config.ServerConfig{
		Addr:              "localhost:0",
		Logger:            zap.NewNop().Sugar(),
		StoreInterval:     0,
		AdminPasswordHash: adminHash,
		StaleAfter:        25 * time.Minute,
		HealthPolicy:      "any",
		MetricSchemes:     []string{"structured", "flat"},
		StoreTimeout:      time.Second,
		ScanWorkers:       4,
	}
}

// NewTestServer returns a server over a fresh in-memory store. mutate may
// adjust the config before the services are built.
func NewTestServer(ctx context.Context, mutate ...func(*config.ServerConfig)) *server.Server {
	cfg := TestConfig()
	for _, m := range mutate {
		m(cfg)
	}
	srv, err := server.NewServer(inmemory.NewMemStorage(), cfg, telemetry.New(), events.Nop{})
	if err != nil {
		panic(err)
	}
	return srv
}

// Machine is a registered test machine with its signing key.
type Machine struct {
	ID   string
	Priv ed25519.PrivateKey
}

// AddMachine generates a key pair and registers the machine in srv's store.
func AddMachine(t testing.TB, srv *server.Server, id string) Machine {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	pemKey, err := crypto.EncodePublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.Storage.PutMachine(context.Background(), model.Machine{ID: id, PublicKey: pemKey}); err != nil {
		t.Fatal(err)
	}
	return Machine{ID: id, Priv: priv}
}

// BatchBody returns a signed batch request body for samples.
func (m Machine) BatchBody(t testing.TB, samples ...model.Sample) []byte {
	t.Helper()
	logs, err := ingest.EncodeLogs(samples)
	if err != nil {
		t.Fatal(err)
	}
	return m.RawBatchBody(t, logs)
}

// RawBatchBody signs logs verbatim.
func (m Machine) RawBatchBody(t testing.TB, logs string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"id":        m.ID,
		"signature": crypto.Sign(m.Priv, crypto.CanonicalMessage(m.ID, logs)),
		"logs":      logs,
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

// LegacyBody returns a signed single-metric request body.
func (m Machine) LegacyBody(t testing.TB, key, value string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"id":        m.ID,
		"signature": crypto.Sign(m.Priv, crypto.LegacyMessage(key, value)),
		"key":       key,
		"value":     value,
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}
