package config

import (
	"os"
	"testing"
)

func BenchmarkReadServerEnvironment(b *testing.B) {
	_ = os.Setenv("ADDRESS", "127.0.0.1:9999")
	_ = os.Setenv("STORE_INTERVAL", "5")
	_ = os.Setenv("STALE_AFTER", "25m")
	_ = os.Setenv("METRIC_SCHEMES", "structured,flat")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cfg := defaultServerConfig()
		readServerEnvironment(cfg)
	}
}

func BenchmarkReadClientEnvironment(b *testing.B) {
	_ = os.Setenv("ADDRESS", "127.0.0.1:9999")
	_ = os.Setenv("REPORT_INTERVAL", "5")
	_ = os.Setenv("MACHINE_ID", "b-01")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cfg := &ClientConfig{}
		readClientEnvironment(cfg)
	}
}
