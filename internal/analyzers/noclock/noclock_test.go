package noclock_test

import (
	"testing"

	"github.com/and161185/fleet-status/internal/analyzers/noclock"
	"golang.org/x/tools/go/analysis/analysistest"
)

func TestAnalyzer(t *testing.T) {
	analysistest.Run(t, analysistest.TestData(), noclock.Analyzer,
		"example.com/internal/health",
		"example.com/internal/ingest",
	)
}
