package noosexit_test

import (
	"testing"

	"github.com/and161185/fleet-status/internal/analyzers/noosexit"
	"golang.org/x/tools/go/analysis/analysistest"
)

func TestAnalyzer(t *testing.T) {
	analysistest.Run(t, analysistest.TestData(), noosexit.Analyzer, "exitmain", "okmain")
}
