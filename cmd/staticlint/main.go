// Command staticlint runs the project's analyzers as one multichecker.
//
//	go build -o staticlint ./cmd/staticlint
//	./staticlint ./...
//	./staticlint -noclock.packages=/internal/health,/internal/detail ./...
//
// It bundles the golang.org/x/tools passes listed in collect, every
// staticcheck SA* check, ST1000 (package comments), bodyclose, nilerr and two
// project analyzers:
//
//	noosexit  direct os.Exit inside main.main
//	noclock   time.Now, time.Since or time.Until in the health aggregation
//	          package, which must read time from its injected clock
package main

import (
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"honnef.co/go/tools/staticcheck"
	"honnef.co/go/tools/stylecheck"

	"github.com/and161185/fleet-status/internal/analyzers/noclock"
	"github.com/and161185/fleet-status/internal/analyzers/noosexit"
	"github.com/gostaticanalysis/nilerr"
	"github.com/timakin/bodyclose/passes/bodyclose"

	// std passes
	"golang.org/x/tools/go/analysis/passes/asmdecl"
	"golang.org/x/tools/go/analysis/passes/assign"
	"golang.org/x/tools/go/analysis/passes/atomic"
	"golang.org/x/tools/go/analysis/passes/bools"
	"golang.org/x/tools/go/analysis/passes/buildtag"
	"golang.org/x/tools/go/analysis/passes/cgocall"
	"golang.org/x/tools/go/analysis/passes/composite"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/framepointer"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/ifaceassert"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilfunc"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shadow"
	"golang.org/x/tools/go/analysis/passes/shift"
	"golang.org/x/tools/go/analysis/passes/sigchanyzer"
	"golang.org/x/tools/go/analysis/passes/stdmethods"
	"golang.org/x/tools/go/analysis/passes/stringintconv"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/tests"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"golang.org/x/tools/go/analysis/passes/unsafeptr"
	"golang.org/x/tools/go/analysis/passes/unusedresult"
)

func collect() []*analysis.Analyzer {
	list := []*analysis.Analyzer{
		// std passes
		asmdecl.Analyzer, assign.Analyzer, atomic.Analyzer, bools.Analyzer, buildtag.Analyzer,
		cgocall.Analyzer, composite.Analyzer, copylock.Analyzer, errorsas.Analyzer, framepointer.Analyzer,
		httpresponse.Analyzer, ifaceassert.Analyzer, loopclosure.Analyzer, lostcancel.Analyzer, nilfunc.Analyzer,
		printf.Analyzer, shift.Analyzer, sigchanyzer.Analyzer, stdmethods.Analyzer, stringintconv.Analyzer,
		structtag.Analyzer, tests.Analyzer, unmarshal.Analyzer, unreachable.Analyzer, unsafeptr.Analyzer,
		unusedresult.Analyzer, shadow.Analyzer,

		// custom
		noosexit.Analyzer,
		noclock.Analyzer,
	}

	// add all SA* analyzers
	for _, a := range staticcheck.Analyzers {
		if len(a.Analyzer.Name) >= 2 && a.Analyzer.Name[:2] == "SA" {
			list = append(list, a.Analyzer)
		}
	}

	for _, a := range stylecheck.Analyzers {
		if a.Analyzer.Name == "ST1000" {
			list = append(list, a.Analyzer)
		}
	}
	list = append(list, bodyclose.Analyzer)
	list = append(list, nilerr.Analyzer)

	return list
}

func main() {
	multichecker.Main(collect()...)
}
