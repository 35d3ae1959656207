// Package noclock implements an analyzer that forbids reading the wall clock
// directly in packages that must take time from an injected clock.
package noclock

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

// Analyzer reports calls to time.Now, time.Since and time.Until in packages
// whose import path ends with one of the -packages suffixes. Referencing
// time.Now as a value (e.g. as a default clock) is allowed.
var Analyzer = &analysis.Analyzer{
	Name:     "noclock",
	Doc:      "forbid direct wall clock reads where an injected clock is required",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

var packages = "/internal/health"

func init() {
	Analyzer.Flags.StringVar(&packages, "packages", packages, "comma separated import path suffixes to check")
}

var forbidden = map[string]bool{"Now": true, "Since": true, "Until": true}

func targeted(path string) bool {
	for _, suffix := range strings.Split(packages, ",") {
		suffix = strings.TrimSpace(suffix)
		if suffix != "" && strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func run(pass *analysis.Pass) (any, error) {
	if !targeted(pass.Pkg.Path()) {
		return nil, nil
	}

	skip := make(map[*ast.File]bool)
	for _, f := range pass.Files {
		name := pass.Fset.Position(f.Pos()).Filename
		if ast.IsGenerated(f) || strings.HasSuffix(name, "_test.go") {
			skip[f] = true
		}
	}

	ins := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	ins.WithStack([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push {
			return true
		}
		if f, ok := stack[0].(*ast.File); ok && skip[f] {
			return false
		}
		call := n.(*ast.CallExpr)
		fn, ok := typeutil.Callee(pass.TypesInfo, call).(*types.Func)
		if !ok || fn.Pkg() == nil || fn.Pkg().Path() != "time" {
			return true
		}
		if sig, ok := fn.Type().(*types.Signature); ok && sig.Recv() == nil && forbidden[fn.Name()] {
			pass.Reportf(call.Pos(), "time.%s reads the wall clock; use the injected clock", fn.Name())
		}
		return true
	})
	return nil, nil
}
