// Package noosexit implements an analyzer forbidding os.Exit in main.main.
package noosexit

import (
	"go/ast"
	"go/types"
	"strconv"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/types/typeutil"
)

// Analyzer forbids direct os.Exit calls inside main() of package main. The
// callee is resolved through type information, so renamed imports are caught.
var Analyzer = &analysis.Analyzer{
	Name: "noosexit",
	Doc:  "forbid direct os.Exit in main.main",
	Run:  run,
}

func run(pass *analysis.Pass) (any, error) {
	if pass.Pkg == nil || pass.Pkg.Name() != "main" {
		return nil, nil
	}
	for _, f := range pass.Files {
		fn := pass.Fset.Position(f.Pos()).Filename
		if strings.Contains(fn, "/go-build/") || ast.IsGenerated(f) || importsTesting(f) {
			continue
		}

		for _, decl := range f.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Recv != nil || fd.Name.Name != "main" || fd.Body == nil {
				continue
			}
			ast.Inspect(fd.Body, func(n ast.Node) bool {
				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}
				if isOSExit(pass, call) {
					pass.Reportf(call.Pos(), "do not call os.Exit inside main; return an error from run() and log it")
				}
				return true
			})
		}
	}
	return nil, nil
}

func isOSExit(pass *analysis.Pass, call *ast.CallExpr) bool {
	fn, ok := typeutil.Callee(pass.TypesInfo, call).(*types.Func)
	return ok && fn.Pkg() != nil && fn.Pkg().Path() == "os" && fn.Name() == "Exit"
}

func importsTesting(f *ast.File) bool {
	for _, im := range f.Imports {
		if p, _ := strconv.Unquote(im.Path.Value); p == "testing" || p == "testing/internal/testdeps" {
			return true
		}
	}
	return false
}
