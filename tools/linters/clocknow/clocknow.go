// Package clocknow provides a linter for wall-clock reads.
//
// Lifecycle and time accounting code takes its clock as a func() time.Time so
// transitions can be replayed at fixed instants. Inside those packages any
// time.Now() call is reported. Everywhere else time.Now() must be followed by
// .UTC() so stored timestamps share one zone.
//
// The linter respects //nolint and //nolint:clocknow on the same or previous line.
package clocknow

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// DefaultPackages are the import path suffixes that must use an injected clock.
const DefaultPackages = "application/task,application/booking,application/reconcile,timeaccount"

const analyzerName = "clocknow"

// Analyzer is the clocknow analyzer.
var Analyzer = &analysis.Analyzer{
	Name: analyzerName,
	Doc:  "reports time.Now() calls that bypass an injected clock or omit .UTC()",
	Run:  run,
}

var packages string

func init() {
	Analyzer.Flags.StringVar(&packages, "packages", DefaultPackages,
		"comma-separated import path suffixes where time.Now() is forbidden")
}

func run(pass *analysis.Pass) (any, error) {
	injected := clockInjected(pass.Pkg.Path(), packages)

	for _, file := range pass.Files {
		// time.Now() calls that are the receiver of .UTC()
		withUTC := make(map[*ast.CallExpr]bool)
		ast.Inspect(file, func(n ast.Node) bool {
			sel, ok := n.(*ast.SelectorExpr)
			if !ok || sel.Sel.Name != "UTC" {
				return true
			}
			if call, ok := sel.X.(*ast.CallExpr); ok && isTimeNow(pass, call) {
				withUTC[call] = true
			}
			return true
		})

		ast.Inspect(file, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok || !isTimeNow(pass, call) {
				return true
			}
			if hasNolintComment(pass, file, call) {
				return true
			}
			switch {
			case injected:
				pass.Reportf(call.Pos(), "time.Now() bypasses the injected clock; use the configured now func")
			case !withUTC[call]:
				pass.Reportf(call.Pos(), "time.Now() should be followed by .UTC() for timezone consistency")
			}
			return true
		})
	}

	return nil, nil
}

// clockInjected reports whether path ends with one of the listed suffixes.
func clockInjected(path, suffixes string) bool {
	for _, suffix := range strings.Split(suffixes, ",") {
		suffix = strings.Trim(strings.TrimSpace(suffix), "/")
		if suffix == "" {
			continue
		}
		if path == suffix || strings.HasSuffix(path, "/"+suffix) {
			return true
		}
	}
	return false
}

// isTimeNow reports whether call invokes the standard library time.Now, under any import name.
func isTimeNow(pass *analysis.Pass, call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Now" {
		return false
	}
	fn, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil {
		return false
	}
	return fn.Pkg().Path() == "time"
}

// hasNolintComment checks for a nolint comment on the call's line or the line before.
func hasNolintComment(pass *analysis.Pass, file *ast.File, call *ast.CallExpr) bool {
	line := pass.Fset.Position(call.Pos()).Line

	for _, cg := range file.Comments {
		for _, comment := range cg.List {
			commentLine := pass.Fset.Position(comment.Pos()).Line
			if commentLine != line && commentLine != line-1 {
				continue
			}
			text := strings.TrimSpace(strings.TrimPrefix(comment.Text, "//"))
			if !strings.HasPrefix(text, "nolint") {
				continue
			}
			rest := strings.TrimPrefix(text, "nolint")
			if rest == "" || strings.HasPrefix(rest, " ") {
				return true
			}
			if linters, ok := strings.CutPrefix(rest, ":"); ok {
				names, _, _ := strings.Cut(linters, " ")
				for _, name := range strings.Split(names, ",") {
					if name == analyzerName {
						return true
					}
				}
			}
		}
	}

	return false
}
