package pyast

import (
	"log/slog"

	"github.com/go-python/gpython/ast"
	"github.com/go-python/gpython/parser"
)

const (
	configNamespace = "dbt"
	configMethod    = "config"
	packagesKeyword = "packages"
)

// ExtractPackages scans compiled Python model code for a
// dbt.config(packages=[...]) call and returns the literal package names in
// source order. It is a fallback for when the host tool does not pass
// packages through the parsed model config, so it never fails: malformed
// source, a missing config call, or a non-literal packages value all yield an
// empty result.
func ExtractPackages(source string) (packages []string) {
	// The parser is not part of our contract; a panic inside it must degrade
	// to "no packages found" like any other parse problem.
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("package scan aborted", "panic", r)
			packages = nil
		}
	}()

	tree, err := parser.ParseString(source, "exec")
	if err != nil {
		slog.Debug("package scan skipped: source did not parse", "error", err)
		return nil
	}

	found := false
	ast.Walk(tree, func(node ast.Ast) bool {
		if found {
			return false
		}
		call, ok := node.(*ast.Call)
		if !ok || !isConfigCall(call) {
			return true
		}
		for _, kw := range call.Keywords {
			if kw.Arg != packagesKeyword {
				continue
			}
			list, ok := kw.Value.(*ast.List)
			if !ok {
				// packages= bound to something non-literal, e.g. a variable.
				continue
			}
			found = true
			for _, elt := range list.Elts {
				if str, ok := elt.(*ast.Str); ok {
					packages = append(packages, string(str.S))
				}
			}
			return false
		}
		return true
	})
	return packages
}

// isConfigCall reports whether the call has the exact shape dbt.config(...).
func isConfigCall(call *ast.Call) bool {
	attr, ok := call.Func.(*ast.Attribute)
	if !ok || attr.Attr != configMethod {
		return false
	}
	name, ok := attr.Value.(*ast.Name)
	return ok && name.Id == configNamespace
}
