// Command check_boundaries enforces the layering of every service under
// contexts/: domain stays pure, application talks to the outside only through
// ports, and no service imports another service.
//
//	go run ./scripts/check_boundaries.go
package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "bankpay"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule lists what a layer may import besides the standard library.
type layerRule struct {
	// local are service-relative prefixes such as "/domain".
	local []string
	// external are module-wide or third-party prefixes.
	external []string
}

// valueLibraries are pure value types safe to use anywhere in a service.
var valueLibraries = []string{
	"github.com/shopspring/decimal",
}

var layerRules = map[string]layerRule{
	"domain": {
		local:    []string{"/domain"},
		external: valueLibraries,
	},
	"application": {
		local:    []string{"/application", "/domain", "/ports"},
		external: valueLibraries,
	},
	"ports": {
		local:    []string{"/domain"},
		external: append([]string{modulePath + "/internal/shared"}, valueLibraries...),
	},
}

func main() {
	violations := collectViolations("contexts")
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		rel, err := filepath.Rel(filepath.Dir(root), path)
		if err != nil {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 4 {
			return nil
		}
		servicePrefix := strings.Join([]string{modulePath, parts[0], parts[1], parts[2]}, "/")
		violations = append(violations, validateFile(path, filepath.ToSlash(rel), parts[3], servicePrefix)...)
		return nil
	})

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].Import < violations[j].Import
	})
	return violations
}

func validateFile(path string, displayPath string, layer string, servicePrefix string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: displayPath, Line: 1, Rule: "file must parse"}}
	}

	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)
		if rule := checkImport(layer, importPath, servicePrefix); rule != "" {
			violations = append(violations, violation{
				File:   displayPath,
				Line:   fset.Position(imp.Pos()).Line,
				Import: importPath,
				Rule:   rule,
			})
		}
	}
	return violations
}

// checkImport returns the broken rule, or "" when the import is allowed.
func checkImport(layer string, importPath string, servicePrefix string) string {
	if hasPrefix(importPath, modulePath+"/contexts") && !hasPrefix(importPath, servicePrefix) {
		return "cross-service imports are forbidden"
	}
	rule, ok := layerRules[layer]
	if !ok || isStdlib(importPath) {
		return ""
	}
	if strings.Contains(importPath, "/adapters/") || strings.HasSuffix(importPath, "/adapters") {
		return layer + " must not import adapters"
	}
	for _, local := range rule.local {
		if hasPrefix(importPath, servicePrefix+local) {
			return ""
		}
	}
	for _, external := range rule.external {
		if hasPrefix(importPath, external) {
			return ""
		}
	}
	if hasPrefix(importPath, modulePath+"/internal") {
		return layer + " must not import runtime infrastructure"
	}
	return layer + " import is outside explicit allowlist"
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isStdlib(importPath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
