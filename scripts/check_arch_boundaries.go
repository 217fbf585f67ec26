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

const modulePrefix = "research-tracker/internal/"

// allowed lists, per internal package, the internal packages it may import.
// The tracker core depends only on model; presentation layers sit on top.
var allowed = map[string]map[string]bool{
	"cli": {
		"board":    true,
		"httpapi":  true,
		"logging":  true,
		"model":    true,
		"query":    true,
		"reportfs": true,
		"settings": true,
		"tracker":  true,
	},
	"httpapi": {
		"logging": true,
		"model":   true,
		"query":   true,
		"tracker": true,
	},
	"board": {
		"model": true,
	},
	"query": {
		"model": true,
	},
	"settings": {
		"model":    true,
		"reportfs": true,
	},
	"tracker": {
		"model": true,
	},
	"logging":  {},
	"model":    {},
	"reportfs": {},
}

func main() {
	violations := []string{}
	seen := map[string]bool{}

	err := filepath.WalkDir("internal", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		srcPkg := sourcePackage(path)
		if srcPkg == "" {
			return nil
		}
		seen[srcPkg] = true
		allowMap, ok := allowed[srcPkg]
		if !ok {
			violations = append(violations, fmt.Sprintf("%s: unknown source package %q", path, srcPkg))
			return nil
		}

		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}

		for _, imp := range file.Imports {
			impPath := strings.Trim(imp.Path.Value, "\"")
			tgtPkg, ok := targetPackage(impPath)
			if !ok {
				continue
			}
			if tgtPkg == srcPkg {
				continue
			}
			if !allowMap[tgtPkg] {
				violations = append(violations, fmt.Sprintf("%s: %s -> %s is forbidden", path, srcPkg, tgtPkg))
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "boundary walk failed: %v\n", err)
		os.Exit(1)
	}

	for pkg := range allowed {
		if !seen[pkg] {
			violations = append(violations, fmt.Sprintf("allow-list entry %q has no package under internal/", pkg))
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		fmt.Fprintln(os.Stderr, "architecture boundary violations detected:")
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "- %s\n", v)
		}
		os.Exit(1)
	}

	fmt.Println("architecture boundary check: OK")
}

func sourcePackage(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) < 2 || parts[0] != "internal" {
		return ""
	}
	return parts[1]
}

func targetPackage(importPath string) (string, bool) {
	if !strings.HasPrefix(importPath, modulePrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(importPath, modulePrefix)
	if rest == "" {
		return "", false
	}
	parts := strings.Split(rest, "/")
	return parts[0], true
}
