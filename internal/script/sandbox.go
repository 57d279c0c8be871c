package script

import (
	"fmt"
	"go/parser"
	"go/token"
	"strconv"
)

// PackageName is the package clause every step script must declare.
const PackageName = "step"

// AllowedPackages are the standard library packages a step script may import.
var AllowedPackages = map[string]bool{
	"context":         true,
	"errors":          true,
	"fmt":             true,
	"strings":         true,
	"strconv":         true,
	"unicode":         true,
	"unicode/utf8":    true,
	"math":            true,
	"sort":            true,
	"slices":          true,
	"maps":            true,
	"sync":            true,
	"sync/atomic":     true,
	"time":            true,
	"regexp":          true,
	"bytes":           true,
	"encoding/json":   true,
	"encoding/csv":    true,
	"encoding/base64": true,
	"encoding/hex":    true,
	"crypto/sha256":   true,
	"crypto/md5":      true,
	"hash/fnv":        true,
	"net/url":         true,
	"path":            true,
}

// BlockedPackages are rejected even when an allow-list override names them.
var BlockedPackages = map[string]bool{
	"os":            true,
	"os/exec":       true,
	"syscall":       true,
	"unsafe":        true,
	"plugin":        true,
	"reflect":       true,
	"runtime":       true,
	"runtime/debug": true,
	"net":           true,
	"net/http":      true,
}

// ValidateSource parses the package clause and imports of src and rejects
// anything outside the allow-list.
func ValidateSource(src string, allowed map[string]bool) error {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "step.go", src, parser.ImportsOnly)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	if f.Name.Name != PackageName {
		return fmt.Errorf("package must be %q, got %q", PackageName, f.Name.Name)
	}
	for _, imp := range f.Imports {
		pkg, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return fmt.Errorf("invalid import path %s: %w", imp.Path.Value, err)
		}
		if BlockedPackages[pkg] || !allowed[pkg] {
			return fmt.Errorf("import %q is not allowed in step scripts", pkg)
		}
	}
	return nil
}
