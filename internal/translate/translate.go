// Package translate turns loomscript author syntax into plain Starlark
// statements the execution sandbox can run unconditionally.
//
// Loomscript is Starlark plus a thin ES-module sugar layer:
//
//	import util from "./util"
//	export default scene
//	export fade = 0.5
//	export def pulse(t): ...
//
// The rewrite is line-preserving: sugar lines are rewritten in place and
// collected export statements are appended after the final line, so error
// positions reported during execution map back to author source.
package translate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/frameloom-labs/frameloom/pkg/component"
	"go.starlark.net/syntax"
)

// Translator converts one bundle file into executable statement text.
// Implementations must either return runnable Starlark or fail with a
// *SyntaxError locating the fault.
type Translator interface {
	Translate(file component.File) (string, error)
}

// SyntaxError reports a translation or parse failure with its location.
type SyntaxError struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

// CompileError converts the syntax error to the bundle-level error shape.
func (e *SyntaxError) CompileError() component.CompileError {
	return component.CompileError{File: e.File, Line: e.Line, Column: e.Column, Message: e.Message}
}

// Loomscript is the production translator.
type Loomscript struct{}

// New returns the production loomscript translator.
func New() *Loomscript {
	return &Loomscript{}
}

// Translate rewrites the file into plain Starlark according to its language.
func (t *Loomscript) Translate(file component.File) (string, error) {
	switch file.Language {
	case component.LanguageData:
		// JSON document: decoded once at module execution time.
		return "exports[\"default\"] = json.decode(" + strconv.Quote(file.Content) + ")\n", nil
	case component.LanguageStyle:
		// Raw style text exposed as the module's default export.
		return "exports[\"default\"] = " + strconv.Quote(file.Content) + "\n", nil
	default:
		return t.translateScript(file)
	}
}

func (t *Loomscript) translateScript(file component.File) (string, error) {
	lines := strings.Split(file.Content, "\n")
	out := make([]string, len(lines))
	var exported []string

	for i, line := range lines {
		rewritten, names, err := rewriteLine(line)
		if err != nil {
			return "", &SyntaxError{File: file.Path, Line: i + 1, Column: 1, Message: err.Error()}
		}
		out[i] = rewritten
		exported = append(exported, names...)
	}

	// Collected exports go after the last author line so every author
	// statement keeps its original line number.
	for _, name := range exported {
		out = append(out, fmt.Sprintf("exports[%q] = %s", name, name))
	}

	src := strings.Join(out, "\n")
	if err := check(file.Path, src); err != nil {
		return "", err
	}
	return src, nil
}

// rewriteLine rewrites one sugar statement in place. It returns the
// replacement line and any names to append to the module's export set.
func rewriteLine(line string) (string, []string, error) {
	indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	code := strings.TrimLeft(line, " \t")

	switch {
	case strings.HasPrefix(code, "import "):
		rest := strings.TrimPrefix(code, "import ")
		name, path, ok := splitImport(rest)
		if !ok {
			return "", nil, fmt.Errorf("malformed import; expected `import name from \"./path\"`")
		}
		// Default-import sugar binds the imported module's default export,
		// not its whole export surface.
		return fmt.Sprintf("%s%s = require(%q, default=True)", indent, name, path), nil, nil

	case strings.HasPrefix(code, "export default "):
		expr := strings.TrimPrefix(code, "export default ")
		if strings.TrimSpace(expr) == "" {
			return "", nil, fmt.Errorf("export default requires an expression")
		}
		return indent + `exports["default"] = ` + expr, nil, nil

	case strings.HasPrefix(code, "export def "):
		decl := strings.TrimPrefix(code, "export ")
		name := defName(decl)
		if name == "" {
			return "", nil, fmt.Errorf("malformed exported function definition")
		}
		return indent + decl, []string{name}, nil

	case strings.HasPrefix(code, "export "):
		decl := strings.TrimPrefix(code, "export ")
		eq := strings.Index(decl, "=")
		if eq <= 0 {
			return "", nil, fmt.Errorf("malformed export; expected `export name = expr`")
		}
		name := strings.TrimSpace(decl[:eq])
		if !isIdent(name) {
			return "", nil, fmt.Errorf("exported name %q is not an identifier", name)
		}
		return indent + decl, []string{name}, nil
	}

	return line, nil, nil
}

// splitImport parses `NAME from "PATH"`.
func splitImport(rest string) (name, path string, ok bool) {
	parts := strings.SplitN(rest, " from ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	name = strings.TrimSpace(parts[0])
	if !isIdent(name) {
		return "", "", false
	}
	quoted := strings.TrimSpace(parts[1])
	if len(quoted) < 2 {
		return "", "", false
	}
	q := quoted[0]
	if (q != '"' && q != '\'') || quoted[len(quoted)-1] != q {
		return "", "", false
	}
	return name, quoted[1 : len(quoted)-1], true
}

// defName extracts the function name from a `def name(...)` header.
func defName(decl string) string {
	rest := strings.TrimPrefix(decl, "def ")
	paren := strings.Index(rest, "(")
	if paren <= 0 {
		return ""
	}
	name := strings.TrimSpace(rest[:paren])
	if !isIdent(name) {
		return ""
	}
	return name
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// check parses the rewritten source to surface syntax faults with their
// author-source positions.
func check(path, src string) error {
	_, err := syntax.Parse(path, src, syntax.RetainComments) //nolint:staticcheck // SA1019: will migrate to FileOptions.Parse later
	if err == nil {
		return nil
	}
	if serr, ok := err.(syntax.Error); ok {
		return &SyntaxError{
			File:    path,
			Line:    int(serr.Pos.Line),
			Column:  int(serr.Pos.Col),
			Message: serr.Msg,
		}
	}
	return &SyntaxError{File: path, Line: 0, Column: 0, Message: err.Error()}
}
