// Package tmplctx tracks context-variable types visible to a template at a
// given position. All type information is static: collected view context,
// {# type x: path #} hint comments and include/with/for bindings propagated
// across the template-inheritance chain. Unresolvable types stay as the
// empty string rather than disappearing, so completion can still offer the
// name without field expansion.
package tmplctx

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"djtpls/internal/inventory"
	"djtpls/internal/scanner"
)

// TypeUnknown is the sentinel for a binding whose type could not be
// resolved statically.
const TypeUnknown = ""

// ForLoopType is the pseudo-type bound to the forloop variable inside
// {% for %} blocks. The resolver expands its fields (counter, first, ...)
// without consulting collected object types.
const ForLoopType = "django.template.forloop"

// Binding is one context variable visible at a position.
type Binding struct {
	Type   string // dotted python path, TypeUnknown when unresolved
	Origin string // human-readable provenance for hover text
}

// Document is the unit the tracker operates on: the template's logical key
// (empty when the file is outside any template root) and its token stream.
type Document struct {
	Key    string
	Tokens []scanner.Token
}

// Tracker resolves bindings by walking inheritance chains. Parent documents
// are read from disk via readFile, which tests replace.
type Tracker struct {
	readFile func(string) ([]byte, error)
	logger   *log.Logger
}

func New() *Tracker {
	return &Tracker{readFile: os.ReadFile, logger: log.WithPrefix("tmplctx")}
}

// NewWithReader builds a tracker with a custom file reader.
func NewWithReader(readFile func(string) ([]byte, error)) *Tracker {
	return &Tracker{readFile: readFile, logger: log.WithPrefix("tmplctx")}
}

// maxChainDepth bounds inheritance walks; chains deeper than this are
// truncated the same way cycles are.
const maxChainDepth = 32

// BindingsAt returns the bindings visible in doc at the byte offset.
// Accumulation order (later shadows earlier): global context, extends
// ancestors parent-first (collected context, then hints), the document's
// own collected context, its hint comments, and finally position-scoped
// bindings (include-with, for, with, as) at or before the offset.
func (tr *Tracker) BindingsAt(snap *inventory.Snapshot, doc Document, offset int) map[string]Binding {
	bindings := make(map[string]Binding)

	for name, typ := range snap.GlobalContext {
		bindings[name] = Binding{Type: typ, Origin: "global context"}
	}

	visited := map[string]bool{}
	if doc.Key != "" {
		visited[doc.Key] = true
	}
	for _, ancestor := range tr.chain(snap, doc, visited) {
		applyCollectedContext(bindings, snap, ancestor.Key)
		applyHints(bindings, ancestor.Tokens)
	}

	applyCollectedContext(bindings, snap, doc.Key)
	applyHints(bindings, doc.Tokens)
	tr.applyScoped(bindings, doc.Tokens, offset)

	return bindings
}

// chain returns the extends ancestors of doc ordered parent-first. Only
// literal extends arguments are followed; a computed argument stops the
// chain at the current document. Revisiting a key truncates the walk.
func (tr *Tracker) chain(snap *inventory.Snapshot, doc Document, visited map[string]bool) []Document {
	var ancestors []Document
	current := doc
	for depth := 0; depth < maxChainDepth; depth++ {
		parentKey, ok := extendsTarget(current.Tokens)
		if !ok {
			break
		}
		if visited[parentKey] {
			tr.logger.Debug("extends cycle truncated", "template", parentKey)
			break
		}
		visited[parentKey] = true

		info, known := snap.Templates[parentKey]
		if !known {
			break
		}
		content, err := tr.readFile(info.Path)
		if err != nil {
			tr.logger.Debug("cannot read parent template", "path", info.Path, "error", err)
			break
		}
		parent := Document{Key: parentKey, Tokens: scanner.Tokenize(string(content))}
		ancestors = append([]Document{parent}, ancestors...)
		current = parent
	}
	return ancestors
}

// extendsTarget returns the literal argument of the document's extends tag.
// ok is false when there is no extends tag or its argument is not a string
// literal.
func extendsTarget(tokens []scanner.Token) (string, bool) {
	for _, tok := range tokens {
		if tok.Kind != scanner.Tag || tok.Name != "extends" {
			continue
		}
		return tok.FirstString()
	}
	return "", false
}

func applyCollectedContext(bindings map[string]Binding, snap *inventory.Snapshot, key string) {
	if key == "" {
		return
	}
	if info, ok := snap.Templates[key]; ok {
		for name, typ := range info.Context {
			bindings[name] = Binding{Type: typ, Origin: "view context"}
		}
	}
}

// applyHints applies every {# type x: path #} comment in the document.
// Hints are declarations, not scoped statements, so cursor position does
// not limit them; a later hint for the same name shadows an earlier one.
func applyHints(bindings map[string]Binding, tokens []scanner.Token) {
	for _, tok := range tokens {
		if tok.Kind == scanner.TypeHint {
			bindings[tok.Name] = Binding{Type: tok.HintType, Origin: "type comment"}
		}
	}
}

// applyScoped applies bindings introduced by tags before the cursor:
// include-with assignments, for-loop variables, with assignments and
// trailing "as name" captures. Types are unknown unless the assigned value
// is itself a bound name, in which case the type is carried over.
func (tr *Tracker) applyScoped(bindings map[string]Binding, tokens []scanner.Token, offset int) {
	openLoops := 0
	for _, tok := range tokens {
		if tok.Kind != scanner.Tag || tok.Start > offset {
			continue
		}
		switch tok.Name {
		case "include":
			for _, arg := range tok.Args {
				if name, value, ok := splitAssignment(arg.Raw); ok {
					bindings[name] = Binding{Type: carriedType(bindings, value), Origin: "include binding"}
				}
			}
		case "with":
			for _, arg := range tok.Args {
				if name, value, ok := splitAssignment(arg.Raw); ok {
					bindings[name] = Binding{Type: carriedType(bindings, value), Origin: "with binding"}
				}
			}
		case "for":
			// {% for a, b in items %}
			if tok.End <= offset {
				names, ok := forLoopVars(tok.Args)
				if ok {
					for _, name := range names {
						bindings[name] = Binding{Type: TypeUnknown, Origin: "for loop"}
					}
				}
			}
			openLoops++
		case "endfor":
			if openLoops > 0 {
				openLoops--
			}
		default:
			// {% url "x" as target %} and friends.
			for i, arg := range tok.Args {
				if arg.Raw == "as" && i+1 < len(tok.Args) {
					bindings[tok.Args[i+1].Raw] = Binding{Type: TypeUnknown, Origin: "as capture"}
				}
			}
		}
	}
	if openLoops > 0 {
		bindings["forloop"] = Binding{Type: ForLoopType, Origin: "for loop"}
	}
}

func splitAssignment(raw string) (name, value string, ok bool) {
	idx := strings.IndexByte(raw, '=')
	if idx <= 0 || idx == len(raw)-1 {
		return "", "", false
	}
	name = raw[:idx]
	value = raw[idx+1:]
	if !isIdentifier(name) {
		return "", "", false
	}
	return name, value, true
}

// carriedType resolves the type of an assignment value when it is a plain
// bound variable name; anything more complex stays unknown.
func carriedType(bindings map[string]Binding, value string) string {
	if b, ok := bindings[value]; ok {
		return b.Type
	}
	return TypeUnknown
}

// forLoopVars extracts the loop variables from {% for x, y in seq %} args.
func forLoopVars(args []scanner.Arg) ([]string, bool) {
	var names []string
	for _, arg := range args {
		if arg.Raw == "in" {
			return names, len(names) > 0
		}
		for _, part := range strings.Split(arg.Raw, ",") {
			if part = strings.TrimSpace(part); part != "" && isIdentifier(part) {
				names = append(names, part)
			}
		}
	}
	return nil, false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
