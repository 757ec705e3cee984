package resolver

import (
	"fmt"
	"sort"
	"strings"

	"djtpls/internal/inventory"
	"djtpls/internal/tmplctx"
)

// Hover returns plain-text documentation for the symbol under the cursor.
func (r *Resolver) Hover(snap *inventory.Snapshot, doc *Document, line, col int) (Hover, bool) {
	fragment := doc.Index.Fragment(line, col)

	if m := reURLName.FindStringSubmatch(fragment); m != nil {
		name := fullSymbol(doc, line, col, m[2], reRestURLName)
		return r.urlHover(snap, name)
	}
	if m := reFilterName.FindStringSubmatch(fragment); m != nil {
		name := fullSymbol(doc, line, col, m[2], reRestWord)
		return r.libraryHover(snap, doc, line, col, name, "filter")
	}
	if m := reTagName.FindStringSubmatch(fragment); m != nil {
		name := fullSymbol(doc, line, col, m[1], reRestWord)
		return r.libraryHover(snap, doc, line, col, name, "tag")
	}
	if m := reContext.FindStringSubmatch(fragment); m != nil {
		name := fullSymbol(doc, line, col, m[2], reRestWord)
		return r.contextHover(snap, doc, line, col, name)
	}
	return Hover{}, false
}

func (r *Resolver) urlHover(snap *inventory.Snapshot, name string) (Hover, bool) {
	url, ok := snap.URLs[name]
	if !ok {
		return Hover{}, false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "url %q\npattern: %s", url.Name, url.Pattern)
	if len(url.Params) > 0 {
		fmt.Fprintf(&b, "\nparams: %s", strings.Join(url.Params, ", "))
	}
	return Hover{Contents: b.String()}, true
}

// libraryHover documents a tag or filter by locating the loaded library
// that provides it. kind is "tag" or "filter".
func (r *Resolver) libraryHover(snap *inventory.Snapshot, doc *Document, line, col int, name, kind string) (Hover, bool) {
	sym, libName, ok := r.lookupLibrarySymbol(snap, doc, line, col, name, kind)
	if !ok {
		return Hover{}, false
	}
	contents := fmt.Sprintf("(%s) %s\nlibrary: %s", kind, name, libName)
	if sym.Docs != "" {
		contents += "\n\n" + sym.Docs
	}
	return Hover{Contents: contents}, true
}

// lookupLibrarySymbol finds a tag or filter by name among the libraries the
// document has loaded at the cursor. Libraries are checked in name order so
// a symbol provided twice resolves deterministically.
func (r *Resolver) lookupLibrarySymbol(snap *inventory.Snapshot, doc *Document, line, col int, name, kind string) (inventory.Symbol, string, bool) {
	if name == "" {
		return inventory.Symbol{}, "", false
	}
	loaded := loadedLibraries(doc, doc.Index.Offset(line, col))

	libNames := make([]string, 0, len(snap.Libraries))
	for libName := range snap.Libraries {
		libNames = append(libNames, libName)
	}
	sort.Strings(libNames)

	for _, libName := range libNames {
		if !loaded[libName] {
			continue
		}
		lib := snap.Libraries[libName]
		sym, found := lib.Tag(name)
		if kind == "filter" {
			sym, found = lib.Filter(name)
		}
		if found {
			return sym, libName, true
		}
	}
	return inventory.Symbol{}, "", false
}

func (r *Resolver) contextHover(snap *inventory.Snapshot, doc *Document, line, col int, name string) (Hover, bool) {
	bindings := r.tracker.BindingsAt(snap, doc.bindingsDoc(), doc.Index.Offset(line, col))
	binding, ok := bindings[name]
	if !ok {
		return Hover{}, false
	}

	typ := binding.Type
	if typ == tmplctx.TypeUnknown {
		typ = "unknown"
	}
	contents := fmt.Sprintf("(variable) %s: %s", name, typ)
	if binding.Origin != "" {
		contents += "\nfrom " + binding.Origin
	}
	return Hover{Contents: contents}, true
}
