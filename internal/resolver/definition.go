package resolver

import (
	"strconv"
	"strings"

	"djtpls/internal/inventory"
)

// Definition returns the target of the reference under the cursor:
// extends/include arguments jump to the template file, url arguments jump
// to the declaring view, tags and filters jump to the registering function,
// each when the collector reported a source location. Context variables
// carry no source information, so they have no definition targets.
func (r *Resolver) Definition(snap *inventory.Snapshot, doc *Document, line, col int) (Location, bool) {
	fragment := doc.Index.Fragment(line, col)

	if m := reTemplate.FindStringSubmatch(fragment); m != nil {
		key := fullSymbol(doc, line, col, m[3], reRestTemplate)
		if info, ok := snap.Templates[key]; ok && info.Path != "" {
			return Location{Path: info.Path, Line: 0}, true
		}
		return Location{}, false
	}

	if m := reURLName.FindStringSubmatch(fragment); m != nil {
		name := fullSymbol(doc, line, col, m[2], reRestURLName)
		url, ok := snap.URLs[name]
		if !ok || url.Source == "" {
			return Location{}, false
		}
		return parseSourceRef(url.Source)
	}

	if m := reFilterName.FindStringSubmatch(fragment); m != nil {
		name := fullSymbol(doc, line, col, m[2], reRestWord)
		return r.librarySymbolDefinition(snap, doc, line, col, name, "filter")
	}

	if m := reTagName.FindStringSubmatch(fragment); m != nil {
		name := fullSymbol(doc, line, col, m[1], reRestWord)
		return r.librarySymbolDefinition(snap, doc, line, col, name, "tag")
	}

	return Location{}, false
}

// librarySymbolDefinition jumps to the function that registered a tag or
// filter, subject to the same loaded-library gating as hover.
func (r *Resolver) librarySymbolDefinition(snap *inventory.Snapshot, doc *Document, line, col int, name, kind string) (Location, bool) {
	sym, _, ok := r.lookupLibrarySymbol(snap, doc, line, col, name, kind)
	if !ok || sym.Source == "" {
		return Location{}, false
	}
	return parseSourceRef(sym.Source)
}

// parseSourceRef splits a "path:line" reference. Windows drive letters make
// the last colon the separator, not the first.
func parseSourceRef(ref string) (Location, bool) {
	idx := strings.LastIndexByte(ref, ':')
	if idx <= 0 {
		return Location{Path: ref, Line: 0}, ref != ""
	}
	lineNo, err := strconv.Atoi(ref[idx+1:])
	if err != nil {
		return Location{Path: ref, Line: 0}, true
	}
	if lineNo > 0 {
		lineNo--
	}
	return Location{Path: ref[:idx], Line: lineNo}, true
}
