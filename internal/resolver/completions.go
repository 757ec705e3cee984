package resolver

import (
	"fmt"
	"strings"

	"djtpls/internal/inventory"
	"djtpls/internal/scanner"
	"djtpls/internal/tmplctx"
)

// forloopFields are the attributes of the loop sentinel available inside
// {% for %} blocks.
var forloopFields = []string{
	"counter", "counter0", "first", "last", "parentloop",
	"revcounter", "revcounter0",
}

// Completions returns ranked, deduplicated candidates for the cursor at
// line/col (0-based). An unrecognized cursor position yields nil.
func (r *Resolver) Completions(snap *inventory.Snapshot, doc *Document, line, col int) []Candidate {
	fragment := doc.Index.Fragment(line, col)
	offset := doc.Index.Offset(line, col)

	if m := reLoadArgs.FindStringSubmatch(fragment); m != nil {
		parts := strings.Split(m[1], " ")
		return r.completeLoad(snap, doc, offset, parts[len(parts)-1])
	}
	if m := reBlockName.FindStringSubmatch(fragment); m != nil {
		return r.completeBlock(snap, doc, m[1])
	}
	if m := reEndblock.FindStringSubmatch(fragment); m != nil {
		return r.completeEndblock(doc, offset, m[1])
	}
	if m := reURLName.FindStringSubmatch(fragment); m != nil {
		return r.completeURL(snap, m[2])
	}
	if m := reStaticPath.FindStringSubmatch(fragment); m != nil {
		return r.completeStatic(snap, m[2])
	}
	if m := reTemplate.FindStringSubmatch(fragment); m != nil {
		return r.completeTemplate(snap, m[3])
	}
	if m := reTagName.FindStringSubmatch(fragment); m != nil {
		return r.completeTag(snap, doc, offset, m[1])
	}
	if m := reFilterName.FindStringSubmatch(fragment); m != nil {
		return r.completeFilter(snap, doc, offset, m[2])
	}
	if m := reTypePath.FindStringSubmatch(fragment); m != nil {
		return r.completeTypePath(snap, m[1])
	}
	if m := reContext.FindStringSubmatch(fragment); m != nil {
		return r.completeContext(snap, doc, offset, m[1], m[2])
	}
	return nil
}

// completeLoad offers loadable library names, excluding libraries the
// document already loads.
func (r *Resolver) completeLoad(snap *inventory.Snapshot, doc *Document, offset int, prefix string) []Candidate {
	loaded := loadedLibraries(doc, offset)
	var candidates []Candidate
	for _, name := range snap.LibraryNames() {
		if loaded[name] {
			continue
		}
		candidates = append(candidates, Candidate{Label: name, Kind: KindLibrary})
	}
	return rank(prefix, candidates)
}

// completeBlock offers block names inherited through the extends chain that
// the document has not used yet.
func (r *Resolver) completeBlock(snap *inventory.Snapshot, doc *Document, prefix string) []Candidate {
	parent, ok := documentExtends(doc.Tokens)
	if !ok {
		return nil
	}
	used := map[string]bool{}
	for i := range doc.Tokens {
		tok := &doc.Tokens[i]
		if tok.Kind == scanner.Tag && tok.Name == "block" && len(tok.Args) > 0 {
			used[tok.Args[0].Raw] = true
		}
	}

	var candidates []Candidate
	for _, name := range inheritedBlockNames(snap, parent, map[string]bool{}) {
		if used[name] {
			continue
		}
		candidates = append(candidates, Candidate{Label: name, Kind: KindBlockName})
	}
	return rank(prefix, candidates)
}

// inheritedBlockNames walks the inventory's extends links collecting block
// names, stopping on revisit.
func inheritedBlockNames(snap *inventory.Snapshot, key string, visited map[string]bool) []string {
	if visited[key] {
		return nil
	}
	visited[key] = true

	info, ok := snap.Templates[key]
	if !ok {
		return nil
	}
	names := append([]string(nil), info.Blocks...)
	if info.Extends != "" {
		names = append(names, inheritedBlockNames(snap, info.Extends, visited)...)
	}
	return names
}

// completeEndblock offers the block names opened above the cursor, most
// recently opened first.
func (r *Resolver) completeEndblock(doc *Document, offset int, prefix string) []Candidate {
	var opened []string
	for i := range doc.Tokens {
		tok := &doc.Tokens[i]
		if tok.Kind == scanner.Tag && tok.Name == "block" && tok.Start < offset && len(tok.Args) > 0 {
			opened = append(opened, tok.Args[0].Raw)
		}
	}

	var candidates []Candidate
	for i := len(opened) - 1; i >= 0; i-- {
		candidates = append(candidates, Candidate{
			Label:    opened[i],
			Kind:     KindBlockName,
			SortText: fmt.Sprintf("%03d: %s", len(opened)-1-i, opened[i]),
		})
	}
	return rank(prefix, candidates)
}

func (r *Resolver) completeURL(snap *inventory.Snapshot, prefix string) []Candidate {
	var candidates []Candidate
	for _, name := range snap.URLNames() {
		url := snap.URLs[name]
		detail := url.Pattern
		if len(url.Params) > 0 {
			detail += " (" + strings.Join(url.Params, ", ") + ")"
		}
		candidates = append(candidates, Candidate{Label: name, Kind: KindURLName, Detail: detail})
	}
	return rank(prefix, candidates)
}

func (r *Resolver) completeStatic(snap *inventory.Snapshot, prefix string) []Candidate {
	var candidates []Candidate
	for _, path := range snap.StaticFiles {
		candidates = append(candidates, Candidate{Label: path, Kind: KindStaticPath})
	}
	return rank(prefix, candidates)
}

func (r *Resolver) completeTemplate(snap *inventory.Snapshot, prefix string) []Candidate {
	var candidates []Candidate
	for _, key := range snap.TemplateKeys() {
		candidates = append(candidates, Candidate{Label: key, Kind: KindTemplatePath})
	}
	return rank(prefix, candidates)
}

// completeTag offers the tags of every loaded library.
func (r *Resolver) completeTag(snap *inventory.Snapshot, doc *Document, offset int, prefix string) []Candidate {
	loaded := loadedLibraries(doc, offset)
	var candidates []Candidate
	for name, lib := range snap.Libraries {
		if !loaded[name] {
			continue
		}
		for tag, sym := range lib.Tags {
			candidates = append(candidates, Candidate{Label: tag, Kind: KindTag, Detail: docsSummary(sym.Docs)})
		}
	}
	return rank(prefix, candidates)
}

func (r *Resolver) completeFilter(snap *inventory.Snapshot, doc *Document, offset int, prefix string) []Candidate {
	loaded := loadedLibraries(doc, offset)
	var candidates []Candidate
	for name, lib := range snap.Libraries {
		if !loaded[name] {
			continue
		}
		for filter, sym := range lib.Filters {
			candidates = append(candidates, Candidate{Label: filter, Kind: KindFilter, Detail: docsSummary(sym.Docs)})
		}
	}
	return rank(prefix, candidates)
}

// docsSummary reduces a docstring to its first line for completion detail.
func docsSummary(docs string) string {
	if docs == "" {
		return ""
	}
	line, _, _ := strings.Cut(docs, "\n")
	return strings.TrimSpace(line)
}

// completeTypePath offers collected model paths inside a type comment.
func (r *Resolver) completeTypePath(snap *inventory.Snapshot, prefix string) []Candidate {
	var candidates []Candidate
	for dotted := range snap.ObjectTypes {
		candidates = append(candidates, Candidate{Label: dotted, Kind: KindTypePath})
	}
	return rank(prefix, candidates)
}

// completeContext offers context variable names, or the fields of a bound
// variable's type when the prefix is dotted. The leading construct decides
// whether a context variable can appear here at all.
func (r *Resolver) completeContext(snap *inventory.Snapshot, doc *Document, offset int, construct, prefix string) []Candidate {
	if reNoContextTag.MatchString(construct) {
		return nil
	}

	bindings := r.tracker.BindingsAt(snap, doc.bindingsDoc(), offset)

	if idx := strings.LastIndexByte(prefix, '.'); idx >= 0 {
		holder, fieldPrefix := prefix[:idx], prefix[idx+1:]
		return r.completeFields(snap, bindings, holder, fieldPrefix)
	}

	var candidates []Candidate
	for name, binding := range bindings {
		detail := name
		if binding.Type != tmplctx.TypeUnknown {
			detail = name + ": " + binding.Type
		}
		candidates = append(candidates, Candidate{Label: name, Kind: KindContextVariable, Detail: detail})
	}
	return rank(prefix, candidates)
}

// completeFields expands one attribute level: the fields of the holder
// variable's collected object type. Deeper chains have no static type
// information and yield nothing.
func (r *Resolver) completeFields(snap *inventory.Snapshot, bindings map[string]tmplctx.Binding, holder, prefix string) []Candidate {
	if strings.ContainsRune(holder, '.') {
		return nil
	}
	binding, ok := bindings[holder]
	if !ok {
		return nil
	}

	var fields []string
	switch binding.Type {
	case tmplctx.ForLoopType:
		fields = forloopFields
	default:
		obj, ok := snap.ObjectTypes[binding.Type]
		if !ok {
			return nil
		}
		fields = obj.Fields
	}

	var candidates []Candidate
	for _, field := range fields {
		candidates = append(candidates, Candidate{Label: field, Kind: KindField, Detail: holder + "." + field})
	}
	return rank(prefix, candidates)
}
