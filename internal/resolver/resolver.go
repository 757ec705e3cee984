// Package resolver answers position-addressed queries (completion, hover,
// go-to-definition) against a tokenized document and the current project
// inventory snapshot. Queries are pure reads: they never trigger collection
// and never block on I/O beyond the context tracker's parent-template reads.
//
// Cursor classification works on the line fragment left of the cursor, one
// regular expression per construct, first match wins. Where several readings
// are plausible the matcher order makes the precedence deterministic:
// tag name before filter name before context variable.
package resolver

import (
	"regexp"

	"github.com/charmbracelet/log"

	"djtpls/internal/inventory"
	"djtpls/internal/scanner"
	"djtpls/internal/tmplctx"
)

// Document is a tokenized template ready for queries. Build one per open
// document version and reuse it across queries.
type Document struct {
	Key    string
	Source string
	Tokens []scanner.Token
	Index  *scanner.LineIndex
}

// NewDocument tokenizes source once. Key is the template's logical path,
// empty when the file lives outside every template root.
func NewDocument(key, source string) *Document {
	return &Document{
		Key:    key,
		Source: source,
		Tokens: scanner.Tokenize(source),
		Index:  scanner.NewLineIndex(source),
	}
}

func (d *Document) bindingsDoc() tmplctx.Document {
	return tmplctx.Document{Key: d.Key, Tokens: d.Tokens}
}

// Resolver is stateless apart from its context tracker; one instance serves
// all documents of a project root.
type Resolver struct {
	tracker *tmplctx.Tracker
	logger  *log.Logger
}

func New(tracker *tmplctx.Tracker) *Resolver {
	return &Resolver{tracker: tracker, logger: log.WithPrefix("resolver")}
}

// Cursor-fragment patterns. Anchored on both sides: the fragment ends at
// the cursor, so $ means "the cursor sits right after this".
var (
	reLoadArgs   = regexp.MustCompile(`^.*\{% ?load ([\w ]*)$`)
	reBlockName  = regexp.MustCompile(`^.*\{% ?block (\w*)$`)
	reEndblock   = regexp.MustCompile(`^.*\{% ?endblock (\w*)$`)
	reURLName    = regexp.MustCompile(`^.*\{% ?url ('|")([\w:-]*)$`)
	reStaticPath = regexp.MustCompile(`^.*\{% ?static ('|")([\w\-./]*)$`)
	reTemplate   = regexp.MustCompile(`^.*\{% ?(extends|include) ('|")([\w\-./]*)$`)
	reTagName    = regexp.MustCompile(`^.*\{% ?(\w*)$`)
	reFilterName = regexp.MustCompile(`^.*(\{%|\{\{).*?\|(\w*)$`)
	reTypePath   = regexp.MustCompile(`^.*\{# type \w+ ?: ?([\w.]*)$`)
	reContext    = regexp.MustCompile(`^.*(\{\{|\{% \w+ ).*?([\w.]*)$`)

	// Tags whose argument position never holds a context variable.
	reNoContextTag = regexp.MustCompile(`^\{% ?(end\w*|comment|csrf_token|debug|spaceless)`)

	// Rest-of-line shapes used to extend a cursor prefix to the full
	// symbol for hover and definition.
	reRestWord     = regexp.MustCompile(`^[\w]+`)
	reRestURLName  = regexp.MustCompile(`^[\w:-]+`)
	reRestTemplate = regexp.MustCompile(`^[^'"]*`)
)

// loadedLibraries returns the library names loaded at the offset. The
// builtins pseudo-library is always loaded. The argument under the cursor
// does not count, so a fully typed name is still offered by completion.
func loadedLibraries(doc *Document, offset int) map[string]bool {
	loaded := map[string]bool{inventory.BuiltinsLibrary: true}
	for i := range doc.Tokens {
		tok := &doc.Tokens[i]
		if tok.Kind != scanner.Tag || tok.Name != "load" || tok.Start > offset {
			continue
		}
		for _, arg := range tok.Args {
			if offset >= arg.Start && offset <= arg.End() {
				continue
			}
			loaded[arg.Raw] = true
		}
	}
	return loaded
}

// documentExtends returns the literal parent key of the document's extends
// tag, if it has one.
func documentExtends(tokens []scanner.Token) (string, bool) {
	for i := range tokens {
		tok := &tokens[i]
		if tok.Kind == scanner.Tag && tok.Name == "extends" {
			return tok.FirstString()
		}
	}
	return "", false
}

// fullSymbol extends a cursor prefix with the rest-of-line match, so hover
// and definition work with the cursor anywhere inside the symbol.
func fullSymbol(doc *Document, line, col int, prefix string, rest *regexp.Regexp) string {
	if m := rest.FindString(doc.Index.Rest(line, col)); m != "" {
		return prefix + m
	}
	return prefix
}
