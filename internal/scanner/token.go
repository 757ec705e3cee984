package scanner

import "fmt"

// Kind classifies a scanned region of a template document.
type Kind int

const (
	// Text is raw markup between template constructs.
	Text Kind = iota
	// Tag is a {% ... %} block.
	Tag
	// Variable is a {{ ... }} expression, possibly with a filter chain.
	Variable
	// Comment is a {# ... #} block without a type hint.
	Comment
	// TypeHint is a {# type name: dotted.path #} comment.
	TypeHint
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "TEXT"
	case Tag:
		return "TAG"
	case Variable:
		return "VARIABLE"
	case Comment:
		return "COMMENT"
	case TypeHint:
		return "TYPE_HINT"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Arg is one whitespace-separated argument of a tag, with its exact
// location so position-addressed queries can identify the argument under
// the cursor.
type Arg struct {
	Raw    string // argument text as written, including quotes
	Value  string // unquoted value for string literals, else Raw
	Start  int    // byte offset of Raw in the document
	Quoted bool
}

func (a Arg) End() int { return a.Start + len(a.Raw) }

// Filter is one element of a variable's filter chain.
type Filter struct {
	Name  string
	Start int // byte offset of Name in the document
}

// Token is one scanned region. End is exclusive. Unterminated constructs
// keep their opening delimiter and run to end of document with Closed
// false; they are never an error.
type Token struct {
	Kind   Kind
	Start  int
	End    int
	Line   int // 0-based line of Start
	Col    int // 0-based column of Start
	Raw    string
	Closed bool

	// Name is the tag name for Tag tokens and the variable name for
	// TypeHint tokens.
	Name string
	// Args are the tag arguments after the name.
	Args []Arg
	// Expr is the expression before the first filter of a Variable token.
	Expr string
	// Filters is the filter chain of a Variable token.
	Filters []Filter
	// HintType is the dotted type path of a TypeHint token.
	HintType string
}

// Contains reports whether the byte offset falls inside the token. The end
// offset counts as inside so a cursor directly after the last typed
// character still addresses this token.
func (t *Token) Contains(offset int) bool {
	return offset >= t.Start && offset <= t.End
}

// ArgAt returns the argument containing the byte offset, if any.
func (t *Token) ArgAt(offset int) (Arg, bool) {
	for _, arg := range t.Args {
		if offset >= arg.Start && offset <= arg.End() {
			return arg, true
		}
	}
	return Arg{}, false
}

// FirstString returns the first quoted argument value, the common shape of
// extends/include/static/url arguments.
func (t *Token) FirstString() (string, bool) {
	for _, arg := range t.Args {
		if arg.Quoted {
			return arg.Value, true
		}
		return "", false // first argument is not a literal
	}
	return "", false
}
