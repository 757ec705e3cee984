package resolver

import "fmt"

// Kind classifies a completion candidate so the protocol layer can map it
// onto an editor item kind.
type Kind int

const (
	KindTag Kind = iota
	KindFilter
	KindTemplatePath
	KindURLName
	KindStaticPath
	KindContextVariable
	KindLibrary
	KindBlockName
	KindTypePath
	KindField
)

func (k Kind) String() string {
	switch k {
	case KindTag:
		return "TAG"
	case KindFilter:
		return "FILTER"
	case KindTemplatePath:
		return "TEMPLATE_PATH"
	case KindURLName:
		return "URL_NAME"
	case KindStaticPath:
		return "STATIC_PATH"
	case KindContextVariable:
		return "CONTEXT_VARIABLE"
	case KindLibrary:
		return "LIBRARY"
	case KindBlockName:
		return "BLOCK_NAME"
	case KindTypePath:
		return "TYPE_PATH"
	case KindField:
		return "FIELD"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Candidate is one ranked completion result.
type Candidate struct {
	Label  string
	Kind   Kind
	Detail string
	// SortText overrides Label for ordering; used where recency matters
	// more than the alphabet (endblock names).
	SortText string
}

// Hover is a plain-text documentation payload.
type Hover struct {
	Contents string
}

// Location is a definition target.
type Location struct {
	Path string
	Line int // 0-based
}
