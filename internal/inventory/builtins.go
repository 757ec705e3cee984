package inventory

// Built-in Django template tags and filters, available before any project
// collection succeeds and always treated as loaded. Block tags get their
// matching end tag generated.
var builtinBlockTags = []string{
	"autoescape", "block", "comment", "filter", "for", "if", "ifchanged",
	"spaceless", "verbatim", "with",
	"blocktranslate", "localize", "localtime", "timezone",
}

var builtinSimpleTags = []string{
	"csrf_token", "cycle", "debug", "extends", "firstof", "include", "load",
	"lorem", "now", "regroup", "resetcycle", "templatetag", "url",
	"widthratio", "static", "translate",
	"empty", "else", "elif",
}

var builtinFilters = []string{
	"add", "addslashes", "capfirst", "center", "cut", "date", "default",
	"default_if_none", "dictsort", "dictsortreversed", "divisibleby",
	"escape", "escapejs", "escapeseq", "filesizeformat", "first",
	"floatformat", "force_escape", "get_digit", "iriencode", "join",
	"json_script", "last", "length", "linebreaks", "linebreaksbr",
	"linenumbers", "ljust", "lower", "make_list", "phone2numeric",
	"pluralize", "pprint", "random", "rjust", "safe", "safeseq", "slice",
	"slugify", "stringformat", "striptags", "time", "timesince",
	"timeuntil", "title", "truncatechars", "truncatechars_html",
	"truncatewords", "truncatewords_html", "unordered_list", "upper",
	"urlencode", "urlize", "urlizetrunc", "wordcount", "wordwrap", "yesno",
	"localize", "unlocalize", "localtime", "utc", "timezone",
}

// builtinLibrary assembles the fallback builtins pseudo-library. The
// fallback has no docstrings or source locations; those arrive with the
// first successful collection.
func builtinLibrary() *Library {
	tags := make(map[string]Symbol, 2*len(builtinBlockTags)+len(builtinSimpleTags))
	for _, tag := range builtinBlockTags {
		tags[tag] = Symbol{}
		tags["end"+tag] = Symbol{}
	}
	for _, tag := range builtinSimpleTags {
		tags[tag] = Symbol{}
	}

	filters := make(map[string]Symbol, len(builtinFilters))
	for _, filter := range builtinFilters {
		filters[filter] = Symbol{}
	}

	return &Library{Name: BuiltinsLibrary, Tags: tags, Filters: filters}
}
