// Package scanner tokenizes Django template syntax. It is a pure syntax
// layer: stateless, re-entrant, no knowledge of the project inventory, and
// tolerant of the malformed markup that mid-edit documents always contain.
package scanner

import (
	"regexp"
	"strings"
)

// reTypeHint matches the type-hint sub-grammar inside comments:
// {# type variable: dotted.path #}
var reTypeHint = regexp.MustCompile(`^\s*type\s+(\w+)\s*:\s*(\S+)\s*$`)

// Tokenize scans a whole document into an ordered token sequence. Every
// byte of the input is covered by exactly one token.
func Tokenize(text string) []Token {
	var tokens []Token
	lines := newLineCounter(text)

	i := 0
	textStart := 0
	flushText := func(end int) {
		if end > textStart {
			line, col := lines.position(textStart)
			tokens = append(tokens, Token{
				Kind: Text, Start: textStart, End: end,
				Line: line, Col: col,
				Raw: text[textStart:end], Closed: true,
			})
		}
	}

	for i < len(text)-1 {
		if text[i] != '{' {
			i++
			continue
		}
		var kind Kind
		var closer string
		switch text[i+1] {
		case '%':
			kind, closer = Tag, "%}"
		case '{':
			kind, closer = Variable, "}}"
		case '#':
			kind, closer = Comment, "#}"
		default:
			i++
			continue
		}

		flushText(i)

		end, closed := findCloser(text, i+2, closer)
		line, col := lines.position(i)
		token := Token{
			Kind: kind, Start: i, End: end,
			Line: line, Col: col,
			Raw: text[i:end], Closed: closed,
		}

		inner := text[i+2 : end]
		if closed {
			inner = text[i+2 : end-2]
		}
		switch kind {
		case Tag:
			parseTag(&token, inner, i+2)
		case Variable:
			parseVariable(&token, inner, i+2)
		case Comment:
			if m := reTypeHint.FindStringSubmatch(inner); m != nil {
				token.Kind = TypeHint
				token.Name = m[1]
				token.HintType = m[2]
			}
		}

		tokens = append(tokens, token)
		i = end
		textStart = end
	}

	flushText(len(text))
	return tokens
}

// findCloser locates the delimiter closer starting at from, skipping
// closers inside single or double quoted strings. An unterminated
// construct runs to end of document.
func findCloser(text string, from int, closer string) (end int, closed bool) {
	var quote byte
	for i := from; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			continue
		}
		if c == closer[0] && i+1 < len(text) && text[i+1] == closer[1] {
			return i + 2, true
		}
	}
	return len(text), false
}

// parseTag fills the tag name and arguments, tracking exact offsets.
// innerStart is the document offset of inner's first byte.
func parseTag(token *Token, inner string, innerStart int) {
	fields := splitArgs(inner, innerStart)
	if len(fields) == 0 {
		return
	}
	token.Name = fields[0].Raw
	token.Args = fields[1:]
}

// parseVariable splits a {{ ... }} body into the expression and its filter
// chain. Filters after the expression may carry :"arg" suffixes which are
// not part of the filter name.
func parseVariable(token *Token, inner string, innerStart int) {
	segments := splitOutsideQuotes(inner, '|')
	if len(segments) == 0 {
		return
	}
	token.Expr = strings.TrimSpace(segments[0].text)
	for _, seg := range segments[1:] {
		name := seg.text
		if idx := indexOutsideQuotes(name, ':'); idx >= 0 {
			name = name[:idx]
		}
		trimmed := strings.TrimSpace(name)
		offset := seg.start + innerStart + (len(name) - len(strings.TrimLeft(name, " \t")))
		token.Filters = append(token.Filters, Filter{Name: trimmed, Start: offset})
	}
}

// splitArgs splits on whitespace outside quotes, keeping offsets.
func splitArgs(s string, base int) []Arg {
	var args []Arg
	var quote byte
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		raw := s[start:end]
		arg := Arg{Raw: raw, Value: raw, Start: base + start}
		if len(raw) >= 2 && (raw[0] == '\'' || raw[0] == '"') && raw[len(raw)-1] == raw[0] {
			arg.Quoted = true
			arg.Value = raw[1 : len(raw)-1]
		} else if len(raw) >= 1 && (raw[0] == '\'' || raw[0] == '"') {
			// Unterminated literal mid-edit: treat the rest as the value.
			arg.Quoted = true
			arg.Value = raw[1:]
		}
		args = append(args, arg)
		start = -1
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			if start < 0 {
				start = i
			}
			quote = c
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush(i)
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(s))
	return args
}

type segment struct {
	text  string
	start int
}

func splitOutsideQuotes(s string, sep byte) []segment {
	var out []segment
	var quote byte
	last := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case sep:
			out = append(out, segment{text: s[last:i], start: last})
			last = i + 1
		}
	}
	out = append(out, segment{text: s[last:], start: last})
	return out
}

func indexOutsideQuotes(s string, sep byte) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			continue
		}
		if c == sep {
			return i
		}
	}
	return -1
}

// lineCounter converts byte offsets to line/column pairs during a scan.
// Offsets are requested in increasing order, so it advances a cursor
// instead of binary searching.
type lineCounter struct {
	text string
	pos  int
	line int
	col  int
}

func newLineCounter(text string) *lineCounter {
	return &lineCounter{text: text}
}

func (lc *lineCounter) position(offset int) (line, col int) {
	for lc.pos < offset && lc.pos < len(lc.text) {
		if lc.text[lc.pos] == '\n' {
			lc.line++
			lc.col = 0
		} else {
			lc.col++
		}
		lc.pos++
	}
	return lc.line, lc.col
}
