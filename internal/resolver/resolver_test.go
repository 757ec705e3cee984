package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"djtpls/internal/inventory"
	"djtpls/internal/tmplctx"
)

func symbols(names ...string) map[string]inventory.Symbol {
	out := make(map[string]inventory.Symbol, len(names))
	for _, name := range names {
		out[name] = inventory.Symbol{}
	}
	return out
}

func testSnapshot() *inventory.Snapshot {
	return &inventory.Snapshot{
		Libraries: map[string]*inventory.Library{
			inventory.BuiltinsLibrary: {
				Name: inventory.BuiltinsLibrary,
				Tags: symbols(
					"block", "comment", "csrf_token", "endblock", "endfor",
					"endif", "extends", "for", "if", "include", "load",
					"static", "url",
				),
				Filters: symbols("default", "join", "lower", "upper"),
			},
			"cart_extras": {
				Name:    "cart_extras",
				Tags:    symbols("cart_total"),
				Filters: symbols("quantity_label"),
			},
			"shop_extras": {
				Name: "shop_extras",
				Tags: map[string]inventory.Symbol{
					"price_tag": {
						Docs:   "Render a price in the shop currency.",
						Source: "/proj/shop/templatetags/shop_extras.py:12",
					},
				},
				Filters: map[string]inventory.Symbol{
					"currency": {
						Docs:   "Format a decimal as a currency string.",
						Source: "/proj/shop/templatetags/shop_extras.py:27",
					},
				},
			},
		},
		Templates: map[string]inventory.TemplateInfo{
			"base.html": {
				Key:    "base.html",
				Path:   "/proj/templates/base.html",
				Blocks: []string{"content", "footer", "title"},
			},
			"shop/detail.html": {
				Key:     "shop/detail.html",
				Path:    "/proj/shop/templates/shop/detail.html",
				Extends: "base.html",
				Blocks:  []string{"content"},
			},
		},
		URLs: map[string]inventory.URLInfo{
			"checkout": {
				Name:    "checkout",
				Pattern: "shop/checkout/<int:cart_id>/",
				Params:  []string{"cart_id"},
				Source:  "/proj/shop/views.py:42",
			},
			"home": {Name: "home", Pattern: ""},
		},
		StaticFiles:   []string{"css/shop.css", "js/cart.js"},
		GlobalContext: map[string]string{},
		ObjectTypes: map[string]inventory.ObjectType{
			"auth.User": {Fields: []string{"email", "is_staff", "username"}},
		},
	}
}

func testResolver() *Resolver {
	return New(tmplctx.NewWithReader(func(string) ([]byte, error) {
		return nil, assert.AnError
	}))
}

func labels(candidates []Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Label
	}
	return out
}

func endOfLine(doc *Document, line int) int {
	return len(doc.Index.Line(line))
}

func TestLoadCompletionExcludesLoadedLibraries(t *testing.T) {
	doc := NewDocument("page.html", "{% load shop_extras %}\n{% load  %}")
	got := testResolver().Completions(testSnapshot(), doc, 1, len("{% load "))
	assert.Equal(t, []string{"cart_extras"}, labels(got))
}

func TestLoadCompletionKeepsArgumentUnderCursor(t *testing.T) {
	source := "{% load shop_extras %}"
	doc := NewDocument("page.html", source)
	got := testResolver().Completions(testSnapshot(), doc, 0, len("{% load shop_extras"))
	assert.Equal(t, []string{"shop_extras"}, labels(got))
}

func TestTagCompletionGatedByLoadedLibraries(t *testing.T) {
	r := testResolver()
	snap := testSnapshot()

	bare := NewDocument("page.html", "{% pri")
	assert.Empty(t, r.Completions(snap, bare, 0, endOfLine(bare, 0)))

	loaded := NewDocument("page.html", "{% load shop_extras %}\n{% pri")
	got := r.Completions(snap, loaded, 1, len("{% pri"))
	assert.Equal(t, []string{"price_tag"}, labels(got))
}

func TestBuiltinTagsAlwaysAvailable(t *testing.T) {
	doc := NewDocument("page.html", "{% ex")
	got := testResolver().Completions(testSnapshot(), doc, 0, endOfLine(doc, 0))
	assert.Equal(t, []string{"extends"}, labels(got))
	assert.Equal(t, KindTag, got[0].Kind)
}

func TestFilterCompletionGatedByLoadedLibraries(t *testing.T) {
	r := testResolver()
	snap := testSnapshot()

	doc := NewDocument("page.html", "{% load shop_extras %}\n{{ price|cu")
	got := r.Completions(snap, doc, 1, len("{{ price|cu"))
	assert.Equal(t, []string{"currency"}, labels(got))
	assert.Equal(t, KindFilter, got[0].Kind)
	assert.Equal(t, "Format a decimal as a currency string.", got[0].Detail)

	bare := NewDocument("page.html", "{{ price|cu")
	assert.Empty(t, r.Completions(snap, bare, 0, endOfLine(bare, 0)))
}

func TestURLCompletionCarriesPatternDetail(t *testing.T) {
	doc := NewDocument("page.html", `{% url "c`)
	got := testResolver().Completions(testSnapshot(), doc, 0, endOfLine(doc, 0))
	require.Equal(t, []string{"checkout"}, labels(got))
	assert.Equal(t, KindURLName, got[0].Kind)
	assert.Equal(t, "shop/checkout/<int:cart_id>/ (cart_id)", got[0].Detail)
}

func TestStaticAndTemplateCompletion(t *testing.T) {
	r := testResolver()
	snap := testSnapshot()

	static := NewDocument("page.html", `{% static "css/`)
	assert.Equal(t, []string{"css/shop.css"}, labels(r.Completions(snap, static, 0, endOfLine(static, 0))))

	include := NewDocument("page.html", `{% include "shop/`)
	got := r.Completions(snap, include, 0, endOfLine(include, 0))
	require.Equal(t, []string{"shop/detail.html"}, labels(got))
	assert.Equal(t, KindTemplatePath, got[0].Kind)
}

func TestBlockCompletionOffersUnusedInheritedNames(t *testing.T) {
	source := "{% extends \"base.html\" %}\n{% block content %}{% endblock %}\n{% block "
	doc := NewDocument("shop/detail.html", source)
	got := testResolver().Completions(testSnapshot(), doc, 2, len("{% block "))
	assert.Equal(t, []string{"footer", "title"}, labels(got))
}

func TestBlockCompletionWithoutExtendsYieldsNothing(t *testing.T) {
	doc := NewDocument("page.html", "{% block ")
	assert.Empty(t, testResolver().Completions(testSnapshot(), doc, 0, endOfLine(doc, 0)))
}

func TestBlockCompletionSurvivesExtendsCycle(t *testing.T) {
	snap := testSnapshot()
	snap.Templates["a.html"] = inventory.TemplateInfo{Key: "a.html", Extends: "b.html", Blocks: []string{"alpha"}}
	snap.Templates["b.html"] = inventory.TemplateInfo{Key: "b.html", Extends: "a.html", Blocks: []string{"beta"}}

	doc := NewDocument("page.html", "{% extends \"a.html\" %}\n{% block ")
	got := testResolver().Completions(snap, doc, 1, len("{% block "))
	assert.Equal(t, []string{"alpha", "beta"}, labels(got))
}

func TestEndblockCompletionOrdersByRecency(t *testing.T) {
	source := "{% block outer %}{% block inner %}\n{% endblock "
	doc := NewDocument("page.html", source)
	got := testResolver().Completions(testSnapshot(), doc, 1, len("{% endblock "))
	assert.Equal(t, []string{"inner", "outer"}, labels(got))
}

func TestContextVariableCompletion(t *testing.T) {
	source := "{# type user: auth.User #}\n{{ us"
	doc := NewDocument("page.html", source)
	got := testResolver().Completions(testSnapshot(), doc, 1, len("{{ us"))
	require.Equal(t, []string{"user"}, labels(got))
	assert.Equal(t, KindContextVariable, got[0].Kind)
	assert.Equal(t, "user: auth.User", got[0].Detail)
}

func TestContextFieldExpansion(t *testing.T) {
	source := "{# type user: auth.User #}\n{{ user.em"
	doc := NewDocument("page.html", source)
	got := testResolver().Completions(testSnapshot(), doc, 1, len("{{ user.em"))
	require.Equal(t, []string{"email"}, labels(got))
	assert.Equal(t, KindField, got[0].Kind)
}

func TestForloopFieldExpansion(t *testing.T) {
	source := "{% for item in items %}{{ forloop.c"
	doc := NewDocument("page.html", source)
	got := testResolver().Completions(testSnapshot(), doc, 0, endOfLine(doc, 0))
	assert.Equal(t, []string{"counter", "counter0"}, labels(got))
}

func TestNoContextCompletionInsideClosingTags(t *testing.T) {
	doc := NewDocument("page.html", "{% endfor us")
	assert.Empty(t, testResolver().Completions(testSnapshot(), doc, 0, endOfLine(doc, 0)))
}

func TestTypeCommentPathCompletion(t *testing.T) {
	doc := NewDocument("page.html", "{# type user: auth.")
	got := testResolver().Completions(testSnapshot(), doc, 0, endOfLine(doc, 0))
	assert.Equal(t, []string{"auth.User"}, labels(got))
	assert.Equal(t, KindTypePath, got[0].Kind)
}

func TestFuzzyFallbackRanksNearMisses(t *testing.T) {
	doc := NewDocument("page.html", `{% url "chekout`)
	got := testResolver().Completions(testSnapshot(), doc, 0, endOfLine(doc, 0))
	require.NotEmpty(t, got)
	assert.Equal(t, "checkout", got[0].Label)
}

func TestFuzzyFallbackSilentOnDistantPrefix(t *testing.T) {
	doc := NewDocument("page.html", `{% url "zzzzzzzz`)
	assert.Empty(t, testResolver().Completions(testSnapshot(), doc, 0, endOfLine(doc, 0)))
}

func TestURLHover(t *testing.T) {
	doc := NewDocument("page.html", `{% url "checkout" %}`)
	hover, ok := testResolver().Hover(testSnapshot(), doc, 0, len(`{% url "che`))
	require.True(t, ok)
	assert.Contains(t, hover.Contents, `url "checkout"`)
	assert.Contains(t, hover.Contents, "shop/checkout/<int:cart_id>/")
	assert.Contains(t, hover.Contents, "cart_id")
}

func TestTagHoverNamesProvidingLibrary(t *testing.T) {
	doc := NewDocument("page.html", "{% load shop_extras %}\n{% price_tag %}")
	hover, ok := testResolver().Hover(testSnapshot(), doc, 1, len("{% pri"))
	require.True(t, ok)
	assert.Contains(t, hover.Contents, "(tag) price_tag")
	assert.Contains(t, hover.Contents, "shop_extras")
	assert.Contains(t, hover.Contents, "Render a price in the shop currency.")
}

func TestFilterHoverShowsDocstring(t *testing.T) {
	doc := NewDocument("page.html", "{% load shop_extras %}\n{{ price|currency }}")
	hover, ok := testResolver().Hover(testSnapshot(), doc, 1, len("{{ price|cur"))
	require.True(t, ok)
	assert.Contains(t, hover.Contents, "Format a decimal as a currency string.")
}

func TestTagHoverWithoutDocstringStaysTerse(t *testing.T) {
	doc := NewDocument("page.html", "{% load cart_extras %}\n{% cart_total %}")
	hover, ok := testResolver().Hover(testSnapshot(), doc, 1, len("{% cart"))
	require.True(t, ok)
	assert.Equal(t, "(tag) cart_total\nlibrary: cart_extras", hover.Contents)
}

func TestFilterHoverRequiresLoadedLibrary(t *testing.T) {
	r := testResolver()
	snap := testSnapshot()

	doc := NewDocument("page.html", "{{ price|currency }}")
	_, ok := r.Hover(snap, doc, 0, len("{{ price|cur"))
	assert.False(t, ok)

	loaded := NewDocument("page.html", "{% load shop_extras %}\n{{ price|currency }}")
	hover, ok := r.Hover(snap, loaded, 1, len("{{ price|cur"))
	require.True(t, ok)
	assert.Contains(t, hover.Contents, "(filter) currency")
}

func TestContextHover(t *testing.T) {
	doc := NewDocument("page.html", "{# type user: auth.User #}\n{{ user }}")
	hover, ok := testResolver().Hover(testSnapshot(), doc, 1, len("{{ us"))
	require.True(t, ok)
	assert.Contains(t, hover.Contents, "(variable) user: auth.User")
}

func TestTemplateDefinition(t *testing.T) {
	doc := NewDocument("page.html", `{% extends "base.html" %}`)
	loc, ok := testResolver().Definition(testSnapshot(), doc, 0, len(`{% extends "ba`))
	require.True(t, ok)
	assert.Equal(t, "/proj/templates/base.html", loc.Path)
	assert.Equal(t, 0, loc.Line)
}

func TestURLDefinition(t *testing.T) {
	doc := NewDocument("page.html", `{% url "checkout" %}`)
	loc, ok := testResolver().Definition(testSnapshot(), doc, 0, len(`{% url "check`))
	require.True(t, ok)
	assert.Equal(t, "/proj/shop/views.py", loc.Path)
	assert.Equal(t, 41, loc.Line)
}

func TestTagDefinition(t *testing.T) {
	doc := NewDocument("page.html", "{% load shop_extras %}\n{% price_tag %}")
	loc, ok := testResolver().Definition(testSnapshot(), doc, 1, len("{% pri"))
	require.True(t, ok)
	assert.Equal(t, "/proj/shop/templatetags/shop_extras.py", loc.Path)
	assert.Equal(t, 11, loc.Line)
}

func TestFilterDefinition(t *testing.T) {
	doc := NewDocument("page.html", "{% load shop_extras %}\n{{ price|currency }}")
	loc, ok := testResolver().Definition(testSnapshot(), doc, 1, len("{{ price|cur"))
	require.True(t, ok)
	assert.Equal(t, "/proj/shop/templatetags/shop_extras.py", loc.Path)
	assert.Equal(t, 26, loc.Line)
}

func TestTagDefinitionRequiresLoadedLibrary(t *testing.T) {
	doc := NewDocument("page.html", "{% price_tag %}")
	_, ok := testResolver().Definition(testSnapshot(), doc, 0, len("{% pri"))
	assert.False(t, ok)
}

func TestTagDefinitionWithoutSource(t *testing.T) {
	doc := NewDocument("page.html", "{% csrf_token %}")
	_, ok := testResolver().Definition(testSnapshot(), doc, 0, len("{% csrf"))
	assert.False(t, ok)
}

func TestURLDefinitionWithoutSource(t *testing.T) {
	doc := NewDocument("page.html", `{% url "home" %}`)
	_, ok := testResolver().Definition(testSnapshot(), doc, 0, len(`{% url "ho`))
	assert.False(t, ok)
}

func TestUnknownTemplateDefinition(t *testing.T) {
	doc := NewDocument("page.html", `{% include "missing.html" %}`)
	_, ok := testResolver().Definition(testSnapshot(), doc, 0, len(`{% include "miss`))
	assert.False(t, ok)
}
