package inventory

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
	"apps": [
		{
			"label": "shop",
			"path": "/src/shop",
			"template_dirs": ["/src/shop/templates"],
			"static_dirs": ["/src/shop/static"],
			"models": ["shop.models.Product", "shop.models.Order"]
		},
		{"label": "blog", "path": "/src/blog"}
	],
	"tags_filters": {
		"__builtins__": {
			"tags": {"if": {}, "endif": {}, "for": {}, "endfor": {}, "load": {}, "url": {}, "static": {}},
			"filters": {"lower": {}, "upper": {}}
		},
		"shop_extras": {
			"tags": {"price_badge": {"docs": "Badge markup for a price.", "source": "/src/shop/templatetags/shop_extras.py:10"}},
			"filters": {"currency": {}}
		}
	},
	"templates": [
		{"key": "base.html", "app": "", "path": "/src/templates/base.html"},
		{"key": "shop/detail.html", "app": "shop", "path": "/src/shop/templates/shop/detail.html",
		 "context": {"product": "shop.models.Product"}}
	],
	"urls": [
		{"name": "shop:detail", "app": "shop", "pattern": "shop/<int:pk>/", "params": ["pk"], "source": "/src/shop/views.py:14"},
		{"name": "home", "app": "", "pattern": "", "params": []}
	],
	"static_files": ["css/main.css", "js/app.js"],
	"file_watcher_globs": ["**/templates/**", "**/static/**"],
	"global_template_context": {"request": "django.http.HttpRequest"},
	"object_types": {"shop.models.Product": {"fields": ["id", "name", "price"]}}
}`

func TestIngestRoundTrip(t *testing.T) {
	store := NewStore()
	gen, err := store.Ingest([]byte(samplePayload))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)

	snap := store.Snapshot()
	assert.Equal(t, gen, snap.Generation)
	assert.Equal(t, []string{"base.html", "shop/detail.html"}, snap.TemplateKeys())
	assert.Equal(t, []string{"home", "shop:detail"}, snap.URLNames())
	assert.Equal(t, []string{"shop_extras"}, snap.LibraryNames())
	assert.Equal(t, []string{"css/main.css", "js/app.js"}, snap.StaticFiles)

	lib := snap.Libraries["shop_extras"]
	require.NotNil(t, lib)
	assert.True(t, lib.HasTag("price_badge"))
	assert.True(t, lib.HasFilter("currency"))
	assert.False(t, lib.HasTag("currency"))

	sym, ok := lib.Tag("price_badge")
	require.True(t, ok)
	assert.Equal(t, "Badge markup for a price.", sym.Docs)
	assert.Equal(t, "/src/shop/templatetags/shop_extras.py:10", sym.Source)

	url := snap.URLs["shop:detail"]
	assert.Equal(t, "shop/<int:pk>/", url.Pattern)
	assert.Equal(t, []string{"pk"}, url.Params)

	app := snap.Apps["shop"]
	assert.Contains(t, app.Models, "shop.models.Product")

	assert.Equal(t, []string{"id", "name", "price"}, snap.ObjectTypes["shop.models.Product"].Fields)
	assert.Equal(t, "django.http.HttpRequest", snap.GlobalContext["request"])
}

func TestIngestMissingKeysAreEmptyCollections(t *testing.T) {
	store := NewStore()
	_, err := store.Ingest([]byte(`{}`))
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.Empty(t, snap.TemplateKeys())
	assert.Empty(t, snap.URLNames())
	assert.Empty(t, snap.StaticFiles)
	// Builtins survive even an empty collection.
	assert.NotNil(t, snap.Libraries[BuiltinsLibrary])
}

func TestIngestMalformedLeavesSnapshotActive(t *testing.T) {
	store := NewStore()
	gen, err := store.Ingest([]byte(samplePayload))
	require.NoError(t, err)

	cases := [][]byte{
		[]byte(`not json at all`),
		[]byte(`[1, 2, 3]`),
		[]byte(`"just a string"`),
		[]byte(`{"templates": "should-be-an-array"}`),
		[]byte(`{"urls": [{"pattern": "missing-name/"}]}`),
		[]byte(`{"static_files": [1, 2]}`),
		[]byte(`{"tags_filters": {"x": {"tags": ["legacy-array-form"]}}}`),
	}
	for _, raw := range cases {
		_, err := store.Ingest(raw)
		assert.Error(t, err, "payload %s", raw)
		assert.Equal(t, gen, store.Snapshot().Generation,
			"generation must be unchanged after rejected payload %s", raw)
		assert.Equal(t, []string{"base.html", "shop/detail.html"}, store.Snapshot().TemplateKeys())
	}
}

func TestIngestTemplateCollisionFirstAppWins(t *testing.T) {
	payload := `{
		"templates": [
			{"key": "shared/header.html", "app": "first", "path": "/src/first/templates/shared/header.html"},
			{"key": "shared/header.html", "app": "second", "path": "/src/second/templates/shared/header.html"}
		]
	}`
	for i := 0; i < 10; i++ {
		store := NewStore()
		_, err := store.Ingest([]byte(payload))
		require.NoError(t, err)
		tmpl := store.Snapshot().Templates["shared/header.html"]
		assert.Equal(t, "first", tmpl.App, "iteration %d", i)
		assert.Equal(t, "/src/first/templates/shared/header.html", tmpl.Path)
	}
}

func TestIngestGenerationIncreases(t *testing.T) {
	store := NewStore()
	gen1, err := store.Ingest([]byte(`{}`))
	require.NoError(t, err)
	gen2, err := store.Ingest([]byte(samplePayload))
	require.NoError(t, err)
	assert.Greater(t, gen2, gen1)
}

func TestIngestConcurrentGenerationsMonotonic(t *testing.T) {
	store := NewStore()

	done := make(chan struct{})
	var reader sync.WaitGroup
	reader.Add(1)
	go func() {
		defer reader.Done()
		var last uint64
		for {
			select {
			case <-done:
				return
			default:
			}
			gen := store.Snapshot().Generation
			if gen < last {
				t.Errorf("generation regressed: observed %d after %d", gen, last)
				return
			}
			last = gen
		}
	}()

	var writers sync.WaitGroup
	for i := 0; i < 4; i++ {
		writers.Add(1)
		go func() {
			defer writers.Done()
			for j := 0; j < 25; j++ {
				_, err := store.Ingest([]byte(`{}`))
				assert.NoError(t, err)
			}
		}()
	}
	writers.Wait()
	close(done)
	reader.Wait()

	assert.EqualValues(t, 100, store.Snapshot().Generation)
}

func TestFallbackBuiltinsBeforeFirstCollection(t *testing.T) {
	snap := NewStore().Snapshot()
	builtins := snap.Libraries[BuiltinsLibrary]
	require.NotNil(t, builtins)
	assert.True(t, builtins.HasTag("if"))
	assert.True(t, builtins.HasTag("endif"))
	assert.True(t, builtins.HasTag("extends"))
	assert.True(t, builtins.HasFilter("upper"))
	assert.NotContains(t, snap.LibraryNames(), BuiltinsLibrary)
}

func TestCollectedBuiltinsOverrideFallback(t *testing.T) {
	store := NewStore()
	_, err := store.Ingest([]byte(`{"tags_filters": {"__builtins__": {"tags": {"only_tag": {}}, "filters": {}}}}`))
	require.NoError(t, err)

	builtins := store.Snapshot().Libraries[BuiltinsLibrary]
	assert.True(t, builtins.HasTag("only_tag"))
	assert.False(t, builtins.HasTag("if"))
}

func TestIngestTemplateInheritanceMetadata(t *testing.T) {
	payload := `{
		"templates": [
			{"key": "base.html", "path": "/src/templates/base.html", "blocks": ["content", "title"]},
			{"key": "page.html", "path": "/src/templates/page.html", "extends": "base.html"}
		]
	}`
	store := NewStore()
	_, err := store.Ingest([]byte(payload))
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.Equal(t, []string{"content", "title"}, snap.Templates["base.html"].Blocks)
	assert.Equal(t, "base.html", snap.Templates["page.html"].Extends)
}

func TestWatcherGlobsDefaultWhenUnreported(t *testing.T) {
	store := NewStore()
	assert.Equal(t, DefaultWatcherGlobs, store.Snapshot().WatcherGlobs)

	_, err := store.Ingest([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultWatcherGlobs, store.Snapshot().WatcherGlobs)

	_, err = store.Ingest([]byte(`{"file_watcher_globs": ["**/*.html"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"**/*.html"}, store.Snapshot().WatcherGlobs)
}

func TestSchemaValidateAcceptsUnknownKeys(t *testing.T) {
	require.NoError(t, validateSchema([]byte(`{"future_key": {"anything": true}}`)))
}

func TestRawPayloadDecode(t *testing.T) {
	payload, err := decodePayload([]byte(samplePayload))
	require.NoError(t, err)

	// Round-trip sanity on the raw structures used by buildSnapshot.
	data, err := json.Marshal(payload.TagsFilters)
	require.NoError(t, err)
	assert.Contains(t, string(data), "shop_extras")
}
