package server

import (
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"djtpls/internal/inventory"
	"djtpls/internal/resolver"
)

// defaultDocumentCacheSize bounds the tokenization cache. Editors rarely
// keep more templates open than this.
const defaultDocumentCacheSize = 64

// documentStore tracks open documents and caches their tokenization. A
// cache entry is valid only for the exact content, version and inventory
// generation it was built from: an edit re-tokenizes, and a refresh rebuilds
// the document so its template key tracks the new inventory.
type documentStore struct {
	mu   sync.RWMutex
	docs map[string]openDocument

	cache *lru.Cache[string, *tokenized]
}

type openDocument struct {
	content string
	version int
}

type tokenized struct {
	hash uint64
	doc  *resolver.Document
}

func newDocumentStore(size int) *documentStore {
	cache, err := lru.New[string, *tokenized](size)
	if err != nil {
		panic(err) // only possible with a non-positive size
	}
	return &documentStore{
		docs:  make(map[string]openDocument),
		cache: cache,
	}
}

func (s *documentStore) open(uri, content string, version int) {
	s.mu.Lock()
	s.docs[uri] = openDocument{content: content, version: version}
	s.mu.Unlock()
}

func (s *documentStore) close(uri string) {
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()
	s.cache.Remove(uri)
}

// resolve returns the tokenized form of an open document, reusing the
// cached tokenization when content, version and inventory generation are
// unchanged.
func (s *documentStore) resolve(uri string, snap *inventory.Snapshot) (*resolver.Document, bool) {
	s.mu.RLock()
	od, ok := s.docs[uri]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	hash := documentHash(od.content, od.version, snap.Generation)
	if entry, ok := s.cache.Get(uri); ok && entry.hash == hash {
		return entry.doc, true
	}

	doc := resolver.NewDocument(templateKey(snap, uriPath(uri)), od.content)
	s.cache.Add(uri, &tokenized{hash: hash, doc: doc})
	return doc, true
}

func documentHash(content string, version int, generation uint64) uint64 {
	digest := xxhash.New()
	digest.WriteString(content)
	digest.WriteString("\x00")
	digest.WriteString(strconv.Itoa(version))
	digest.WriteString("\x00")
	digest.WriteString(strconv.FormatUint(generation, 10))
	return digest.Sum64()
}

// uriPath strips the file scheme from an editor URI.
func uriPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

// templateKey maps a file path to its logical template key: the key of the
// inventory entry with that path, or the path tail after a templates
// directory. Files outside every template root get an empty key and still
// work, minus inheritance lookups.
func templateKey(snap *inventory.Snapshot, path string) string {
	for key, info := range snap.Templates {
		if info.Path == path {
			return key
		}
	}
	if idx := strings.LastIndex(path, "/templates/"); idx >= 0 {
		return path[idx+len("/templates/"):]
	}
	return ""
}
