// Package jsonld composes the two JSON-LD context loader modes the core
// defines an interface for: a local-directory loader and a URL loader,
// combined "local first, remote fallback" per 4.I. Expansion to quads
// itself is done by rdf-go's JSON-LD processor (see ToQuads); the
// loaders here implement github.com/piprate/json-gold's ld.DocumentLoader
// interface and are adapted into that processor to resolve @context
// references.
package jsonld

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/piprate/json-gold/ld"
	"github.com/pquerna/cachecontrol"
)

// ErrLoaderDisallowed is returned when a remote context reference is
// encountered but neither a local directory nor a URL loader has been
// configured, per 4.I: "only inline contexts are accepted".
var ErrLoaderDisallowed = errors.New("sop: JsonLdLoaderDisallowed: remote context reference with no loader configured")

// LocalDirLoader resolves a context IRI to a file under a root
// directory: an IRI "https://ITEM/..." maps to "D/ITEM/...".
type LocalDirLoader struct {
	Root string
}

// NewLocalDirLoader builds a loader rooted at dir.
func NewLocalDirLoader(dir string) *LocalDirLoader {
	return &LocalDirLoader{Root: dir}
}

// LoadDocument implements ld.DocumentLoader by mapping the IRI's
// authority+path onto a filesystem path under Root.
func (l *LocalDirLoader) LoadDocument(iri string) (*ld.RemoteDocument, error) {
	u, err := url.Parse(iri)
	if err != nil {
		return nil, fmt.Errorf("jsonld: invalid context IRI %q: %w", iri, err)
	}
	path := filepath.Join(l.Root, u.Host, filepath.FromSlash(u.Path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jsonld: local context %q not found under %s: %w", iri, l.Root, err)
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("jsonld: local context %q is not valid JSON: %w", iri, err)
	}
	return &ld.RemoteDocument{DocumentURL: iri, Document: doc}, nil
}

// URLLoader fetches remote contexts over HTTP, honoring Cache-Control
// response headers (via pquerna/cachecontrol) with a process-local
// in-memory cache so repeated context references in one invocation
// don't refetch.
type URLLoader struct {
	client *http.Client
	cache  map[string]cachedDoc
}

type cachedDoc struct {
	doc      *ld.RemoteDocument
	expires  time.Time
	cacheAll bool
}

// NewURLLoader builds a loader using the given HTTP client, or
// http.DefaultClient if nil.
func NewURLLoader(client *http.Client) *URLLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &URLLoader{client: client, cache: make(map[string]cachedDoc)}
}

// LoadDocument implements ld.DocumentLoader over HTTP(S).
func (l *URLLoader) LoadDocument(iri string) (*ld.RemoteDocument, error) {
	if cached, ok := l.cache[iri]; ok && (cached.cacheAll || time.Now().Before(cached.expires)) {
		return cached.doc, nil
	}

	req, err := http.NewRequest(http.MethodGet, iri, nil)
	if err != nil {
		return nil, fmt.Errorf("jsonld: building request for %q: %w", iri, err)
	}
	req.Header.Set("Accept", "application/ld+json, application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jsonld: fetching %q: %w", iri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("jsonld: fetching %q: HTTP %d", iri, resp.StatusCode)
	}

	var parsed interface{}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("jsonld: decoding %q: %w", iri, err)
	}
	doc := &ld.RemoteDocument{DocumentURL: iri, Document: parsed, ContextURL: resp.Header.Get("Link")}

	reasons, expires, ccErr := cachecontrol.CachableResponse(req, resp, cachecontrol.Options{})
	switch {
	case ccErr == nil && len(reasons) == 0 && !expires.IsZero():
		// Cacheable with an explicit freshness lifetime: honor it.
		l.cache[iri] = cachedDoc{doc: doc, expires: expires}
	case ccErr == nil && len(reasons) == 0:
		// Cacheable with no explicit lifetime (e.g. no caching headers at
		// all): safe to reuse for the rest of this single invocation.
		l.cache[iri] = cachedDoc{doc: doc, cacheAll: true}
	default:
		// Explicitly uncacheable; leave uncached so every reference
		// refetches.
	}

	return doc, nil
}

// Composite is the "local first, remote fallback" loader composition
// from 4.I. A zero-value Composite with neither loader set rejects
// every remote reference with ErrLoaderDisallowed.
type Composite struct {
	Local *LocalDirLoader
	URL   *URLLoader
}

// LoadDocument implements ld.DocumentLoader.
func (c Composite) LoadDocument(iri string) (*ld.RemoteDocument, error) {
	if strings.HasPrefix(iri, "data:") {
		return ld.NewDefaultDocumentLoader(nil).LoadDocument(iri)
	}
	if c.Local == nil && c.URL == nil {
		return nil, ErrLoaderDisallowed
	}
	if c.Local != nil {
		doc, err := c.Local.LoadDocument(iri)
		if err == nil {
			return doc, nil
		}
		if c.URL == nil {
			return nil, err
		}
	}
	if c.URL != nil {
		return c.URL.LoadDocument(iri)
	}
	return nil, ErrLoaderDisallowed
}
