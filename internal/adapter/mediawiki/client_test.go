package mediawiki

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listResponse = `{
	"query": {
		"pages": [{
			"title": "word",
			"images": [
				{"title": "File:En-us-word.ogg"},
				{"title": "File:En-uk-word.oga"},
				{"title": "File:Wiktionary-logo.svg"},
				{"title": "File:En-us-word.ogg"}
			]
		}]
	}
}`

const resolveResponse = `{
	"query": {
		"pages": [
			{
				"title": "File:En-us-word.ogg",
				"imageinfo": [{
					"url": "https://upload.example.org/a/ab/En-us-word.ogg",
					"mime": "audio/ogg",
					"extmetadata": {
						"LicenseShortName": {"value": "CC BY-SA 3.0"},
						"Restrictions": {"value": false}
					}
				}]
			},
			{
				"title": "File:En-uk-word.oga",
				"imageinfo": [{
					"url": "https://upload.example.org/c/cd/En-uk-word.oga",
					"mime": ""
				}]
			}
		]
	}
}`

const fallbackResponse = `{
	"query": {
		"pages": [
			{
				"title": "File:Embedded-word.flac",
				"imageinfo": [{
					"url": "https://upload.example.org/e/ef/Embedded-word.flac",
					"mime": "audio/flac"
				}]
			},
			{
				"title": "File:Embedded-page.html",
				"imageinfo": [{
					"url": "https://upload.example.org/f/f0/Embedded-page.html",
					"mime": "text/html"
				}]
			}
		]
	}
}`

// stageServer serves canned list/resolve/fallback responses and counts how
// often each stage is hit.
type stageServer struct {
	list, resolve, fallback atomic.Int32

	listBody, resolveBody, fallbackBody string
	listStatus                          int
}

func (s *stageServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("generator") == "images":
			s.fallback.Add(1)
			_, _ = w.Write([]byte(s.fallbackBody))
		case q.Get("prop") == "images":
			s.list.Add(1)
			if s.listStatus != 0 {
				w.WriteHeader(s.listStatus)
				return
			}
			_, _ = w.Write([]byte(s.listBody))
		case q.Get("prop") == "imageinfo":
			s.resolve.Add(1)
			_, _ = w.Write([]byte(s.resolveBody))
		default:
			http.Error(w, "unexpected query", http.StatusBadRequest)
		}
	}
}

func TestResolve_ListAndResolvePath(t *testing.T) {
	srv := &stageServer{listBody: listResponse, resolveBody: resolveResponse, fallbackBody: fallbackResponse}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	client := NewClient(ts.URL, nil)
	candidates, err := client.Resolve(context.Background(), "word")
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	assert.Equal(t, "File:En-us-word.ogg", candidates[0].Title)
	assert.Equal(t, "https://upload.example.org/a/ab/En-us-word.ogg", candidates[0].URL)
	assert.Equal(t, "En-us-word.ogg", candidates[0].Filename)
	assert.Equal(t, "CC BY-SA 3.0", candidates[0].LicenseMetadata["LicenseShortName"])
	assert.Equal(t, "false", candidates[0].LicenseMetadata["Restrictions"])

	// MIME absent but .oga extension matches the allowlist.
	assert.Equal(t, "File:En-uk-word.oga", candidates[1].Title)

	// The fallback stage never runs when the first path yields candidates.
	assert.Equal(t, int32(0), srv.fallback.Load())
}

func TestResolve_TitlesUniqueWithinResult(t *testing.T) {
	srv := &stageServer{listBody: listResponse, resolveBody: resolveResponse, fallbackBody: fallbackResponse}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	candidates, err := NewClient(ts.URL, nil).Resolve(context.Background(), "word")
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, c := range candidates {
		if seen[c.Title] {
			t.Fatalf("duplicate candidate title %q", c.Title)
		}
		seen[c.Title] = true
	}
}

func TestResolve_FallbackWhenListEmpty(t *testing.T) {
	srv := &stageServer{
		listBody:     `{"query":{"pages":[{"title":"word"}]}}`,
		resolveBody:  `{}`,
		fallbackBody: fallbackResponse,
	}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	candidates, err := NewClient(ts.URL, nil).Resolve(context.Background(), "word")
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "File:Embedded-word.flac", candidates[0].Title)
	assert.Equal(t, int32(1), srv.fallback.Load())
	// The resolve stage was skipped entirely: the list stage yielded no titles.
	assert.Equal(t, int32(0), srv.resolve.Load())
}

func TestResolve_ListFailureFallsThrough(t *testing.T) {
	srv := &stageServer{
		listStatus:   http.StatusInternalServerError,
		fallbackBody: fallbackResponse,
	}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	candidates, err := NewClient(ts.URL, nil).Resolve(context.Background(), "word")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
}

func TestResolve_AllStagesFailYieldsEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	candidates, err := NewClient(ts.URL, nil).Resolve(context.Background(), "word")
	assert.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestResolve_ParseFailureAbsorbed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer ts.Close()

	candidates, err := NewClient(ts.URL, nil).Resolve(context.Background(), "word")
	assert.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestResolve_RejectsNonAudioMime(t *testing.T) {
	srv := &stageServer{
		listBody: `{"query":{"pages":[{"title":"word","images":[{"title":"File:trap.ogg"}]}]}}`,
		resolveBody: `{"query":{"pages":[{
			"title": "File:trap.ogg",
			"imageinfo": [{"url": "https://upload.example.org/t/tt/trap.ogg", "mime": "text/html"}]
		}]}}`,
		fallbackBody: `{"query":{"pages":[]}}`,
	}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	candidates, err := NewClient(ts.URL, nil).Resolve(context.Background(), "word")
	require.NoError(t, err)
	assert.Empty(t, candidates)
	// Zero candidates from list+resolve means the fallback stage runs.
	assert.Equal(t, int32(1), srv.fallback.Load())
}

func TestFilenameFromURL(t *testing.T) {
	tests := []struct {
		url, title, want string
	}{
		{"https://upload.example.org/a/ab/En-us-word.ogg", "File:En-us-word.ogg", "En-us-word.ogg"},
		{"https://upload.example.org/a/ab/d%C3%A9j%C3%A0.ogg", "File:déjà.ogg", "déjà.ogg"},
		{"", "File:word.ogg", "word.ogg"},
		{"", "word.ogg", "word.ogg"},
	}
	for _, tt := range tests {
		if got := filenameFromURL(tt.url, tt.title); got != tt.want {
			t.Errorf("filenameFromURL(%q, %q) = %q, want %q", tt.url, tt.title, got, tt.want)
		}
	}
}
