package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearxNGSearch(t *testing.T) {
	var gotQuery, gotEngines, gotFormat, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotEngines = r.URL.Query().Get("engines")
		gotFormat = r.URL.Query().Get("format")
		gotLang = r.URL.Query().Get("language")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "Go", "url": "https://go.dev", "content": "The Go language", "engine": "duckduckgo"},
				{"title": "Only title", "url": "https://example.com", "img_src": "https://example.com/i.png"},
			},
			"suggestions": []string{"golang"},
		})
	}))
	defer srv.Close()

	s := NewSearxNG(srv.URL+"/", "en")
	resp, err := s.Search(context.Background(), "golang", Options{Engines: []string{"arxiv", "pubmed"}})
	require.NoError(t, err)

	assert.Equal(t, "golang", gotQuery)
	assert.Equal(t, "arxiv,pubmed", gotEngines)
	assert.Equal(t, "json", gotFormat)
	assert.Equal(t, "en", gotLang)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "https://example.com/i.png", resp.Results[1].Thumbnail)

	chunks := resp.Chunks()
	require.Len(t, chunks, 2)
	assert.Equal(t, "The Go language", chunks[0].Content)
	assert.Equal(t, "https://go.dev", chunks[0].URL())
	assert.Equal(t, "duckduckgo", chunks[0].Metadata["engine"])
	assert.Equal(t, "Only title", chunks[1].Content)
}

func TestSearxNGStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewSearxNG(srv.URL, "").Search(context.Background(), "x", Options{})
	require.Error(t, err)
}
