// Package search defines the search provider capability and a SearxNG client.
//
// Engine selection (web, academic, discussion engines) is the caller's
// concern and is passed through Options.
package search

import (
	"context"

	"github.com/go-go-golems/scout/pkg/turns"
)

// Result is a single search hit.
type Result struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Content   string `json:"content,omitempty"`
	Author    string `json:"author,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Engine    string `json:"engine,omitempty"`
}

type Response struct {
	Results     []Result `json:"results"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Options are optional parameters for a search query.
type Options struct {
	Engines    []string
	Categories []string
	Language   string
	PageNo     int
}

// Provider is implemented by search backends.
type Provider interface {
	Search(ctx context.Context, query string, opts Options) (*Response, error)
}

// Chunks converts results into citable evidence. Results without content use
// their title as content.
func (r *Response) Chunks() []turns.Chunk {
	if r == nil {
		return nil
	}
	out := make([]turns.Chunk, 0, len(r.Results))
	for _, res := range r.Results {
		content := res.Content
		if content == "" {
			content = res.Title
		}
		c := turns.NewChunk(content, res.Title, res.URL)
		if res.Author != "" {
			c.Metadata["author"] = res.Author
		}
		if res.Thumbnail != "" {
			c.Metadata["thumbnail"] = res.Thumbnail
		}
		if res.Engine != "" {
			c.Metadata["engine"] = res.Engine
		}
		out = append(out, c)
	}
	return out
}
