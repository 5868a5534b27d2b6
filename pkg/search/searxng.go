package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SearxNG queries a SearxNG instance through its JSON API.
type SearxNG struct {
	BaseURL  string
	Language string
	client   *http.Client
}

var _ Provider = (*SearxNG)(nil)

func NewSearxNG(baseURL string, language string) *SearxNG {
	return &SearxNG{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Language: language,
		client:   &http.Client{Timeout: 20 * time.Second},
	}
}

type searxngResult struct {
	Title        string `json:"title"`
	URL          string `json:"url"`
	Content      string `json:"content"`
	Author       string `json:"author"`
	ImgSrc       string `json:"img_src"`
	ThumbnailSrc string `json:"thumbnail_src"`
	Engine       string `json:"engine"`
}

type searxngResponse struct {
	Results     []searxngResult `json:"results"`
	Suggestions []string        `json:"suggestions"`
}

func (s *SearxNG) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	if s.BaseURL == "" {
		return nil, errors.New("searxng: no base URL configured")
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	if len(opts.Engines) > 0 {
		params.Set("engines", strings.Join(opts.Engines, ","))
	}
	if len(opts.Categories) > 0 {
		params.Set("categories", strings.Join(opts.Categories, ","))
	}
	lang := opts.Language
	if lang == "" {
		lang = s.Language
	}
	if lang != "" {
		params.Set("language", lang)
	}
	if opts.PageNo > 0 {
		params.Set("pageno", strconv.Itoa(opts.PageNo))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "searxng: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "searxng: request failed")
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("searxng: failed to close response body")
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("searxng: unexpected status %d for query %q", resp.StatusCode, query)
	}

	var body searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "searxng: decode response")
	}

	out := &Response{Suggestions: body.Suggestions}
	for _, r := range body.Results {
		thumb := r.ThumbnailSrc
		if thumb == "" {
			thumb = r.ImgSrc
		}
		out.Results = append(out.Results, Result{
			Title:     r.Title,
			URL:       r.URL,
			Content:   r.Content,
			Author:    r.Author,
			Thumbnail: thumb,
			Engine:    r.Engine,
		})
	}
	log.Debug().Str("query", query).Strs("engines", opts.Engines).Int("results", len(out.Results)).Msg("searxng: search completed")
	return out, nil
}
