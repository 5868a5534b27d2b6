package actions

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/go-go-golems/scout/pkg/security"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/mb0/glob"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
	"golang.org/x/sync/errgroup"
)

const (
	ActionScrapeURL = "scrape_url"

	DefaultScrapeMaxTokens = 6000
	maxPageBytes           = 5 << 20
)

// Scraper fetches pages and reduces them to readable text.
type Scraper struct {
	client    *http.Client
	maxTokens int
	blocked   []string
	outbound  security.OutboundOptions
	codec     tokenizer.Codec
}

type ScraperSettings struct {
	MaxTokens      int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	BlockedDomains []string      `mapstructure:"blocked_domains" yaml:"blocked_domains"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// AllowLocalNetworks lets the model read pages on loopback and private addresses.
	AllowLocalNetworks bool `mapstructure:"allow_local_networks" yaml:"allow_local_networks"`
}

func NewScraper(client *http.Client, settings ScraperSettings) (*Scraper, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, errors.Wrap(err, "load tokenizer")
	}
	if client == nil {
		client = &http.Client{Timeout: settings.Timeout}
		if settings.Timeout == 0 {
			client.Timeout = 20 * time.Second
		}
	}
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = DefaultScrapeMaxTokens
	}
	return &Scraper{
		client:    client,
		maxTokens: settings.MaxTokens,
		blocked:   settings.BlockedDomains,
		outbound:  security.OutboundOptions{AllowHTTP: true, AllowLocalNetworks: settings.AllowLocalNetworks},
		codec:     codec,
	}, nil
}

// Blocked reports whether the host of rawURL matches a blocked domain glob.
func (s *Scraper) Blocked(rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, errors.Wrapf(err, "parse %s", rawURL)
	}
	host := strings.ToLower(u.Hostname())
	for _, pattern := range s.blocked {
		ok, err := glob.Match(strings.ToLower(pattern), host)
		if err != nil {
			return false, errors.Wrapf(err, "blocked domain pattern %q", pattern)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *Scraper) truncate(text string) string {
	ids, _, err := s.codec.Encode(text)
	if err != nil || len(ids) <= s.maxTokens {
		return text
	}
	out, err := s.codec.Decode(ids[:s.maxTokens])
	if err != nil {
		return text
	}
	return out
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Scrape fetches rawURL and returns its readable text as a chunk.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (turns.Chunk, error) {
	if err := security.ValidateOutboundURL(rawURL, s.outbound); err != nil {
		return turns.Chunk{}, err
	}
	blocked, err := s.Blocked(rawURL)
	if err != nil {
		return turns.Chunk{}, err
	}
	if blocked {
		return turns.Chunk{}, errors.Errorf("%s is on the blocked domain list", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return turns.Chunk{}, errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; scout/1.0)")
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")
	resp, err := s.client.Do(req)
	if err != nil {
		return turns.Chunk{}, errors.Wrapf(err, "fetch %s", rawURL)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return turns.Chunk{}, errors.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	body := io.LimitReader(resp.Body, maxPageBytes)

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	title := rawURL
	var text string
	if mediaType == "text/plain" {
		b, err := io.ReadAll(body)
		if err != nil {
			return turns.Chunk{}, errors.Wrapf(err, "read %s", rawURL)
		}
		text = collapseWhitespace(string(b))
	} else {
		doc, err := goquery.NewDocumentFromReader(body)
		if err != nil {
			return turns.Chunk{}, errors.Wrapf(err, "parse %s", rawURL)
		}
		if t := collapseWhitespace(doc.Find("title").First().Text()); t != "" {
			title = t
		}
		doc.Find("script, style, noscript, svg, iframe, nav, footer, header, form").Remove()
		root := doc.Find("main, article").First()
		if root.Length() == 0 {
			root = doc.Find("body")
		}
		text = collapseWhitespace(root.Text())
	}
	if text == "" {
		return turns.Chunk{}, errors.Errorf("%s has no readable text", rawURL)
	}
	return turns.NewChunk(s.truncate(text), title, rawURL), nil
}

type ScrapeInput struct {
	URLs []string `json:"urls" jsonschema:"description=Up to 3 page URLs to read in full,minItems=1"`
}

func NewScrapeURL(scraper *Scraper) Definition {
	return NewDefinition(ActionScrapeURL,
		"Read the full text of specific web pages, for example links the user gave or promising search results. Give up to 3 URLs.",
		func(ctx context.Context, in ScrapeInput, ec ExecContext) (Output, error) {
			urls := capQueries(in.URLs)
			if len(urls) == 0 {
				return Output{}, errors.New("no urls given")
			}
			reading := make([]turns.Chunk, 0, len(urls))
			for _, u := range urls {
				reading = append(reading, turns.NewChunk("", u, u))
			}
			stepID := ec.Trace.Append(blocks.SubStep{Type: blocks.SubStepReading, Reading: reading})

			pages := make([]*turns.Chunk, len(urls))
			var (
				mu       sync.Mutex
				failures int
				lastErr  error
			)
			var g errgroup.Group
			for i, u := range urls {
				i, u := i, u
				g.Go(func() error {
					c, err := scraper.Scrape(ctx, u)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						failures++
						lastErr = err
						log.Warn().Err(err).Str("url", u).Msg("scrape failed")
						return nil
					}
					pages[i] = &c
					reading[i] = turns.NewChunk("", c.Title(), u)
					return nil
				})
			}
			_ = g.Wait()
			if failures == len(urls) {
				return Output{}, errors.Wrap(lastErr, "all urls failed")
			}
			_ = ec.Trace.Replace(stepID, blocks.SubStep{Type: blocks.SubStepReading, Reading: reading})

			var results []turns.Chunk
			for _, p := range pages {
				if p != nil {
					results = append(results, *p)
				}
			}
			return SearchResults(results), nil
		},
		WithIntent(turns.IntentWebSearch, false),
		WithKind(KindReading),
	)
}
