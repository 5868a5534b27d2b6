package config

import (
	"net/http"

	"github.com/go-go-golems/scout/pkg/actions"
	"github.com/go-go-golems/scout/pkg/agent"
	"github.com/go-go-golems/scout/pkg/embeddings"
	"github.com/go-go-golems/scout/pkg/intents"
	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/search"
	"github.com/go-go-golems/scout/pkg/store"
	"github.com/go-go-golems/scout/pkg/uploads"
	"github.com/go-go-golems/scout/pkg/widgets"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// Runtime holds the engine and the backends built from Settings.
type Runtime struct {
	Agent     *agent.SearchAgent
	Generator llm.Generator
	Store     store.Store
	Uploads   uploads.Store
	// Indexer is nil when no embedding provider is configured.
	Indexer *uploads.Indexer
}

func (r *Runtime) Close() error {
	if r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

type buildOptions struct {
	generator  llm.Generator
	embeddings embeddings.Provider
	search     search.Provider
	httpClient *http.Client
}

type BuildOption func(*buildOptions)

// WithGenerator replaces the configured chat endpoint.
func WithGenerator(gen llm.Generator) BuildOption {
	return func(o *buildOptions) {
		o.generator = gen
	}
}

func WithEmbeddings(p embeddings.Provider) BuildOption {
	return func(o *buildOptions) {
		o.embeddings = p
	}
}

func WithSearch(p search.Provider) BuildOption {
	return func(o *buildOptions) {
		o.search = p
	}
}

// WithHTTPClient sets the client used by widgets and the scraper.
func WithHTTPClient(c *http.Client) BuildOption {
	return func(o *buildOptions) {
		o.httpClient = c
	}
}

func NewEmbeddings(s EmbeddingsSettings) (embeddings.Provider, error) {
	var p embeddings.Provider
	switch s.Provider {
	case "":
		return nil, nil
	case "openai":
		p = embeddings.NewOpenAIProvider(s.APIKey, s.BaseURL, go_openai.EmbeddingModel(s.Model), s.Dimensions)
	case "ollama":
		p = embeddings.NewOllamaProvider(s.BaseURL, s.Model, s.Dimensions)
	default:
		return nil, errors.Errorf("unknown embeddings provider %q", s.Provider)
	}
	if s.CacheSize > 0 {
		p = embeddings.NewCachedProvider(p, s.CacheSize)
	}
	return p, nil
}

func NewUploadsStore(s UploadsSettings) (uploads.Store, error) {
	if s.Dir == "" {
		return uploads.NewMemoryStore(), nil
	}
	return uploads.NewDirStore(s.Dir)
}

// Build wires the whole engine.
func Build(s *Settings, options ...BuildOption) (*Runtime, error) {
	o := &buildOptions{}
	for _, opt := range options {
		opt(o)
	}

	gen := o.generator
	if gen == nil {
		g, err := llm.NewOpenAIGenerator(s.LLM)
		if err != nil {
			return nil, err
		}
		gen = g
	}

	emb := o.embeddings
	if emb == nil {
		e, err := NewEmbeddings(s.Embeddings)
		if err != nil {
			return nil, err
		}
		emb = e
	}

	searchProvider := o.search
	if searchProvider == nil && s.Search.SearxNGURL != "" {
		searchProvider = search.NewSearxNG(s.Search.SearxNGURL, s.Search.Language)
	}

	uploadStore, err := NewUploadsStore(s.Uploads)
	if err != nil {
		return nil, err
	}

	scraper, err := actions.NewScraper(o.httpClient, s.Scrape)
	if err != nil {
		return nil, err
	}

	intentRegistry := intents.NewBuiltinRegistry()
	deps := actions.Dependencies{
		Search:     searchProvider,
		Scraper:    scraper,
		UploadTopK: s.Uploads.TopK,
	}
	if emb != nil {
		deps.Uploads = uploadStore
		deps.Embeddings = emb
	}
	actionRegistry, err := actions.NewBuiltinRegistry(intentRegistry, deps)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(s.Store.Driver, s.Store.DSN)
	if err != nil {
		return nil, err
	}

	a, err := agent.New(agent.Dependencies{
		Generator: gen,
		Store:     st,
		Intents:   intentRegistry,
		Widgets:   widgets.NewBuiltinRegistry(o.httpClient, s.Widgets),
		Actions:   actionRegistry,
	}, agent.WithSuggestionCount(s.Agent.SuggestionCount))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	rt := &Runtime{
		Agent:     a,
		Generator: gen,
		Store:     st,
		Uploads:   uploadStore,
	}
	if emb != nil {
		rt.Indexer, err = uploads.NewIndexer(uploadStore, emb,
			uploads.WithChunkTokens(s.Uploads.ChunkTokens),
			uploads.WithOverlapTokens(s.Uploads.OverlapTokens))
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	names := []string{}
	for _, d := range actionRegistry.List() {
		names = append(names, d.Name)
	}
	log.Debug().
		Strs("actions", names).
		Str("store", s.Store.Driver).
		Bool("uploads", rt.Indexer != nil).
		Msg("built runtime")
	return rt, nil
}
