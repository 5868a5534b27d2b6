package actions

import (
	"context"
	"strings"
	"sync"

	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/go-go-golems/scout/pkg/search"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// MaxQueriesPerCall bounds the queries one search call acts upon.
const MaxQueriesPerCall = 3

const (
	ActionWebSearch        = "web_search"
	ActionAcademicSearch   = "academic_search"
	ActionDiscussionSearch = "discussion_search"
)

var (
	AcademicEngines   = []string{"arxiv", "google scholar", "pubmed"}
	DiscussionEngines = []string{"reddit"}
)

type QueriesInput struct {
	Queries []string `json:"queries" jsonschema:"description=Up to 3 concise keyword search queries,minItems=1"`
}

// capQueries drops blank queries, then keeps the first MaxQueriesPerCall in order.
func capQueries(queries []string) []string {
	out := make([]string, 0, MaxQueriesPerCall)
	for _, q := range queries {
		if len(out) == MaxQueriesPerCall {
			break
		}
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// searchQueries runs the queries concurrently. A failing query contributes no
// results; when every query fails the call fails. Results keep query order.
func searchQueries(
	ctx context.Context,
	provider search.Provider,
	queries []string,
	opts search.Options,
	trace *Trace,
) ([]turns.Chunk, error) {
	queries = capQueries(queries)
	if len(queries) == 0 {
		return nil, errors.New("no queries given")
	}
	trace.Append(blocks.SubStep{Type: blocks.SubStepSearching, Searching: queries})

	var (
		mu       sync.Mutex
		resultID string
		partial  []turns.Chunk
		failures int
		lastErr  error
	)
	perQuery := make([][]turns.Chunk, len(queries))

	var g errgroup.Group
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			resp, err := provider.Search(ctx, q, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				lastErr = err
				log.Warn().Err(err).Str("query", q).Msg("search query failed")
				return nil
			}
			chunks := resp.Chunks()
			perQuery[i] = chunks
			partial = append(partial, chunks...)
			// results become visible as each query completes
			resultID = trace.Upsert(resultID, blocks.SubStep{
				Type:    blocks.SubStepSearchResults,
				Queries: queries,
				Results: append([]turns.Chunk(nil), partial...),
			})
			return nil
		})
	}
	_ = g.Wait()

	if failures == len(queries) {
		return nil, errors.Wrap(lastErr, "all search queries failed")
	}
	return turns.FlattenChunks(perQuery...), nil
}

func newSearchAction(
	name, description string,
	intent turns.IntentName,
	requiresIntent bool,
	provider search.Provider,
	opts search.Options,
) Definition {
	return NewDefinition(name, description,
		func(ctx context.Context, in QueriesInput, ec ExecContext) (Output, error) {
			results, err := searchQueries(ctx, provider, in.Queries, opts, ec.Trace)
			if err != nil {
				return Output{}, err
			}
			return SearchResults(results), nil
		},
		WithIntent(intent, requiresIntent),
		WithKind(KindSearch),
	)
}

func NewWebSearch(provider search.Provider) Definition {
	return newSearchAction(ActionWebSearch,
		"Search the web. Give up to 3 short, keyword style queries that target different aspects of the question.",
		turns.IntentWebSearch, false, provider, search.Options{})
}

func NewAcademicSearch(provider search.Provider) Definition {
	return newSearchAction(ActionAcademicSearch,
		"Search scholarly sources (arXiv, Google Scholar, PubMed). Give up to 3 precise queries using domain terminology.",
		turns.IntentAcademicSearch, true, provider, search.Options{Engines: AcademicEngines})
}

func NewDiscussionSearch(provider search.Provider) Definition {
	return newSearchAction(ActionDiscussionSearch,
		"Search forums and discussions (Reddit) for opinions and first hand experiences. Give up to 3 queries.",
		turns.IntentDiscussionSearch, true, provider, search.Options{Engines: DiscussionEngines})
}
