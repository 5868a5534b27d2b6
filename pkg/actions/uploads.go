package actions

import (
	"context"

	"github.com/go-go-golems/scout/pkg/blocks"
	"github.com/go-go-golems/scout/pkg/embeddings"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/go-go-golems/scout/pkg/uploads"
	"github.com/pkg/errors"
)

const (
	ActionUploadsSearch = "uploads_search"

	DefaultUploadTopK = 8
)

// MergeByURL folds chunks sharing a URL into the first occurrence, joining
// their content. Order of first occurrence is kept.
func MergeByURL(chunks []turns.Chunk) []turns.Chunk {
	index := map[string]int{}
	var out []turns.Chunk
	for _, c := range chunks {
		url := c.URL()
		if i, ok := index[url]; ok && url != "" {
			out[i].Content += "\n\n" + c.Content
			continue
		}
		index[url] = len(out)
		cp := turns.Chunk{Content: c.Content, Metadata: map[string]any{}}
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
		out = append(out, cp)
	}
	return out
}

func NewUploadsSearch(store uploads.Store, provider embeddings.Provider, topK int) Definition {
	if topK <= 0 {
		topK = DefaultUploadTopK
	}
	return NewDefinition(ActionUploadsSearch,
		"Search the files the user uploaded. Give up to 3 queries describing the information to find in them.",
		func(ctx context.Context, in QueriesInput, ec ExecContext) (Output, error) {
			queries := capQueries(in.Queries)
			if len(queries) == 0 {
				return Output{}, errors.New("no queries given")
			}
			ec.Trace.Append(blocks.SubStep{Type: blocks.SubStepUploadSearching, Queries: queries})

			files, err := uploads.LoadAll(ctx, store, ec.Config.FileIDs)
			if err != nil {
				return Output{}, err
			}
			vectors, err := provider.GenerateBatchEmbeddings(ctx, queries)
			if err != nil {
				return Output{}, errors.Wrap(err, "embed queries")
			}
			var found []turns.Chunk
			for _, v := range vectors {
				found = append(found, uploads.TopK(files, v, topK)...)
			}
			results := MergeByURL(found)

			ec.Trace.Append(blocks.SubStep{Type: blocks.SubStepUploadSearchResults, Queries: queries, Results: results})
			return SearchResults(results), nil
		},
		WithIntent(turns.IntentPrivateSearch, true),
		WithKind(KindSearch),
	)
}
