package uploads

import (
	"context"
	"strings"

	"github.com/go-go-golems/scout/pkg/embeddings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

const (
	DefaultChunkTokens   = 512
	DefaultOverlapTokens = 64
)

// Indexer splits text into token windows, embeds them and stores the file.
type Indexer struct {
	store         Store
	provider      embeddings.Provider
	codec         tokenizer.Codec
	chunkTokens   int
	overlapTokens int
}

type IndexerOption func(*Indexer)

func WithChunkTokens(n int) IndexerOption {
	return func(i *Indexer) {
		i.chunkTokens = n
	}
}

func WithOverlapTokens(n int) IndexerOption {
	return func(i *Indexer) {
		i.overlapTokens = n
	}
}

func NewIndexer(store Store, provider embeddings.Provider, options ...IndexerOption) (*Indexer, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, errors.Wrap(err, "load tokenizer")
	}
	i := &Indexer{
		store:         store,
		provider:      provider,
		codec:         codec,
		chunkTokens:   DefaultChunkTokens,
		overlapTokens: DefaultOverlapTokens,
	}
	for _, o := range options {
		o(i)
	}
	if i.chunkTokens <= 0 {
		return nil, errors.Errorf("chunk size must be positive, got %d", i.chunkTokens)
	}
	if i.overlapTokens < 0 || i.overlapTokens >= i.chunkTokens {
		i.overlapTokens = 0
	}
	return i, nil
}

// Split cuts text into windows of at most chunkTokens tokens. Consecutive
// windows share overlapTokens tokens.
func (i *Indexer) Split(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	ids, _, err := i.codec.Encode(text)
	if err != nil {
		return nil, errors.Wrap(err, "encode text")
	}
	step := i.chunkTokens - i.overlapTokens
	var out []string
	for start := 0; start < len(ids); start += step {
		end := start + i.chunkTokens
		if end > len(ids) {
			end = len(ids)
		}
		s, err := i.codec.Decode(ids[start:end])
		if err != nil {
			return nil, errors.Wrap(err, "decode window")
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if end == len(ids) {
			break
		}
	}
	return out, nil
}

func (i *Indexer) Index(ctx context.Context, id, title, text string) (File, error) {
	contents, err := i.Split(text)
	if err != nil {
		return File{}, err
	}
	if len(contents) == 0 {
		return File{}, errors.Errorf("upload %s has no text", id)
	}
	vectors, err := i.provider.GenerateBatchEmbeddings(ctx, contents)
	if err != nil {
		return File{}, errors.Wrapf(err, "embed upload %s", id)
	}
	if len(vectors) != len(contents) {
		return File{}, errors.Errorf("embedding provider returned %d vectors for %d chunks", len(vectors), len(contents))
	}
	f := File{ID: id, Title: title, Contents: contents, Embeddings: vectors}
	if err := i.store.Put(ctx, f); err != nil {
		return File{}, err
	}
	log.Info().Str("upload", id).Int("chunks", len(contents)).Msg("indexed upload")
	return f, nil
}
