// Package uploads holds the personal file corpus searched by uploads_search.
// Each file is stored pre-split and pre-embedded.
package uploads

import (
	"context"
	"sort"

	"github.com/go-go-golems/scout/pkg/embeddings"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("upload not found")

const MetadataFileID = "fileId"

// File is one indexed upload. Contents and Embeddings are index aligned.
type File struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Contents   []string    `json:"contents"`
	Embeddings [][]float32 `json:"embeddings"`
}

func (f File) URL() string {
	return "upload://" + f.ID
}

func (f File) chunk(i int) turns.Chunk {
	c := turns.NewChunk(f.Contents[i], f.Title, f.URL())
	c.Metadata[MetadataFileID] = f.ID
	return c
}

// Chunks returns every content window of the file as a citable chunk.
func (f File) Chunks() []turns.Chunk {
	out := make([]turns.Chunk, 0, len(f.Contents))
	for i := range f.Contents {
		out = append(out, f.chunk(i))
	}
	return out
}

type Store interface {
	Get(ctx context.Context, id string) (File, error)
	Put(ctx context.Context, f File) error
	List(ctx context.Context) ([]File, error)
}

// LoadAll fetches the files with the given ids.
func LoadAll(ctx context.Context, s Store, ids []string) ([]File, error) {
	out := make([]File, 0, len(ids))
	for _, id := range ids {
		f, err := s.Get(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "load upload %s", id)
		}
		out = append(out, f)
	}
	return out, nil
}

type scored struct {
	chunk turns.Chunk
	score float64
}

// TopK ranks every content window of files by cosine similarity to query and
// returns the best k.
func TopK(files []File, query []float32, k int) []turns.Chunk {
	var all []scored
	for _, f := range files {
		for i := range f.Contents {
			if i >= len(f.Embeddings) {
				break
			}
			all = append(all, scored{chunk: f.chunk(i), score: embeddings.CosineSimilarity(query, f.Embeddings[i])})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].score > all[j].score
	})
	if k > 0 && len(all) > k {
		all = all[:k]
	}
	out := make([]turns.Chunk, 0, len(all))
	for _, s := range all {
		out = append(out, s.chunk)
	}
	return out
}
