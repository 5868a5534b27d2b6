package turns

import "fmt"

const (
	MetadataTitle = "title"
	MetadataURL   = "url"
)

// Chunk is one piece of retrieved evidence. Its metadata always carries enough
// information (title, url) to be cited.
type Chunk struct {
	Content  string         `json:"content" yaml:"content"`
	Metadata map[string]any `json:"metadata" yaml:"metadata"`
}

func NewChunk(content, title, url string) Chunk {
	return Chunk{
		Content: content,
		Metadata: map[string]any{
			MetadataTitle: title,
			MetadataURL:   url,
		},
	}
}

func (c Chunk) Title() string {
	return c.metadataString(MetadataTitle)
}

func (c Chunk) URL() string {
	return c.metadataString(MetadataURL)
}

func (c Chunk) metadataString(key string) string {
	if c.Metadata == nil {
		return ""
	}
	switch v := c.Metadata[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FlattenChunks concatenates several result lists preserving order.
func FlattenChunks(lists ...[]Chunk) []Chunk {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	out := make([]Chunk, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
