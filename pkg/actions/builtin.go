package actions

import (
	"github.com/go-go-golems/scout/pkg/embeddings"
	"github.com/go-go-golems/scout/pkg/intents"
	"github.com/go-go-golems/scout/pkg/search"
	"github.com/go-go-golems/scout/pkg/uploads"
)

// Dependencies are the backends of the built-in actions. Actions whose
// backend is nil are not registered.
type Dependencies struct {
	Search     search.Provider
	Uploads    uploads.Store
	Embeddings embeddings.Provider
	Scraper    *Scraper
	UploadTopK int
}

func NewBuiltinRegistry(intentRegistry *intents.Registry, deps Dependencies) (*Registry, error) {
	r := NewRegistry(intentRegistry)
	defs := []Definition{}
	if deps.Search != nil {
		defs = append(defs,
			NewWebSearch(deps.Search),
			NewAcademicSearch(deps.Search),
			NewDiscussionSearch(deps.Search),
		)
	}
	if deps.Uploads != nil && deps.Embeddings != nil {
		defs = append(defs, NewUploadsSearch(deps.Uploads, deps.Embeddings, deps.UploadTopK))
	}
	if deps.Scraper != nil {
		defs = append(defs, NewScrapeURL(deps.Scraper))
	}
	defs = append(defs, NewPlan(), NewDone())
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}
