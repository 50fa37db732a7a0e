package application

import "github.com/atvirokodosprendimai/urllink/internal/domain"

// EntityView is the wire shape shared by the HTTP and JSON-RPC surfaces
// and decoded by the CLI.
type EntityView struct {
	ID             uint              `json:"id"`
	Kind           string            `json:"kind"`
	Slug           string            `json:"slug"`
	CurrentPath    string            `json:"current_path"`
	URL            string            `json:"url"`
	Attributes     map[string]string `json:"attributes"`
	OldPaths       []string          `json:"old_paths"`
	ExtraRedirects []string          `json:"extra_redirects"`
}

func (s *LinkService) View(e domain.Entity) EntityView {
	return EntityView{
		ID:             e.ID,
		Kind:           e.Kind,
		Slug:           e.Slug,
		CurrentPath:    e.CurrentPath,
		URL:            s.CanonicalURL(e.CurrentPath),
		Attributes:     e.Attributes,
		OldPaths:       e.OldPaths,
		ExtraRedirects: e.ExtraRedirects,
	}
}
