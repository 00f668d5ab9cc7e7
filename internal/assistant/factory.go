package assistant

import (
	"fmt"

	"github.com/kiranshivaraju/rightsdesk/internal/catalog"
	"github.com/kiranshivaraju/rightsdesk/internal/config"
)

// NewResponder constructs the responder named by config.
// Called once at server startup.
func NewResponder(cfg config.AssistantConfig, cat *catalog.Catalog) (Responder, error) {
	switch cfg.Provider {
	case "template":
		if cat == nil {
			return nil, fmt.Errorf("template responder requires a catalog")
		}
		return NewTemplateResponder(cat.Apps()), nil
	default:
		return nil, fmt.Errorf("unknown assistant provider %q: must be template", cfg.Provider)
	}
}
