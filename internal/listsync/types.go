package listsync

import (
	"github.com/Mutter0815/ListSync/internal/audience"
	"github.com/Mutter0815/ListSync/pkg/model"
)

type CreateSegmentReq struct {
	Kind       string `json:"kind" binding:"required"`
	Name       string `json:"name"`
	EntityID   int64  `json:"entity_id"`
	EntityType string `json:"entity_type"`
	Keyword    string `json:"searched_keyword"`
}

func (r CreateSegmentReq) Payload() model.ListGeneration {
	return model.ListGeneration{
		Kind:   r.Kind,
		Name:   r.Name,
		Entity: model.Entity{ID: r.EntityID, Type: r.EntityType, Keyword: r.Keyword},
	}
}

// Validate runs the scope checks Generate applies, so bad requests are
// rejected before a task is queued.
func (r CreateSegmentReq) Validate() error {
	return audience.ValidateScope(audience.Kind(r.Kind), audience.Entity{ID: r.EntityID, Type: r.EntityType, Keyword: r.Keyword})
}

type UpdateSegmentReq struct {
	Active *bool `json:"active" binding:"required"`
}
