package queries

import (
	"context"

	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/samber/lo"
)

// ListPlansHandler returns the catalog.
type ListPlansHandler struct {
	catalog *domain.Catalog
}

// NewListPlansHandler creates a new ListPlansHandler.
func NewListPlansHandler(catalog *domain.Catalog) *ListPlansHandler {
	return &ListPlansHandler{catalog: catalog}
}

// Handle returns every plan ordered by rank.
func (h *ListPlansHandler) Handle(_ context.Context) []PlanDTO {
	return lo.Map(h.catalog.All(), func(p domain.Plan, _ int) PlanDTO {
		return ToPlanDTO(p)
	})
}
