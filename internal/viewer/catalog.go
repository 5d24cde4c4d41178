package viewer

import (
	"sort"
	"time"

	"meditation/internal/model"
)

// EmptyCatalogMessage is shown when no programs exist.
const EmptyCatalogMessage = "no programs"

type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PageCount   int       `json:"pageCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Catalog struct {
	Programs []Summary `json:"programs"`
	Empty    string    `json:"empty,omitempty"`
}

// NewCatalog lists programs oldest first.
func NewCatalog(programs []model.Program) Catalog {
	out := make([]Summary, 0, len(programs))
	for _, p := range programs {
		out = append(out, Summary{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			PageCount:   len(p.Pages),
			CreatedAt:   p.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	c := Catalog{Programs: out}
	if len(out) == 0 {
		c.Empty = EmptyCatalogMessage
	}
	return c
}
