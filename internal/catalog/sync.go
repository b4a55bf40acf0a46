package catalog

import (
	"context"
	"fmt"
	"log"

	"leadfunnel/internal/models"
)

// RemoteTemplate is a template as reported by the provider.
type RemoteTemplate struct {
	ID       string
	Name     string
	Language string
	Category string
	Status   string
	Body     string
	Buttons  []string
}

// Lister returns the provider's templates.
type Lister interface {
	ListTemplates(ctx context.Context) ([]RemoteTemplate, error)
}

// Sync pulls approved templates from the provider into the catalog.
func (c *Catalog) Sync(ctx context.Context, src Lister) (int, error) {
	remote, err := src.ListTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("list provider templates: %w", err)
	}
	synced := 0
	for _, rt := range remote {
		if rt.Status != "" && rt.Status != "APPROVED" {
			continue
		}
		t := models.Template{
			Name:     rt.Name,
			Language: rt.Language,
			Category: rt.Category,
			Status:   rt.Status,
			Body:     rt.Body,
			Buttons:  EncodeButtons(rt.Buttons),
			MetaID:   rt.ID,
		}
		if err := c.Upsert(ctx, &t); err != nil {
			log.Printf("[Catalog] failed to sync template %s: %v", rt.Name, err)
			continue
		}
		synced++
	}
	return synced, nil
}
