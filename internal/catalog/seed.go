package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
)

// Seed is the catalog file a master loads at startup.
//
//	ticket:
//	  org_name: Comunidade
//	  footer: Obrigado pela preferência!
//	products:
//	  - id: prod-agua
//	    name: Água 500ml
//	    price: 3
//	    category: Bebidas
type Seed struct {
	Ticket   models.TicketModel `yaml:"ticket"`
	Products []models.Product   `yaml:"products"`
}

// LoadSeed reads and validates a catalog file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	seen := make(map[string]bool, len(seed.Products))
	for i, p := range seed.Products {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("catalog product %d: id and name are required", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("catalog product %d: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
	}
	return &seed, nil
}

// ReloadSeed re-reads the catalog file and replaces the product list with it.
// A file that fails to load leaves the catalog untouched.
func (c *Catalog) ReloadSeed(ctx context.Context, path string) (models.ProductSnapshot, error) {
	seed, err := LoadSeed(path)
	if err != nil {
		return models.ProductSnapshot{}, err
	}
	return c.Replace(ctx, seed.Products)
}
