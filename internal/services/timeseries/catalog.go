package timeseries

import (
	"fmt"
	"sort"
	"sync"

	"FinSeries/internal/domain/models"
)

// Catalog is the registry of series definitions.
type Catalog struct {
	mu     sync.RWMutex
	series map[string]models.SeriesDefinition
}

func NewCatalog() *Catalog {
	return &Catalog{series: make(map[string]models.SeriesDefinition)}
}

// Create normalizes, validates and registers def. It returns the stored copy.
func (c *Catalog) Create(def models.SeriesDefinition) (models.SeriesDefinition, error) {
	def = def.Normalize()
	if err := def.Validate(); err != nil {
		return models.SeriesDefinition{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.series[def.SeriesID]; ok {
		return models.SeriesDefinition{}, fmt.Errorf("%w: %s", models.ErrDuplicateSeries, def.SeriesID)
	}
	c.series[def.SeriesID] = def
	return def.Normalize(), nil
}

// Remove deletes the definition of id.
func (c *Catalog) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.series[id]; !ok {
		return fmt.Errorf("%w: %s", models.ErrSeriesNotFound, id)
	}
	delete(c.series, id)
	return nil
}

// Get returns a copy of the definition of id.
func (c *Catalog) Get(id string) (models.SeriesDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.series[id]
	if !ok {
		return models.SeriesDefinition{}, false
	}
	return def.Normalize(), true
}

func (c *Catalog) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.series[id]
	return ok
}

// IDs returns the registered ids in ascending order.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	ids := make([]string, 0, len(c.series))
	for id := range c.series {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
