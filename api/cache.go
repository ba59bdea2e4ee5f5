package api

import (
	"sync"

	"boohill-ingest/models"
)

// previewCache holds previews between the preview and apply calls. Once
// full, the oldest preview is evicted.
type previewCache struct {
	mu    sync.Mutex
	max   int
	order []string
	items map[string]*models.ImportPreview
}

func newPreviewCache(max int) *previewCache {
	if max < 1 {
		max = 1
	}
	return &previewCache{max: max, items: make(map[string]*models.ImportPreview)}
}

func (c *previewCache) put(p *models.ImportPreview) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[p.RunID]; !ok {
		c.order = append(c.order, p.RunID)
	}
	c.items[p.RunID] = p

	for len(c.order) > c.max {
		delete(c.items, c.order[0])
		c.order = c.order[1:]
	}
}

// take removes and returns the preview for runID. A preview is applied at
// most once.
func (c *previewCache) take(runID string) (*models.ImportPreview, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.items[runID]
	if !ok {
		return nil, false
	}
	delete(c.items, runID)
	for i, id := range c.order {
		if id == runID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return p, true
}

func (c *previewCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
