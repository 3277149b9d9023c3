package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-image/pkg/simpleimage"
)

// Catalog implements simpleimage.Catalog using in-memory storage
type Catalog struct {
	mu     sync.RWMutex
	images map[string]*simpleimage.Image
	now    func() time.Time
}

// New creates a new in-memory catalog
func New() *Catalog {
	return &Catalog{
		images: make(map[string]*simpleimage.Image),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (c *Catalog) Create(ctx context.Context, img *simpleimage.Image) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	now := c.now()
	if img.CreatedAt.IsZero() {
		img.CreatedAt = now
	}
	img.UpdatedAt = now
	img.Version = 1

	// Store a copy to avoid external modifications
	c.images[img.ID] = img.Clone()
	return img.ID, nil
}

func (c *Catalog) Read(ctx context.Context, id string) (*simpleimage.Image, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	img, exists := c.images[id]
	if !exists {
		return nil, simpleimage.ErrImageNotFound
	}
	return img.Clone(), nil
}

func (c *Catalog) Update(ctx context.Context, img *simpleimage.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored, exists := c.images[img.ID]
	if !exists {
		return simpleimage.ErrImageNotFound
	}
	if stored.Version != img.Version {
		return simpleimage.ErrVersionConflict
	}

	img.Version++
	img.UpdatedAt = c.now()
	c.images[img.ID] = img.Clone()
	return nil
}

func (c *Catalog) Delete(ctx context.Context, img *simpleimage.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.images[img.ID]; !exists {
		return simpleimage.ErrImageNotFound
	}
	delete(c.images, img.ID)
	return nil
}

// Len returns the number of records
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}
