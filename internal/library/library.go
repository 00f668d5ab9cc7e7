// Package library holds a session's classified assets in insertion order.
package library

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

var (
	ErrDuplicateAsset = errors.New("asset already in library")
	ErrUnclassified   = errors.New("asset is not classified")
)

// Library is the owner of completed assets. Entries are never edited once added;
// re-analysis adds a superseding asset instead.
type Library struct {
	mu     sync.RWMutex
	order  []uuid.UUID
	assets map[uuid.UUID]models.Asset
}

// New creates a library pre-populated with seed assets.
func New(seed ...models.Asset) *Library {
	l := &Library{assets: make(map[uuid.UUID]models.Asset, len(seed))}
	for _, a := range seed {
		if _, dup := l.assets[a.ID]; dup {
			continue
		}
		l.order = append(l.order, a.ID)
		l.assets[a.ID] = a
	}
	return l
}

// Add appends a classified asset.
func (l *Library) Add(a models.Asset) error {
	if !a.Classified() {
		return fmt.Errorf("add asset %s: %w", a.ID, ErrUnclassified)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.assets[a.ID]; dup {
		return fmt.Errorf("add asset %s: %w", a.ID, ErrDuplicateAsset)
	}
	l.order = append(l.order, a.ID)
	l.assets[a.ID] = a
	return nil
}

func (l *Library) Get(id uuid.UUID) (models.Asset, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.assets[id]
	return a, ok
}

// List returns the assets in the order they were added.
func (l *Library) List() []models.Asset {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Asset, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.assets[id])
	}
	return out
}

func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}
