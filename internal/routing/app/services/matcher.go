package services

import (
	"strings"

	"order-router/internal/routing/domain/models"
)

// StoreIndex resolves an order's main store name to a store.
// Names compare case-insensitively and otherwise exactly: no trimming,
// no substring or fuzzy matching. For duplicate names the first store in
// input order wins.
type StoreIndex struct {
	byName map[string]models.Store
}

func NewStoreIndex(stores []models.Store) *StoreIndex {
	idx := &StoreIndex{byName: make(map[string]models.Store, len(stores))}
	for _, s := range stores {
		key := strings.ToLower(s.Name)
		if _, ok := idx.byName[key]; ok {
			continue
		}
		idx.byName[key] = s
	}
	return idx
}

func (idx *StoreIndex) Match(mainStoreName string) (models.Store, bool) {
	if mainStoreName == "" {
		return models.Store{}, false
	}
	s, ok := idx.byName[strings.ToLower(mainStoreName)]
	return s, ok
}

func (idx *StoreIndex) Len() int {
	return len(idx.byName)
}
