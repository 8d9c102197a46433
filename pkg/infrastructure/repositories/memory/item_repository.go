package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// LoadItems loads items into the store, rejecting the whole batch on duplicate part numbers
func (s *Store) LoadItems(items []*entities.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[entities.PartNumber]bool, len(items))
	var duplicates []string
	for _, item := range items {
		_, exists := s.itemsMap[item.PartNumber]
		if seen[item.PartNumber] || exists {
			duplicates = append(duplicates, string(item.PartNumber))
		}
		seen[item.PartNumber] = true
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		return fmt.Errorf("duplicate part numbers found: %s", strings.Join(duplicates, ", "))
	}

	for _, item := range items {
		s.addItem(*item)
	}
	return nil
}

func (s *Store) addItem(item entities.Item) {
	s.itemsMap[item.PartNumber] = len(s.items)
	s.items = append(s.items, item)
}

// GetItem returns a copy of the item master data for a part number
func (s *Store) GetItem(_ context.Context, partNumber entities.PartNumber) (*entities.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, exists := s.itemsMap[partNumber]
	if !exists {
		return nil, fmt.Errorf("%w: %s", entities.ErrItemNotFound, partNumber)
	}
	item := s.items[index]
	return &item, nil
}

// GetAllItems returns all items in insertion order
func (s *Store) GetAllItems(_ context.Context) ([]*entities.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*entities.Item, 0, len(s.items))
	for i := range s.items {
		item := s.items[i]
		items = append(items, &item)
	}
	return items, nil
}

// SaveItem adds a new item; part numbers are unique
func (s *Store) SaveItem(_ context.Context, item *entities.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.itemsMap[item.PartNumber]; exists {
		return fmt.Errorf("duplicate part number: %s", item.PartNumber)
	}
	s.addItem(*item)
	return nil
}

// ItemInfo returns the planning projection of an item
func (s *Store) ItemInfo(_ context.Context, partNumber entities.PartNumber) (entities.ItemInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, exists := s.itemsMap[partNumber]
	if !exists {
		return entities.ItemInfo{PartNumber: partNumber}, fmt.Errorf("%w: %s", entities.ErrItemNotFound, partNumber)
	}
	return s.items[index].Info(), nil
}
