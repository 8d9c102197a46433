package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// LoadEdges loads structure edges into the store without validation
func (s *Store) LoadEdges(edges []*entities.StructureEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, edge := range edges {
		s.addEdge(*edge)
	}
	return nil
}

func (s *Store) addEdge(edge entities.StructureEdge) {
	index := len(s.edges)
	s.edges = append(s.edges, edge)
	s.edgeIndex[edge.Parent] = append(s.edgeIndex[edge.Parent], index)
}

// ActiveEdgesOf returns copies of the edges of parent that are effective on asOf
func (s *Store) ActiveEdgesOf(_ context.Context, parent entities.PartNumber, asOf time.Time) ([]*entities.StructureEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	indexes := s.edgeIndex[parent]
	active := make([]*entities.StructureEdge, 0, len(indexes))
	for _, index := range indexes {
		edge := s.edges[index]
		if edge.IsActive(asOf) {
			active = append(active, &edge)
		}
	}
	return active, nil
}

// EdgesBetween returns the full effectivity history of one parent/component key
func (s *Store) EdgesBetween(_ context.Context, key entities.EdgeKey) ([]*entities.StructureEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var history []*entities.StructureEdge
	for _, index := range s.edgeIndex[key.Parent] {
		edge := s.edges[index]
		if edge.Component == key.Component {
			history = append(history, &edge)
		}
	}
	return history, nil
}

// AllEdges returns every stored edge
func (s *Store) AllEdges(_ context.Context) ([]*entities.StructureEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := make([]*entities.StructureEdge, 0, len(s.edges))
	for i := range s.edges {
		edge := s.edges[i]
		edges = append(edges, &edge)
	}
	return edges, nil
}

// SaveEdge stores an edge, replacing one with the same key and effective-from date
func (s *Store) SaveEdge(_ context.Context, edge *entities.StructureEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, index := range s.edgeIndex[edge.Parent] {
		existing := s.edges[index]
		if existing.Component == edge.Component && existing.Window.From.Equal(edge.Window.From) {
			s.edges[index] = *edge
			return nil
		}
	}
	s.addEdge(*edge)
	return nil
}

// DeleteEdge removes the edge of key that starts on effectiveFrom
func (s *Store) DeleteEdge(_ context.Context, key entities.EdgeKey, effectiveFrom time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := entities.DateOf(effectiveFrom)
	target := -1
	for i, edge := range s.edges {
		if edge.Key() == key && edge.Window.From.Equal(from) {
			target = i
			break
		}
	}
	if target < 0 {
		return fmt.Errorf("%w: %s from %s", entities.ErrStructureEdgeNotFound, key, from.Format(time.DateOnly))
	}

	s.edges = append(s.edges[:target], s.edges[target+1:]...)
	s.edgeIndex = make(map[entities.PartNumber][]int, len(s.edgeIndex))
	for i, edge := range s.edges {
		s.edgeIndex[edge.Parent] = append(s.edgeIndex[edge.Parent], i)
	}
	return nil
}
