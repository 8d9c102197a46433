package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// EffectivityResolver handles effective-date filtering and history checks for structure edges
type EffectivityResolver struct{}

// NewEffectivityResolver creates a new effectivity resolver
func NewEffectivityResolver() *EffectivityResolver {
	return &EffectivityResolver{}
}

// ResolveEffectivity filters edges to those active on asOf, ordered by sequence then component
func (r *EffectivityResolver) ResolveEffectivity(asOf time.Time, edges []*entities.StructureEdge) []*entities.StructureEdge {
	effective := make([]*entities.StructureEdge, 0, len(edges))
	for _, edge := range edges {
		if edge.IsActive(asOf) {
			effective = append(effective, edge)
		}
	}
	sort.SliceStable(effective, func(i, j int) bool {
		if effective[i].Sequence != effective[j].Sequence {
			return effective[i].Sequence < effective[j].Sequence
		}
		return effective[i].Component < effective[j].Component
	})
	return effective
}

// Overlap describes two historical edges of the same key whose windows intersect
type Overlap struct {
	Key    entities.EdgeKey
	First  entities.EffectiveWindow
	Second entities.EffectiveWindow
}

func (o Overlap) String() string {
	return fmt.Sprintf("%s: [%s..%s] overlaps [%s..%s]", o.Key,
		o.First.From.Format(time.DateOnly), o.First.To.Format(time.DateOnly),
		o.Second.From.Format(time.DateOnly), o.Second.To.Format(time.DateOnly))
}

// FindOverlaps reports every pair of same-key edges with intersecting effective windows
func (r *EffectivityResolver) FindOverlaps(edges []*entities.StructureEdge) []Overlap {
	byKey := make(map[entities.EdgeKey][]entities.EffectiveWindow)
	var keys []entities.EdgeKey
	for _, edge := range edges {
		if _, ok := byKey[edge.Key()]; !ok {
			keys = append(keys, edge.Key())
		}
		byKey[edge.Key()] = append(byKey[edge.Key()], edge.Window)
	}

	var overlaps []Overlap
	for _, key := range keys {
		windows := byKey[key]
		for i := 0; i < len(windows); i++ {
			for j := i + 1; j < len(windows); j++ {
				if windows[i].Overlaps(windows[j]) {
					overlaps = append(overlaps, Overlap{Key: key, First: windows[i], Second: windows[j]})
				}
			}
		}
	}
	return overlaps
}

// CheckCandidate verifies a new edge does not overlap the existing history of its key
func (r *EffectivityResolver) CheckCandidate(existing []*entities.StructureEdge, candidate *entities.StructureEdge) error {
	for _, edge := range existing {
		if edge.Key() != candidate.Key() {
			continue
		}
		if edge.Window.Overlaps(candidate.Window) {
			return fmt.Errorf("%w: %s", entities.ErrEffectivityOverlap,
				Overlap{Key: edge.Key(), First: edge.Window, Second: candidate.Window})
		}
	}
	return nil
}
