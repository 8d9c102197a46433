// Package structure maintains structure edges and their effectivity history.
package structure

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/repositories"
	"github.com/vsinha/shopfloor/pkg/domain/services"
	"github.com/vsinha/shopfloor/pkg/infrastructure/events"
)

// Service validates structure changes before writing them. Writes from one
// Service are serialized so concurrent additions cannot jointly form a cycle.
type Service struct {
	items       repositories.ItemRepository
	structure   repositories.StructureWriter
	validator   *services.StructureValidator
	effectivity *services.EffectivityResolver
	publisher   events.Publisher
	logger      *zap.Logger

	writeMu sync.Mutex
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

func NewService(items repositories.ItemRepository, structure repositories.StructureWriter, opts ...Option) *Service {
	s := &Service{
		items:       items,
		structure:   structure,
		validator:   services.NewStructureValidator(),
		effectivity: services.NewEffectivityResolver(),
		publisher:   events.NopPublisher{},
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// itemLookup resolves a part number to its item or entities.ErrItemNotFound
type itemLookup func(ctx context.Context, partNumber entities.PartNumber) (*entities.Item, error)

// AddEdge stores a new edge after checking that both items exist, the parent is
// manufactured, the window does not overlap the key's history and no cycle forms
// with the edges whose windows overlap the new one.
func (s *Service) AddEdge(ctx context.Context, edge *entities.StructureEdge) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	all, err := s.structure.AllEdges(ctx)
	if err != nil {
		return fmt.Errorf("load structure: %w", err)
	}
	if err := s.checkEdge(ctx, s.items.GetItem, all, edge); err != nil {
		return err
	}
	return s.save(ctx, edge)
}

// CheckEdges validates edges as if they were added one after another, treating
// pending as items that will exist by then. Nothing is written.
func (s *Service) CheckEdges(ctx context.Context, edges []*entities.StructureEdge, pending []*entities.Item) error {
	known := make(map[entities.PartNumber]*entities.Item, len(pending))
	for _, item := range pending {
		known[item.PartNumber] = item
	}
	lookup := func(ctx context.Context, pn entities.PartNumber) (*entities.Item, error) {
		if item, ok := known[pn]; ok {
			return item, nil
		}
		return s.items.GetItem(ctx, pn)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.checkBatch(ctx, lookup, edges)
}

// AddEdges checks the whole batch before writing any of it and returns how many
// edges were stored. A storage failure part way reports the count already written.
func (s *Service) AddEdges(ctx context.Context, edges []*entities.StructureEdge) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.checkBatch(ctx, s.items.GetItem, edges); err != nil {
		return 0, err
	}
	for i, edge := range edges {
		if err := s.save(ctx, edge); err != nil {
			return i, fmt.Errorf("after %d of %d edges: %w", i, len(edges), err)
		}
	}
	return len(edges), nil
}

func (s *Service) checkBatch(ctx context.Context, lookup itemLookup, edges []*entities.StructureEdge) error {
	all, err := s.structure.AllEdges(ctx)
	if err != nil {
		return fmt.Errorf("load structure: %w", err)
	}
	for i, edge := range edges {
		if err := s.checkEdge(ctx, lookup, all, edge); err != nil {
			return fmt.Errorf("edge %d (%s): %w", i+1, edge.Key(), err)
		}
		all = append(all, edge)
	}
	return nil
}

// checkEdge validates edge against existing, the structure it would join
func (s *Service) checkEdge(
	ctx context.Context,
	lookup itemLookup,
	existing []*entities.StructureEdge,
	edge *entities.StructureEdge,
) error {
	if edge.Parent == edge.Component {
		return fmt.Errorf("%w: %s references itself", entities.ErrStructureCycle, edge.Parent)
	}
	parent, err := lookup(ctx, edge.Parent)
	if err != nil {
		return err
	}
	if !parent.IsManufactured() {
		return fmt.Errorf("%w: %s", entities.ErrItemNotManufactured, edge.Parent)
	}
	if _, err := lookup(ctx, edge.Component); err != nil {
		return err
	}

	key := edge.Key()
	var history []*entities.StructureEdge
	for _, e := range existing {
		if e.Key() == key {
			history = append(history, e)
		}
	}
	if err := s.effectivity.CheckCandidate(history, edge); err != nil {
		return err
	}
	if path, cyclic := s.validator.WouldCreateCycle(existing, edge); cyclic {
		return fmt.Errorf("%w: %v", entities.ErrStructureCycle, path)
	}
	return nil
}

func (s *Service) save(ctx context.Context, edge *entities.StructureEdge) error {
	if err := s.structure.SaveEdge(ctx, edge); err != nil {
		return fmt.Errorf("save edge %s: %w", edge.Key(), err)
	}

	s.logger.Info("structure edge added",
		zap.String("parent", string(edge.Parent)),
		zap.String("component", string(edge.Component)),
		zap.String("qty_per", edge.QtyPer.String()),
		zap.Time("effective_from", edge.Window.From))
	if err := s.publisher.Publish(ctx, events.NewStructureEdgeCreatedEvent(*edge)); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("event_type", events.StructureEdgeCreatedEvent),
			zap.Error(err))
	}
	return nil
}

// GetEdge returns the edge of key active on asOf
func (s *Service) GetEdge(ctx context.Context, key entities.EdgeKey, asOf time.Time) (*entities.StructureEdge, error) {
	history, err := s.structure.EdgesBetween(ctx, key)
	if err != nil {
		return nil, err
	}
	active := s.effectivity.ResolveEffectivity(asOf, history)
	if len(active) == 0 {
		return nil, fmt.Errorf("%w: %s on %s", entities.ErrStructureEdgeNotFound, key, asOf.Format(time.DateOnly))
	}
	return active[0], nil
}

// History returns every edge ever recorded for key, oldest first
func (s *Service) History(ctx context.Context, key entities.EdgeKey) ([]*entities.StructureEdge, error) {
	history, err := s.structure.EdgesBetween(ctx, key)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Window.From.Before(history[j].Window.From)
	})
	return history, nil
}

// RemoveEdge deletes the edge of key that starts on effectiveFrom
func (s *Service) RemoveEdge(ctx context.Context, key entities.EdgeKey, effectiveFrom time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.structure.DeleteEdge(ctx, key, entities.DateOf(effectiveFrom)); err != nil {
		return err
	}
	s.logger.Info("structure edge removed",
		zap.String("parent", string(key.Parent)),
		zap.String("component", string(key.Component)),
		zap.Time("effective_from", effectiveFrom))
	return nil
}

// Validate reports cycles among the edges active on asOf, overlapping windows and
// edges that reference unknown or non-manufactured items
func (s *Service) Validate(ctx context.Context, asOf time.Time) (*services.ValidationResult, error) {
	edges, err := s.structure.AllEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("load structure: %w", err)
	}
	items, err := s.items.GetAllItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	result := s.validator.ValidateStructure(edges, asOf)
	consistency := s.validator.ValidateItemConsistency(edges, items)
	result.OrphanedParts = append(result.OrphanedParts, consistency.OrphanedParts...)
	result.Errors = append(result.Errors, consistency.Errors...)
	return result, nil
}
