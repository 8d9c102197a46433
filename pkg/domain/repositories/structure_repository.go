package repositories

import (
	"context"
	"time"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// StructureRepository provides read-only access to structure edges and item metadata.
// Implementations return an empty slice, not an error, for a parent without active edges.
type StructureRepository interface {
	// ActiveEdgesOf returns the edges of parent whose effective window contains asOf.
	ActiveEdgesOf(ctx context.Context, parent entities.PartNumber, asOf time.Time) ([]*entities.StructureEdge, error)

	// ItemInfo returns the planning projection of an item, or entities.ErrItemNotFound.
	ItemInfo(ctx context.Context, partNumber entities.PartNumber) (entities.ItemInfo, error)
}

// StructureWriter maintains structure edges including their effectivity history
type StructureWriter interface {
	StructureRepository

	// EdgesBetween returns every historical edge for the (parent, component) key.
	EdgesBetween(ctx context.Context, key entities.EdgeKey) ([]*entities.StructureEdge, error)
	AllEdges(ctx context.Context) ([]*entities.StructureEdge, error)
	SaveEdge(ctx context.Context, edge *entities.StructureEdge) error

	// DeleteEdge removes the edge of key starting on effectiveFrom, or returns
	// entities.ErrStructureEdgeNotFound.
	DeleteEdge(ctx context.Context, key entities.EdgeKey, effectiveFrom time.Time) error
}
