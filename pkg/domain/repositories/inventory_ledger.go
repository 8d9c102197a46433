package repositories

import (
	"context"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// InventoryLedger records signed stock movements
type InventoryLedger interface {
	PostMovement(ctx context.Context, movement entities.StockMovement) error
	MovementsFor(ctx context.Context, reference string) ([]entities.StockMovement, error)
}
