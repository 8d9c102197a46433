package entities

import "errors"

// Errors returned by the structure and order services. Callers match them with errors.Is.
var (
	ErrItemNotFound          = errors.New("item not found")
	ErrItemNotManufactured   = errors.New("item is not manufactured")
	ErrOrderNotFound         = errors.New("production order not found")
	ErrOrderClosed           = errors.New("production order is closed")
	ErrOrderLineNotFound     = errors.New("production order line not found")
	ErrStructureEdgeNotFound = errors.New("structure edge not found")
	ErrStructureCycle        = errors.New("structure edge would create a cycle")
	ErrEffectivityOverlap    = errors.New("structure edge effectivity overlaps an existing edge")
	ErrInvalidQuantity       = errors.New("quantity must be positive")
)
