// Package planning derives the component requirement lines of a production order.
package planning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/repositories"
)

// Planner builds order lines from the direct structure of a manufactured item
type Planner struct {
	structure repositories.StructureRepository
}

func NewPlanner(structure repositories.StructureRepository) *Planner {
	return &Planner{structure: structure}
}

// PlanLines returns one component line per direct component of top active on asOf,
// in sequence order, requiring QtyPer x quantity. A component listed on more than
// one active edge gets a single line carrying the summed requirement.
func (p *Planner) PlanLines(
	ctx context.Context,
	top entities.PartNumber,
	quantity decimal.Decimal,
	asOf time.Time,
) ([]entities.OrderLine, error) {
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w, got %s", entities.ErrInvalidQuantity, quantity)
	}

	info, err := p.structure.ItemInfo(ctx, top)
	if err != nil {
		return nil, err
	}
	if !info.Manufactured {
		return nil, fmt.Errorf("%w: %s", entities.ErrItemNotManufactured, top)
	}

	edges, err := p.structure.ActiveEdgesOf(ctx, top, asOf)
	if err != nil {
		return nil, fmt.Errorf("load structure of %s: %w", top, err)
	}
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Sequence != edges[j].Sequence {
			return edges[i].Sequence < edges[j].Sequence
		}
		return edges[i].Component < edges[j].Component
	})

	index := make(map[entities.PartNumber]int, len(edges))
	lines := make([]entities.OrderLine, 0, len(edges))
	for _, edge := range edges {
		if i, ok := index[edge.Component]; ok {
			lines[i].QtyPer = lines[i].QtyPer.Add(edge.QtyPer)
			lines[i].Required = lines[i].Required.Add(edge.QtyPer.Mul(quantity))
			lines[i].AutoIssue = lines[i].AutoIssue || edge.AutoIssue
			continue
		}

		cost, err := p.standardCost(ctx, edge.Component)
		if err != nil {
			return nil, err
		}
		index[edge.Component] = len(lines)
		lines = append(lines, entities.OrderLine{
			PartNumber:   edge.Component,
			Kind:         entities.ComponentLine,
			QtyPer:       edge.QtyPer,
			AutoIssue:    edge.AutoIssue,
			Required:     edge.QtyPer.Mul(quantity),
			Issued:       decimal.Zero,
			Received:     decimal.Zero,
			StandardCost: cost,
		})
	}
	return lines, nil
}

// standardCost is zero for a component missing from the item master
func (p *Planner) standardCost(ctx context.Context, component entities.PartNumber) (decimal.Decimal, error) {
	info, err := p.structure.ItemInfo(ctx, component)
	if errors.Is(err, entities.ErrItemNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("load item %s: %w", component, err)
	}
	return info.Cost, nil
}
