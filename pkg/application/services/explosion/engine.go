// Package explosion expands a manufactured item into its multi-level structure.
package explosion

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/repositories"
	"github.com/vsinha/shopfloor/pkg/infrastructure/metrics"
)

// Engine performs breadth-first structure explosions. It holds no traversal
// state between calls and is safe for concurrent use.
type Engine struct {
	structure repositories.StructureRepository
	logger    *zap.Logger
	metrics   metrics.Recorder
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(recorder metrics.Recorder) Option {
	return func(e *Engine) {
		if recorder != nil {
			e.metrics = recorder
		}
	}
}

// NewEngine creates an explosion engine reading from structure
func NewEngine(structure repositories.StructureRepository, opts ...Option) *Engine {
	e := &Engine{
		structure: structure,
		logger:    zap.NewNop(),
		metrics:   metrics.NoOpRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// frontierNode is a component introduced at the previous level
type frontierNode struct {
	part     entities.PartNumber
	extended decimal.Decimal
}

// Explode returns every active edge reachable from top, one row per edge, grouped
// by level and ordered by (parent, sequence, component) within a level.
//
// A (parent, component) pair is emitted at most once per call, at the first level
// that reaches it, so traversal terminates even when the active edges contain a
// cycle. Rows are per occurrence; use Summarize for totals. An unknown item or an
// item without active edges yields an empty result.
func (e *Engine) Explode(ctx context.Context, top entities.PartNumber, asOf time.Time) (rows []entities.ExplosionRow, err error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordExplosion(time.Since(start), len(rows), err)
	}()

	visited := make(map[entities.EdgeKey]struct{})
	frontier := []frontierNode{{part: top, extended: decimal.NewFromInt(1)}}
	rows = make([]entities.ExplosionRow, 0)

	for level := 1; len(frontier) > 0; level++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var levelRows []entities.ExplosionRow
		for _, node := range frontier {
			edges, err := e.structure.ActiveEdgesOf(ctx, node.part, asOf)
			if err != nil {
				return nil, fmt.Errorf("explode %s at level %d: %w", top, level, err)
			}
			for _, edge := range edges {
				key := edge.Key()
				if _, seen := visited[key]; seen {
					continue
				}
				visited[key] = struct{}{}
				levelRows = append(levelRows, entities.ExplosionRow{
					Level:       level,
					Parent:      edge.Parent,
					Component:   edge.Component,
					QtyPer:      edge.QtyPer,
					Sequence:    edge.Sequence,
					ExtendedQty: node.extended.Mul(edge.QtyPer),
				})
			}
		}

		sortLevel(levelRows)
		rows = append(rows, levelRows...)
		frontier = nextFrontier(levelRows)
	}

	e.logger.Debug("structure exploded",
		zap.String("top_item", string(top)),
		zap.String("as_of", asOf.Format(time.DateOnly)),
		zap.Int("rows", len(rows)))
	return rows, nil
}

func sortLevel(rows []entities.ExplosionRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Parent != rows[j].Parent {
			return rows[i].Parent < rows[j].Parent
		}
		if rows[i].Sequence != rows[j].Sequence {
			return rows[i].Sequence < rows[j].Sequence
		}
		return rows[i].Component < rows[j].Component
	})
}

// nextFrontier lists each component of the level once, carrying the extended
// quantity of its first row
func nextFrontier(levelRows []entities.ExplosionRow) []frontierNode {
	seen := make(map[entities.PartNumber]struct{}, len(levelRows))
	next := make([]frontierNode, 0, len(levelRows))
	for _, row := range levelRows {
		if _, ok := seen[row.Component]; ok {
			continue
		}
		seen[row.Component] = struct{}{}
		next = append(next, frontierNode{part: row.Component, extended: row.ExtendedQty})
	}
	return next
}

// Summarize totals the extended quantity of each component across the rows of one
// explosion, ordered by first level reached then part number. Sub-structures that
// the explosion did not re-expand are not counted again.
func Summarize(rows []entities.ExplosionRow) []entities.ComponentDemand {
	index := make(map[entities.PartNumber]int)
	var demand []entities.ComponentDemand
	for _, row := range rows {
		i, ok := index[row.Component]
		if !ok {
			index[row.Component] = len(demand)
			demand = append(demand, entities.ComponentDemand{
				PartNumber: row.Component,
				Quantity:   decimal.Zero,
				FirstLevel: row.Level,
			})
			i = len(demand) - 1
		}
		demand[i].Quantity = demand[i].Quantity.Add(row.ExtendedQty)
		demand[i].Occurrences++
	}

	sort.SliceStable(demand, func(i, j int) bool {
		if demand[i].FirstLevel != demand[j].FirstLevel {
			return demand[i].FirstLevel < demand[j].FirstLevel
		}
		return demand[i].PartNumber < demand[j].PartNumber
	})
	return demand
}
