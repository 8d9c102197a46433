package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// StructureValidator provides validation for manufacturing structure integrity
type StructureValidator struct {
	effectivity *EffectivityResolver
}

// NewStructureValidator creates a new structure validator
func NewStructureValidator() *StructureValidator {
	return &StructureValidator{effectivity: NewEffectivityResolver()}
}

// ValidationResult contains the results of structure validation
type ValidationResult struct {
	HasCycles     bool
	CyclePaths    [][]entities.PartNumber
	Overlaps      []Overlap
	OrphanedParts []entities.PartNumber
	Errors        []string
}

// Valid reports whether no errors were found
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ValidateStructure checks the edges active on asOf for cycles and the full edge
// history for overlapping effectivity windows.
func (v *StructureValidator) ValidateStructure(edges []*entities.StructureEdge, asOf time.Time) *ValidationResult {
	result := &ValidationResult{
		CyclePaths:    make([][]entities.PartNumber, 0),
		Overlaps:      make([]Overlap, 0),
		OrphanedParts: make([]entities.PartNumber, 0),
		Errors:        make([]string, 0),
	}

	active := make([]*entities.StructureEdge, 0, len(edges))
	for _, edge := range edges {
		if edge.IsActive(asOf) {
			active = append(active, edge)
		}
	}

	cycles := v.detectCycles(v.buildAdjacencyMap(active))
	result.HasCycles = len(cycles) > 0
	result.CyclePaths = cycles
	for _, cycle := range cycles {
		result.Errors = append(result.Errors, fmt.Sprintf("structure cycle detected: %v", cycle))
	}

	result.Overlaps = v.effectivity.FindOverlaps(edges)
	for _, overlap := range result.Overlaps {
		result.Errors = append(result.Errors, fmt.Sprintf("effectivity overlap for %s", overlap))
	}

	return result
}

// ValidateItemConsistency checks that every edge references known items and that
// every parent is a manufactured item.
func (v *StructureValidator) ValidateItemConsistency(edges []*entities.StructureEdge, items []*entities.Item) *ValidationResult {
	result := &ValidationResult{
		OrphanedParts: make([]entities.PartNumber, 0),
		Errors:        make([]string, 0),
	}

	known := make(map[entities.PartNumber]*entities.Item, len(items))
	for _, item := range items {
		known[item.PartNumber] = item
	}

	reported := make(map[entities.PartNumber]bool)
	orphan := func(pn entities.PartNumber) {
		if reported[pn] {
			return
		}
		reported[pn] = true
		result.OrphanedParts = append(result.OrphanedParts, pn)
		result.Errors = append(result.Errors, fmt.Sprintf("structure references unknown item %s", pn))
	}

	notManufactured := make(map[entities.PartNumber]bool)
	for _, edge := range edges {
		parent, ok := known[edge.Parent]
		if !ok {
			orphan(edge.Parent)
		} else if !parent.IsManufactured() && !notManufactured[edge.Parent] {
			notManufactured[edge.Parent] = true
			result.Errors = append(result.Errors,
				fmt.Sprintf("structure parent %s is %s, not manufactured", edge.Parent, parent.MakeBuy))
		}
		if _, ok := known[edge.Component]; !ok {
			orphan(edge.Component)
		}
	}

	return result
}

// WouldCreateCycle reports whether adding candidate closes a loop with any edge whose
// effective window overlaps the candidate's. The returned path starts and ends at the
// candidate's parent.
func (v *StructureValidator) WouldCreateCycle(
	edges []*entities.StructureEdge,
	candidate *entities.StructureEdge,
) ([]entities.PartNumber, bool) {
	concurrent := make([]*entities.StructureEdge, 0, len(edges))
	for _, edge := range edges {
		if edge.Window.Overlaps(candidate.Window) {
			concurrent = append(concurrent, edge)
		}
	}
	adjacency := v.buildAdjacencyMap(concurrent)

	// Breadth-first search from the component back to the parent.
	previous := map[entities.PartNumber]entities.PartNumber{candidate.Component: ""}
	queue := []entities.PartNumber{candidate.Component}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == candidate.Parent {
			path := []entities.PartNumber{candidate.Parent}
			for step := previous[current]; step != ""; step = previous[step] {
				path = append(path, step)
			}
			// path is parent <- ... <- component; reverse and close the loop.
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return append([]entities.PartNumber{candidate.Parent}, path...), true
		}
		for _, child := range adjacency[current] {
			if _, seen := previous[child]; seen {
				continue
			}
			previous[child] = current
			queue = append(queue, child)
		}
	}
	return nil, false
}

// buildAdjacencyMap creates a map of parent -> components relationships
func (v *StructureValidator) buildAdjacencyMap(edges []*entities.StructureEdge) map[entities.PartNumber][]entities.PartNumber {
	adjacencyMap := make(map[entities.PartNumber][]entities.PartNumber)
	seen := make(map[entities.EdgeKey]bool)

	for _, edge := range edges {
		if seen[edge.Key()] {
			continue
		}
		seen[edge.Key()] = true
		adjacencyMap[edge.Parent] = append(adjacencyMap[edge.Parent], edge.Component)
	}

	return adjacencyMap
}

// detectCycles runs an iterative depth-first search and returns every back-edge loop
func (v *StructureValidator) detectCycles(adjacencyMap map[entities.PartNumber][]entities.PartNumber) [][]entities.PartNumber {
	const (
		white = iota
		grey
		black
	)
	type frame struct {
		node entities.PartNumber
		next int
	}

	parents := make([]entities.PartNumber, 0, len(adjacencyMap))
	for parent := range adjacencyMap {
		parents = append(parents, parent)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })

	color := make(map[entities.PartNumber]int)
	cycles := make([][]entities.PartNumber, 0)

	for _, root := range parents {
		if color[root] != white {
			continue
		}
		color[root] = grey
		stack := []frame{{node: root}}
		path := []entities.PartNumber{root}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := adjacencyMap[top.node]
			if top.next >= len(children) {
				color[top.node] = black
				stack = stack[:len(stack)-1]
				path = path[:len(path)-1]
				continue
			}

			child := children[top.next]
			top.next++

			switch color[child] {
			case white:
				color[child] = grey
				stack = append(stack, frame{node: child})
				path = append(path, child)
			case grey:
				for i, part := range path {
					if part == child {
						cycle := make([]entities.PartNumber, 0, len(path)-i+1)
						cycle = append(cycle, path[i:]...)
						cycle = append(cycle, child)
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}
	}

	return cycles
}
