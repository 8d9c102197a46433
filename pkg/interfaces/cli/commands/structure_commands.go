package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/shopfloor/pkg/application/services/explosion"
	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/infrastructure/repositories/csv"
)

func (a *App) runLoad(ctx context.Context, env *environment, args []string) error {
	fs, format := a.flagSet("load")
	itemsFile := fs.String("items", "", "Path to items CSV file")
	structureFile := fs.String("structure", "", "Path to structure edges CSV file")
	if err := parseArgs(fs, args); err != nil {
		return err
	}
	if *itemsFile == "" && *structureFile == "" {
		return fmt.Errorf("%w: -items or -structure is required", ErrUsage)
	}
	printer, err := a.printer(*format)
	if err != nil {
		return err
	}

	loader := csv.NewLoader()
	var (
		items []*entities.Item
		edges []*entities.StructureEdge
	)
	if *itemsFile != "" {
		if items, err = loader.LoadItems(*itemsFile); err != nil {
			return fmt.Errorf("error loading items: %w", err)
		}
	}
	if *structureFile != "" {
		if edges, err = loader.LoadStructure(*structureFile); err != nil {
			return fmt.Errorf("error loading structure: %w", err)
		}
	}

	// Both files are checked in full before anything is written.
	if err := checkNewItems(ctx, env, items); err != nil {
		return err
	}
	if err := env.structure.CheckEdges(ctx, edges, items); err != nil {
		return fmt.Errorf("structure rejected: %w", err)
	}

	for i, item := range items {
		if err := env.store.SaveItem(ctx, item); err != nil {
			return fmt.Errorf("failed to save item %s after %d of %d items: %w",
				item.PartNumber, i, len(items), err)
		}
	}
	edgeCount, err := env.structure.AddEdges(ctx, edges)
	if err != nil {
		return fmt.Errorf("loaded %d items, failed adding edges: %w", len(items), err)
	}
	itemCount := len(items)

	a.logger.Info("data loaded", zap.Int("items", itemCount), zap.Int("edges", edgeCount))
	return printer.Message("Loaded %d items and %d structure edges", itemCount, edgeCount)
}

// checkNewItems rejects part numbers repeated in the file or already stored
func checkNewItems(ctx context.Context, env *environment, items []*entities.Item) error {
	seen := make(map[entities.PartNumber]bool, len(items))
	for _, item := range items {
		if seen[item.PartNumber] {
			return fmt.Errorf("duplicate part number in items file: %s", item.PartNumber)
		}
		seen[item.PartNumber] = true

		_, err := env.store.GetItem(ctx, item.PartNumber)
		switch {
		case err == nil:
			return fmt.Errorf("duplicate part number: %s", item.PartNumber)
		case !errors.Is(err, entities.ErrItemNotFound):
			return fmt.Errorf("check item %s: %w", item.PartNumber, err)
		}
	}
	return nil
}

func (a *App) runExplode(ctx context.Context, env *environment, args []string) error {
	fs, format := a.flagSet("explode")
	asOf := fs.String("as-of", "", "Effectivity date YYYY-MM-DD (default today)")
	summary := fs.Bool("summary", false, "Also print per-component totals")
	if err := parseArgs(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: explode takes exactly one part number", ErrUsage)
	}
	date, err := parseDateOr(*asOf, time.Now())
	if err != nil {
		return err
	}
	printer, err := a.printer(*format)
	if err != nil {
		return err
	}

	top := entities.PartNumber(fs.Arg(0))
	rows, err := env.explosion.Explode(ctx, top, date)
	if err != nil {
		return err
	}

	var demand []entities.ComponentDemand
	if *summary {
		demand = explosion.Summarize(rows)
	}
	return printer.Explosion(&entities.Explosion{TopItem: top, AsOf: date, Rows: rows}, demand)
}

func (a *App) runValidate(ctx context.Context, env *environment, args []string) error {
	fs, format := a.flagSet("validate")
	asOf := fs.String("as-of", "", "Date whose active edges are checked for cycles (default today)")
	if err := parseArgs(fs, args); err != nil {
		return err
	}
	date, err := parseDateOr(*asOf, time.Now())
	if err != nil {
		return err
	}
	printer, err := a.printer(*format)
	if err != nil {
		return err
	}

	result, err := env.structure.Validate(ctx, date)
	if err != nil {
		return err
	}
	if err := printer.Validation(result); err != nil {
		return err
	}
	if !result.Valid() {
		return fmt.Errorf("structure validation found %d problem(s)", len(result.Errors))
	}
	return nil
}

// parseDateOr parses a YYYY-MM-DD date, returning fallback's date for ""
func parseDateOr(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return entities.DateOf(fallback), nil
	}
	date, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ErrUsage, value)
	}
	return date, nil
}
