package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

var (
	itemsHeader     = []string{"part_number", "description", "make_buy", "material_cost", "labour_cost", "overhead_cost", "unit_of_measure"}
	structureHeader = []string{"parent", "component", "qty_per", "sequence", "effective_from", "effective_to", "work_centre", "auto_issue", "remark"}
)

// Loader handles loading item master and structure data from CSV files
type Loader struct{}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadItems loads items from a CSV file
func (l *Loader) LoadItems(filename string) ([]*entities.Item, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open items file %s: %w", filename, err)
	}
	defer file.Close()

	return l.ReadItems(file)
}

// ReadItems parses items CSV content
func (l *Loader) ReadItems(r io.Reader) ([]*entities.Item, error) {
	records, err := readRecords(r, "items", itemsHeader)
	if err != nil {
		return nil, err
	}

	items := make([]*entities.Item, 0, len(records))
	for i, record := range records {
		item, err := parseItem(record)
		if err != nil {
			return nil, fmt.Errorf("items CSV row %d: %w", i+2, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// LoadStructure loads structure edges from a CSV file
func (l *Loader) LoadStructure(filename string) ([]*entities.StructureEdge, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open structure file %s: %w", filename, err)
	}
	defer file.Close()

	return l.ReadStructure(file)
}

// ReadStructure parses structure CSV content
func (l *Loader) ReadStructure(r io.Reader) ([]*entities.StructureEdge, error) {
	records, err := readRecords(r, "structure", structureHeader)
	if err != nil {
		return nil, err
	}

	edges := make([]*entities.StructureEdge, 0, len(records))
	for i, record := range records {
		edge, err := parseStructureEdge(record)
		if err != nil {
			return nil, fmt.Errorf("structure CSV row %d: %w", i+2, err)
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// readRecords validates the header and column counts and returns the data rows
func readRecords(r io.Reader, name string, expectedHeader []string) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", name, err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("%s CSV must have header and at least one data row", name)
	}

	header := records[0]
	if !validateHeader(header, expectedHeader) {
		return nil, fmt.Errorf("%s CSV header mismatch. Expected: %v, Got: %v", name, expectedHeader, header)
	}

	for i, record := range records[1:] {
		if len(record) != len(expectedHeader) {
			return nil, fmt.Errorf("%s CSV row %d: expected %d columns, got %d", name, i+2, len(expectedHeader), len(record))
		}
	}
	return records[1:], nil
}

func parseItem(record []string) (*entities.Item, error) {
	makeBuy, err := entities.ParseMakeBuy(strings.TrimSpace(record[2]))
	if err != nil {
		return nil, err
	}

	costs := make([]decimal.Decimal, 3)
	for i, column := range []string{"material_cost", "labour_cost", "overhead_cost"} {
		costs[i], err = parseDecimal(record[3+i], column)
		if err != nil {
			return nil, err
		}
	}

	return entities.NewItem(
		entities.PartNumber(strings.TrimSpace(record[0])),
		strings.TrimSpace(record[1]),
		makeBuy,
		costs[0], costs[1], costs[2],
		strings.TrimSpace(record[6]),
	)
}

func parseStructureEdge(record []string) (*entities.StructureEdge, error) {
	qtyPer, err := parseDecimal(record[2], "qty_per")
	if err != nil {
		return nil, err
	}

	sequence, err := strconv.Atoi(strings.TrimSpace(record[3]))
	if err != nil {
		return nil, fmt.Errorf("invalid sequence: %s", record[3])
	}

	from, err := parseDate(record[4], "effective_from")
	if err != nil {
		return nil, err
	}
	to, err := parseDate(record[5], "effective_to")
	if err != nil {
		return nil, err
	}

	autoIssue := false
	if value := strings.TrimSpace(record[7]); value != "" {
		autoIssue, err = strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid auto_issue: %s", value)
		}
	}

	return entities.NewStructureEdge(
		entities.PartNumber(strings.TrimSpace(record[0])),
		entities.PartNumber(strings.TrimSpace(record[1])),
		qtyPer,
		sequence,
		entities.EffectiveWindow{From: from, To: to},
		entities.Optional(strings.TrimSpace(record[6])),
		autoIssue,
		entities.Optional(strings.TrimSpace(record[8])),
	)
}

func parseDecimal(value, column string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %s", column, value)
	}
	return d, nil
}

// parseDate accepts YYYY-MM-DD; an empty value yields the zero time
func parseDate(value, column string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s date: %s", column, value)
	}
	return t, nil
}

// validateHeader checks if the CSV header matches expected columns
func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i, col := range expected {
		if strings.TrimSpace(strings.ToLower(actual[i])) != col {
			return false
		}
	}
	return true
}
