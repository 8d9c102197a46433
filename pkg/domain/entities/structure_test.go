package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStructureEdge_Validation(t *testing.T) {
	window := EffectiveWindow{From: day(2025, 1, 1)}

	edge, err := NewStructureEdge("PARENT", "CHILD", decimal.NewFromInt(2), 10, window, nil, false, Optional("fit last"))
	require.NoError(t, err)
	assert.True(t, edge.QtyPer.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, OpenEnded, edge.Window.To)
	assert.Equal(t, "fit last", Deref(edge.Remark))
	assert.Nil(t, edge.WorkCentre)

	testCases := []struct {
		name        string
		parent      PartNumber
		component   PartNumber
		qtyPer      decimal.Decimal
		sequence    int
		window      EffectiveWindow
		expectError string
	}{
		{"empty parent", "", "CHILD", decimal.NewFromInt(1), 10, window, "parent part number cannot be empty"},
		{"empty component", "PARENT", "", decimal.NewFromInt(1), 10, window, "component part number cannot be empty"},
		{"parent equals component", "SAME", "SAME", decimal.NewFromInt(1), 10, window, "parent and component part numbers cannot be the same: SAME"},
		{"zero quantity", "PARENT", "CHILD", decimal.Zero, 10, window, "quantity per must be positive, got 0"},
		{"negative quantity", "PARENT", "CHILD", decimal.NewFromFloat(-1.5), 10, window, "quantity per must be positive, got -1.5"},
		{"zero sequence", "PARENT", "CHILD", decimal.NewFromInt(1), 0, window, "sequence must be positive, got 0"},
		{"missing from", "PARENT", "CHILD", decimal.NewFromInt(1), 10, EffectiveWindow{}, "effective from date cannot be empty"},
		{
			"inverted window",
			"PARENT",
			"CHILD",
			decimal.NewFromInt(1),
			10,
			EffectiveWindow{From: day(2025, 2, 1), To: day(2025, 1, 1)},
			"effective from 2025-02-01 cannot be after effective to 2025-01-01",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewStructureEdge(tc.parent, tc.component, tc.qtyPer, tc.sequence, tc.window, nil, false, nil)
			require.Error(t, err)
			assert.Equal(t, tc.expectError, err.Error())
		})
	}
}

func TestEffectiveWindow_Contains(t *testing.T) {
	w := EffectiveWindow{From: day(2025, 1, 10), To: day(2025, 1, 20)}

	tests := []struct {
		name string
		asOf time.Time
		want bool
	}{
		{"before", day(2025, 1, 9), false},
		{"first day", day(2025, 1, 10), true},
		{"first day afternoon", day(2025, 1, 10).Add(15 * time.Hour), true},
		{"last day late", day(2025, 1, 20).Add(23 * time.Hour), true},
		{"after", day(2025, 1, 21), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Contains(tt.asOf))
		})
	}
}

func TestEffectiveWindow_Overlaps(t *testing.T) {
	jan := EffectiveWindow{From: day(2025, 1, 1), To: day(2025, 1, 31)}
	feb := EffectiveWindow{From: day(2025, 2, 1), To: day(2025, 2, 28)}
	lateJan := EffectiveWindow{From: day(2025, 1, 31), To: OpenEnded}

	assert.False(t, jan.Overlaps(feb))
	assert.False(t, feb.Overlaps(jan))
	assert.True(t, jan.Overlaps(lateJan))
	assert.True(t, lateJan.Overlaps(feb))
}

func TestStructureEdge_Key(t *testing.T) {
	edge := StructureEdge{Parent: "FG1", Component: "A"}
	assert.Equal(t, EdgeKey{Parent: "FG1", Component: "A"}, edge.Key())
	assert.Equal(t, "FG1->A", edge.Key().String())
}
