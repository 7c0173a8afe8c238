package breadth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/internal/imputer"
)

func TestUpRatio_WithImputedWeights(t *testing.T) {
	d1 := contracts.MustParseDate("2024-01-02")
	d2 := contracts.MustParseDate("2024-01-03")
	d3 := contracts.MustParseDate("2024-01-04")

	sparse := []contracts.WeightRecord{
		{GroupID: "000300.SH", InstrumentID: "A", Date: d1, Weight: 0.5},
		{GroupID: "000300.SH", InstrumentID: "B", Date: d1, Weight: 0.3},
		{GroupID: "000300.SH", InstrumentID: "C", Date: d2, Weight: 0.2},
	}
	dense := imputer.FillForward(sparse, []contracts.Date{d1, d2, d3})

	quotes := []contracts.DailyQuote{
		{InstrumentID: "A", Date: d1, PctChange: 1.2},
		{InstrumentID: "B", Date: d1, PctChange: -0.4},
		{InstrumentID: "C", Date: d1, PctChange: 3.0}, // no weight yet on d1
		{InstrumentID: "A", Date: d2, PctChange: 0},
		{InstrumentID: "B", Date: d2, PctChange: 0.1},
		{InstrumentID: "C", Date: d2, PctChange: 0.5},
		{InstrumentID: "D", Date: d3, PctChange: 2.0}, // not a constituent
	}

	got := UpRatio(dense, quotes)
	require.Len(t, got, 2)

	assert.Equal(t, contracts.BreadthRecord{GroupID: "000300.SH", Date: d1, UpRatio: 0.5, Constituents: 2}, got[0])
	assert.Equal(t, d2, got[1].Date)
	assert.InDelta(t, 2.0/3.0, got[1].UpRatio, 1e-12)
	assert.Equal(t, 3, got[1].Constituents)
}

func TestUpRatio_Bounds(t *testing.T) {
	d := contracts.MustParseDate("2024-01-02")
	weights := []contracts.DenseWeightRecord{
		{GroupID: "G2", InstrumentID: "A", Date: d, Weight: 1},
		{GroupID: "G1", InstrumentID: "A", Date: d, Weight: 1},
	}
	quotes := []contracts.DailyQuote{{InstrumentID: "A", Date: d, PctChange: -1}}

	got := UpRatio(weights, quotes)
	require.Len(t, got, 2)
	assert.Equal(t, "G1", got[0].GroupID)
	assert.Equal(t, "G2", got[1].GroupID)
	for _, r := range got {
		assert.GreaterOrEqual(t, r.UpRatio, 0.0)
		assert.LessOrEqual(t, r.UpRatio, 1.0)
	}

	assert.Empty(t, UpRatio(nil, quotes))
}

func TestInstruments(t *testing.T) {
	weights := []contracts.DenseWeightRecord{
		{GroupID: "G1", InstrumentID: "B"},
		{GroupID: "G1", InstrumentID: "A"},
		{GroupID: "G1", InstrumentID: "B"},
		{GroupID: "G2", InstrumentID: "C"},
	}

	assert.Equal(t, []string{"A", "B"}, Instruments(weights, "G1"))
	assert.Equal(t, []string{"A", "B", "C"}, Instruments(weights, ""))
}
