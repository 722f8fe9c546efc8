package raster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodataThreshold(t *testing.T) {
	g := NewGrid(5, 1, 0, 0, 1, 1)
	g.Values = []float64{1.0, 1.03, 1.05, 2, 3}

	tests := []struct {
		name      string
		minCount  int
		want      float64
		wantOK    bool
		wantProbe int
	}{
		{"nominal value suffices", 0, 1.0, true, 1},
		{"needs offset", 2, 1.06, true, 5},
		{"never reached", 3, 1.12, false, len(NodataOffsets)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, probes, ok := g.NodataThreshold(1.0, tt.minCount)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.wantOK, ok)
			assert.Len(t, probes, tt.wantProbe)
		})
	}
}

func TestCountAtOrBelow_IgnoresNaN(t *testing.T) {
	g := NewGrid(3, 1, 0, 0, 1, 1)
	g.Values = []float64{math.NaN(), 1, 2}
	assert.Equal(t, 1, g.CountAtOrBelow(1))
}

func TestFillNoData(t *testing.T) {
	g := NewGrid(3, 3, 0, 0, 1, 1)
	g.Values = []float64{
		2, 2, 2,
		2, 1, 4,
		2, 2, 2,
	}

	n := g.FillNoData(1.0, 5)
	assert.Equal(t, 1, n)

	// four orthogonal neighbours at distance 1, four diagonals at sqrt(2)
	wo, wd := 1.0, 1/math.Sqrt2
	want := (wo*(2+2+2+4) + wd*(2+2+2+2)) / (4*wo + 4*wd)
	assert.InDelta(t, want, g.At(1, 1), 1e-9)
	assert.Equal(t, 4.0, g.At(1, 2))
}

func TestFillNoData_UsesOnlyOriginalValidCells(t *testing.T) {
	g := NewGrid(4, 1, 0, 0, 1, 1)
	g.Values = []float64{3, 0, 0, 5}

	assert.Equal(t, 2, g.FillNoData(1.0, 10))
	// nearest valid to the west is 3 at distance 1, to the east 5 at distance 2
	assert.InDelta(t, (3*1+5*0.5)/1.5, g.At(0, 1), 1e-9)
	assert.InDelta(t, (3*0.5+5*1)/1.5, g.At(0, 2), 1e-9)
}

func TestFillNoData_OutOfReachKeepsValue(t *testing.T) {
	g := NewGrid(5, 1, 0, 0, 1, 1)
	g.Values = []float64{9, 0, 0, 0, 0}

	assert.Equal(t, 2, g.FillNoData(1.0, 2))
	assert.Equal(t, 9.0, g.At(0, 1))
	assert.Equal(t, 9.0, g.At(0, 2))
	assert.Equal(t, 0.0, g.At(0, 3))
	assert.Equal(t, 0.0, g.At(0, 4))
}

func TestFillNoData_AllNodata(t *testing.T) {
	g := NewGrid(2, 2, 0, 0, 1, 1)
	assert.Equal(t, 0, g.FillNoData(1.0, 0))
	assert.Equal(t, []float64{0, 0, 0, 0}, g.Values)
}

func TestCountBelow(t *testing.T) {
	g := NewGrid(4, 1, 0, 0, 1, 1)
	g.Values = []float64{0.5, 1, 1.5, math.NaN()}
	assert.Equal(t, 1, g.CountBelow(1))
	assert.Equal(t, 2, g.CountAtOrBelow(1))
}
