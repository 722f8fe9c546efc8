package raster

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGrid = `ncols 3
nrows 2
xllcorner 24.5
yllcorner 60.0
cellsize 0.5
NODATA_value -9999
1 2 3
4 5 6
`

func TestReadAAIGrid(t *testing.T) {
	g, err := ReadAAIGrid(strings.NewReader(sampleGrid))
	require.NoError(t, err)

	assert.Equal(t, 3, g.Cols)
	assert.Equal(t, 2, g.Rows)
	assert.Equal(t, 24.5, g.XLL)
	assert.Equal(t, 60.0, g.YLL)
	assert.Equal(t, 0.5, g.DX)
	assert.Equal(t, 0.5, g.DY)
	assert.Equal(t, -9999.0, g.NoData)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, g.Values)
}

func TestReadAAIGrid_CenterAndRectangularCells(t *testing.T) {
	in := `NCOLS 2
NROWS 1
XLLCENTER 10.5
YLLCENTER 20.25
DX 1
DY 0.5
1.5 2.5
`
	g, err := ReadAAIGrid(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, 10.0, g.XLL)
	assert.Equal(t, 20.0, g.YLL)
	assert.Equal(t, 1.0, g.DX)
	assert.Equal(t, 0.5, g.DY)
}

func TestReadAAIGrid_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing dims", "xllcorner 0\nyllcorner 0\ncellsize 1\n1\n"},
		{"oversized dims", "ncols 5000000000\nnrows 5000000000\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n"},
		{"oversized cell count", "ncols 100000\nnrows 100000\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n"},
		{"fractional dims", "ncols 1.5\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n"},
		{"missing corner", "ncols 1\nnrows 1\ncellsize 1\n1\n"},
		{"zero cellsize", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 0\n1\n"},
		{"too few values", "ncols 2\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n"},
		{"too many values", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2\n"},
		{"bad value", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\nabc\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() {
				_, err = ReadAAIGrid(strings.NewReader(tt.in))
			})
			assert.ErrorContains(t, err, "ascii grid")
		})
	}
}

func TestWriteAAIGrid_RoundTrip(t *testing.T) {
	g := NewGrid(2, 2, 24.9, 60.1, 0.01, 0.005)
	g.Values = []float64{1.25, 2.0000001, -9999, 3.14159}

	var buf bytes.Buffer
	require.NoError(t, g.WriteAAIGrid(&buf))
	assert.Contains(t, buf.String(), "dx 0.01\ndy 0.005\n")

	back, err := ReadAAIGrid(&buf)
	require.NoError(t, err)
	assert.Equal(t, g, back)
}

func TestSample(t *testing.T) {
	g, err := ReadAAIGrid(strings.NewReader(sampleGrid))
	require.NoError(t, err)

	tests := []struct {
		name string
		x, y float64
		want float64
		ok   bool
	}{
		{"top left", 24.6, 60.9, 1, true},
		{"top right", 25.9, 60.9, 3, true},
		{"bottom middle", 25.2, 60.1, 5, true},
		{"right edge", 26.0, 60.1, 6, true},
		{"west of grid", 24.4, 60.5, 0, false},
		{"north of grid", 25.0, 61.1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := g.Sample(tt.x, tt.y)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, v)
			} else {
				assert.True(t, math.IsNaN(v))
			}
		})
	}
}
