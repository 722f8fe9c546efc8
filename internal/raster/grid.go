// Package raster holds single-band float grids in ESRI ASCII grid form
// and the operations the AQI updater needs on them: nodata detection and
// filling, and point sampling in map coordinates.
//
// Conversions between NetCDF, GeoTIFF and ASCII grids are left to GDAL
// (see package aqi); everything numeric happens here, in Go.
package raster

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Grid is a north-up raster. Values are stored row-major starting from the
// northernmost row, the same order in which an ASCII grid lists them.
type Grid struct {
	Cols, Rows int

	// XLL and YLL are the coordinates of the lower-left corner of the
	// lower-left cell.
	XLL, YLL float64

	// DX and DY are the cell width and height in map units.
	DX, DY float64

	// NoData is the value written for missing cells.
	NoData float64

	Values []float64
}

// MaxCells bounds the number of cells ReadAAIGrid accepts.
const MaxCells = math.MaxInt32

// NewGrid allocates a grid filled with zeros.
func NewGrid(cols, rows int, xll, yll, dx, dy float64) *Grid {
	return &Grid{
		Cols: cols, Rows: rows,
		XLL: xll, YLL: yll,
		DX: dx, DY: dy,
		NoData: -9999,
		Values: make([]float64, cols*rows),
	}
}

// At returns the value at row, col (row 0 is the top row).
func (g *Grid) At(row, col int) float64 {
	return g.Values[row*g.Cols+col]
}

// Set stores v at row, col.
func (g *Grid) Set(row, col int, v float64) {
	g.Values[row*g.Cols+col] = v
}

// CellOf returns the row and column containing the point x, y and whether
// the point lies inside the grid. Points on the outer right or top edge
// belong to the last column or row.
func (g *Grid) CellOf(x, y float64) (row, col int, ok bool) {
	if g.DX <= 0 || g.DY <= 0 {
		return 0, 0, false
	}
	fc := (x - g.XLL) / g.DX
	fr := (g.YLL + float64(g.Rows)*g.DY - y) / g.DY
	if fc < 0 || fr < 0 || fc > float64(g.Cols) || fr > float64(g.Rows) {
		return 0, 0, false
	}
	col = int(math.Floor(fc))
	row = int(math.Floor(fr))
	if col == g.Cols {
		col--
	}
	if row == g.Rows {
		row--
	}
	return row, col, true
}

// Sample returns the value of the cell containing x, y. The second result
// is false for points outside the grid.
func (g *Grid) Sample(x, y float64) (float64, bool) {
	row, col, ok := g.CellOf(x, y)
	if !ok {
		return math.NaN(), false
	}
	return g.At(row, col), true
}

// ReadAAIGrid parses an ESRI ASCII grid. Both corner and center anchored
// headers are accepted, as are the non-square "dx"/"dy" headers GDAL writes
// for rectangular cells.
func ReadAAIGrid(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	header := map[string]float64{}
	var first string
	for sc.Scan() {
		tok := sc.Text()
		key := strings.ToLower(tok)
		if !isHeaderKey(key) {
			first = tok
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("ascii grid: missing value for %s", tok)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("ascii grid: invalid %s %q: %w", tok, sc.Text(), err)
		}
		header[key] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ascii grid: %w", err)
	}

	g, err := gridFromHeader(header)
	if err != nil {
		return nil, err
	}

	n := 0
	if first != "" {
		v, err := strconv.ParseFloat(first, 64)
		if err != nil {
			return nil, fmt.Errorf("ascii grid: invalid value %q: %w", first, err)
		}
		if n < len(g.Values) {
			g.Values[n] = v
		}
		n++
	}
	for sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("ascii grid: invalid value %q: %w", sc.Text(), err)
		}
		if n < len(g.Values) {
			g.Values[n] = v
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ascii grid: %w", err)
	}
	if n != len(g.Values) {
		return nil, fmt.Errorf("ascii grid: expected %d values, found %d", len(g.Values), n)
	}
	return g, nil
}

func isHeaderKey(key string) bool {
	switch key {
	case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter",
		"cellsize", "dx", "dy", "nodata_value":
		return true
	}
	return false
}

func gridFromHeader(h map[string]float64) (*Grid, error) {
	cols, okC := h["ncols"]
	rows, okR := h["nrows"]
	if !okC || !okR || cols < 1 || rows < 1 {
		return nil, fmt.Errorf("ascii grid: ncols and nrows must be positive")
	}
	if cols != math.Trunc(cols) || rows != math.Trunc(rows) {
		return nil, fmt.Errorf("ascii grid: ncols and nrows must be integers")
	}
	if cols > MaxCells || rows > MaxCells || cols*rows > MaxCells {
		return nil, fmt.Errorf("ascii grid: %.0f x %.0f cells exceeds the limit of %d", cols, rows, MaxCells)
	}

	dx, dy := h["cellsize"], h["cellsize"]
	if v, ok := h["dx"]; ok {
		dx = v
	}
	if v, ok := h["dy"]; ok {
		dy = v
	}
	if dx <= 0 || dy <= 0 {
		return nil, fmt.Errorf("ascii grid: cell size must be positive")
	}

	g := NewGrid(int(cols), int(rows), 0, 0, dx, dy)
	switch {
	case hasKey(h, "xllcorner"):
		g.XLL = h["xllcorner"]
	case hasKey(h, "xllcenter"):
		g.XLL = h["xllcenter"] - dx/2
	default:
		return nil, fmt.Errorf("ascii grid: missing xllcorner")
	}
	switch {
	case hasKey(h, "yllcorner"):
		g.YLL = h["yllcorner"]
	case hasKey(h, "yllcenter"):
		g.YLL = h["yllcenter"] - dy/2
	default:
		return nil, fmt.Errorf("ascii grid: missing yllcorner")
	}
	if v, ok := h["nodata_value"]; ok {
		g.NoData = v
	}
	return g, nil
}

func hasKey(h map[string]float64, k string) bool {
	_, ok := h[k]
	return ok
}

// WriteAAIGrid writes g as an ESRI ASCII grid. Values are written with the
// shortest representation that parses back to the same float64.
func (g *Grid) WriteAAIGrid(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "ncols %d\nnrows %d\n", g.Cols, g.Rows)
	fmt.Fprintf(bw, "xllcorner %s\nyllcorner %s\n", formatFloat(g.XLL), formatFloat(g.YLL))
	if g.DX == g.DY {
		fmt.Fprintf(bw, "cellsize %s\n", formatFloat(g.DX))
	} else {
		fmt.Fprintf(bw, "dx %s\ndy %s\n", formatFloat(g.DX), formatFloat(g.DY))
	}
	fmt.Fprintf(bw, "NODATA_value %s\n", formatFloat(g.NoData))

	for r := 0; r < g.Rows; r++ {
		row := g.Values[r*g.Cols : (r+1)*g.Cols]
		for c, v := range row {
			if c > 0 {
				_ = bw.WriteByte(' ')
			}
			_, _ = bw.WriteString(formatFloat(v))
		}
		_ = bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
