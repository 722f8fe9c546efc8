package raster

import "math"

// NodataOffsets are the increments tried on top of the nominal nodata value
// when searching for the effective nodata threshold. Converted grids tend to
// carry nodata slightly above its nominal value.
var NodataOffsets = []float64{0, 0.01, 0.02, 0.04, 0.06, 0.08, 0.1, 0.12}

// DefaultFillDistance is the search radius, in cells, used by FillNoData
// when no explicit distance is given.
const DefaultFillDistance = 100

// ThresholdProbe reports how many cells a candidate threshold selects.
type ThresholdProbe struct {
	Offset    float64
	Threshold float64
	Count     int
}

// CountAtOrBelow returns the number of cells whose value is <= limit.
// NaN cells are never counted.
func (g *Grid) CountAtOrBelow(limit float64) int {
	n := 0
	for _, v := range g.Values {
		if v <= limit {
			n++
		}
	}
	return n
}

// CountBelow returns the number of cells whose value is < limit.
func (g *Grid) CountBelow(limit float64) int {
	n := 0
	for _, v := range g.Values {
		if v < limit {
			n++
		}
	}
	return n
}

// NodataThreshold finds the smallest threshold naVal+offset (offset taken
// from NodataOffsets) that selects more than minCount cells. It returns the
// probes made so callers can log them. If no offset reaches minCount the
// last threshold is returned with ok set to false.
func (g *Grid) NodataThreshold(naVal float64, minCount int) (threshold float64, probes []ThresholdProbe, ok bool) {
	for _, off := range NodataOffsets {
		threshold = naVal + off
		p := ThresholdProbe{Offset: off, Threshold: threshold, Count: g.CountAtOrBelow(threshold)}
		probes = append(probes, p)
		if p.Count > minCount {
			return threshold, probes, true
		}
	}
	return threshold, probes, false
}

var fillDirections = [8][2]int{
	{-1, 0}, {1, 0}, {0, -1}, {0, 1},
	{-1, -1}, {-1, 1}, {1, -1}, {1, 1},
}

// FillNoData replaces every cell whose value is <= threshold (or NaN) with
// an inverse-distance weighted mean of the nearest valid cell along each of
// the eight compass directions, searching at most maxDist cells. Cells with
// no valid neighbour within reach keep their value. Only cells that were
// valid before the call contribute, so the result does not depend on scan
// order. It returns the number of cells filled.
func (g *Grid) FillNoData(threshold float64, maxDist int) int {
	if maxDist <= 0 {
		maxDist = DefaultFillDistance
	}

	valid := make([]bool, len(g.Values))
	for i, v := range g.Values {
		valid[i] = !math.IsNaN(v) && v > threshold
	}

	out := append([]float64(nil), g.Values...)
	filled := 0
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if valid[r*g.Cols+c] {
				continue
			}
			var sum, wsum float64
			for _, d := range fillDirections {
				step := math.Hypot(float64(d[0]), float64(d[1]))
				for k := 1; k <= maxDist; k++ {
					rr, cc := r+d[0]*k, c+d[1]*k
					if rr < 0 || rr >= g.Rows || cc < 0 || cc >= g.Cols {
						break
					}
					i := rr*g.Cols + cc
					if valid[i] {
						w := 1 / (step * float64(k))
						sum += w * g.Values[i]
						wsum += w
						break
					}
				}
			}
			if wsum > 0 {
				out[r*g.Cols+c] = sum / wsum
				filled++
			}
		}
	}
	g.Values = out
	return filled
}
