package aqi

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Point is a WGS84 coordinate pair.
type Point struct {
	X, Y float64
}

// Edge is a street network edge with the point at which AQI is sampled.
type Edge struct {
	IDIG  int64
	IDWay int64
	Point Point
}

// EdgeColumns are the columns an edges CSV must provide.
var EdgeColumns = []string{"id_ig", "id_way", "geometry"}

// LoadEdges reads edges from a CSV file with the columns id_ig, id_way and
// geometry, the latter a WKT LINESTRING in WGS84. Rows without a usable
// line are skipped and counted in dropped.
func LoadEdges(path string) (edges []Edge, dropped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open edges %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	edges, dropped, err = ReadEdges(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read edges %s: %w", path, err)
	}
	return edges, dropped, nil
}

// ReadEdges is LoadEdges for an already opened reader.
func ReadEdges(r io.Reader) ([]Edge, int, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("missing header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, c := range EdgeColumns {
		if _, ok := idx[c]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", c)
		}
	}

	var (
		edges   []Edge
		dropped int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}

		idIG, err1 := strconv.ParseInt(strings.TrimSpace(rec[idx["id_ig"]]), 10, 64)
		idWay, err2 := strconv.ParseInt(strings.TrimSpace(rec[idx["id_way"]]), 10, 64)
		line, err3 := ParseLineString(rec[idx["geometry"]])
		if err1 != nil || err2 != nil || err3 != nil {
			dropped++
			continue
		}
		edges = append(edges, Edge{IDIG: idIG, IDWay: idWay, Point: Midpoint(line)})
	}
	return edges, dropped, nil
}

// ParseLineString parses a WKT LINESTRING with at least two points. Z and
// M ordinates are ignored.
func ParseLineString(wkt string) ([]Point, error) {
	s := strings.TrimSpace(wkt)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "LINESTRING") {
		return nil, fmt.Errorf("not a LINESTRING: %.30q", s)
	}
	s = strings.TrimSpace(s[len("LINESTRING"):])
	for _, dim := range []string{"ZM", "Z", "M"} {
		if strings.HasPrefix(strings.ToUpper(s), dim) {
			s = strings.TrimSpace(s[len(dim):])
			break
		}
	}
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("malformed LINESTRING: %.30q", wkt)
	}

	parts := strings.Split(s[1:len(s)-1], ",")
	pts := make([]Point, 0, len(parts))
	for _, p := range parts {
		fields := strings.Fields(p)
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed coordinate %q", p)
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, err
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, err
		}
		pts = append(pts, Point{X: x, Y: y})
	}
	if len(pts) < 2 {
		return nil, fmt.Errorf("LINESTRING needs at least two points")
	}
	return pts, nil
}

// Midpoint returns the point halfway along the line, measured in planar
// coordinate units.
func Midpoint(line []Point) Point {
	if len(line) == 0 {
		return Point{X: math.NaN(), Y: math.NaN()}
	}
	total := 0.0
	for i := 1; i < len(line); i++ {
		total += dist(line[i-1], line[i])
	}
	if total == 0 {
		return line[0]
	}

	remaining := total / 2
	for i := 1; i < len(line); i++ {
		seg := dist(line[i-1], line[i])
		if seg >= remaining && seg > 0 {
			t := remaining / seg
			a, b := line[i-1], line[i]
			return Point{X: a.X + t*(b.X-a.X), Y: a.Y + t*(b.Y-a.Y)}
		}
		remaining -= seg
	}
	return line[len(line)-1]
}

func dist(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// uniqueByWay returns the first edge for every id_way, preserving order.
// Both directions of a way share one sampling point.
func uniqueByWay(edges []Edge) []Edge {
	seen := make(map[int64]bool, len(edges))
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if seen[e.IDWay] {
			continue
		}
		seen[e.IDWay] = true
		out = append(out, e)
	}
	return out
}
