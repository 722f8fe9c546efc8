package aqi

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/hellej/hope-graph-updater/internal/raster"
)

// Validity classes of a sampled AQI value.
const (
	ValidityOK        = 0
	ValidityMissing   = 1
	ValidityBelowOne  = 2
	ValidityNegative  = 3
	ValidityNotFinite = 4
)

// Validity classifies a sampled value. A zero value means the sample is
// missing rather than wrong; both it and ValidityOK count as valid.
func Validity(aqi float64) int {
	switch {
	case math.IsNaN(aqi) || math.IsInf(aqi, 0):
		return ValidityNotFinite
	case aqi < 0:
		return ValidityNegative
	case aqi == 0:
		return ValidityMissing
	case aqi < 1:
		return ValidityBelowOne
	default:
		return ValidityOK
	}
}

// ValidOrNaN maps a sampled value to a usable AQI: values just below the
// scale minimum are clamped to 1, anything else below it becomes NaN.
func ValidOrNaN(aqi float64) float64 {
	switch {
	case math.IsNaN(aqi) || math.IsInf(aqi, 0):
		return math.NaN()
	case aqi < 0.95:
		return math.NaN()
	case aqi < 1:
		return 1.0
	default:
		return aqi
	}
}

// AqiClass returns the map class of an AQI value: the index of its half
// unit interval, i.e. 2 to 10 for the AQI scale 1 to 5. Invalid values
// map to 0.
func AqiClass(aqi float64) int {
	if math.IsNaN(aqi) || math.IsInf(aqi, 0) {
		return 0
	}
	return int(math.Floor(aqi * 2))
}

// UpdateResult summarizes an exported edge update.
type UpdateResult struct {
	CSV string

	// Samples is the number of sampling points and Invalid how many of
	// them failed validation before clamping.
	Samples int
	Invalid int

	// Written is the number of edges with a valid AQI in the CSV and
	// ValidRatio its share of all edges.
	Written    int
	ValidRatio float64
}

// Updater samples AQI rasters at edge midpoints and exports the edge
// update CSV and the AQI map JSON into UpdatesDir.
type Updater struct {
	Log        log.FieldLogger
	CacheDir   string
	UpdatesDir string

	// LatestCSV is the last update exported and WIPCSV the one being
	// exported.
	LatestCSV string
	WIPCSV    string

	edges    []Edge
	sampling []Edge
	status   string
}

// NewUpdater returns an Updater for edges. Edges sharing an id_way are
// sampled once.
func NewUpdater(logger log.FieldLogger, edges []Edge, cacheDir, updatesDir string) *Updater {
	return &Updater{
		Log:        logger,
		CacheDir:   cacheDir,
		UpdatesDir: updatesDir,
		edges:      edges,
		sampling:   uniqueByWay(edges),
	}
}

// Edges returns the number of edges and of distinct sampling points.
func (u *Updater) Edges() (edges, samples int) {
	return len(u.edges), len(u.sampling)
}

// NewUpdateAvailable reports whether tif has not been exported yet.
func (u *Updater) NewUpdateAvailable(tif string) bool {
	available := u.LatestCSV != CSVName(tif)

	status := "latest AQI update already done"
	if available {
		status = "new AQI update available: " + tif
	}
	if status != u.status {
		u.Log.Infof("AQI updater status changed to: %s", status)
		u.status = status
	}
	return available
}

// CreateUpdateCSV samples the grid kept alongside tif and writes the AQI
// map JSON and the edge update CSV.
func (u *Updater) CreateUpdateCSV(tif string) (*UpdateResult, error) {
	u.WIPCSV = CSVName(tif)

	g, err := readGrid(filepath.Join(u.CacheDir, ASCName(tif)))
	if err != nil {
		return nil, err
	}

	values, invalid := u.sample(g)
	res := &UpdateResult{CSV: u.WIPCSV, Samples: len(u.sampling), Invalid: invalid}

	if err := u.writeMapJSON(values); err != nil {
		return nil, err
	}

	written, err := u.writeCSV(values)
	if err != nil {
		return nil, err
	}
	res.Written = written
	if len(u.edges) > 0 {
		res.ValidRatio = float64(written) / float64(len(u.edges))
	}
	u.Log.Infof("found valid AQI samples for %.2f %% edges", 100*res.ValidRatio)
	u.Log.WithField("csv", u.WIPCSV).Info("exported edge AQI csv")

	u.LatestCSV = u.WIPCSV
	return res, nil
}

// Finish clears WIPCSV and removes update CSVs other than the latest.
func (u *Updater) Finish() {
	u.WIPCSV = ""

	entries, err := os.ReadDir(u.UpdatesDir)
	if err != nil {
		u.Log.WithError(err).Warn("failed to list AQI updates")
		return
	}
	removed, failed := 0, 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".csv") || name == u.LatestCSV {
			continue
		}
		if err := os.Remove(filepath.Join(u.UpdatesDir, name)); err != nil {
			failed++
			continue
		}
		removed++
	}
	u.Log.Infof("removed %d old edge AQI csv files", removed)
	if failed > 0 {
		u.Log.Warnf("could not remove %d old edge AQI csv files", failed)
	}
}

// sample returns the usable AQI per id_way and the number of samples that
// failed validation.
func (u *Updater) sample(g *raster.Grid) (map[int64]float64, int) {
	values := make(map[int64]float64, len(u.sampling))
	invalid := 0
	for _, e := range u.sampling {
		v, ok := g.Sample(round(e.Point.X, 6), round(e.Point.Y, 6))
		if !ok {
			v = math.NaN()
		}
		v = round(v, 2)
		if Validity(v) > ValidityMissing {
			invalid++
		}
		values[e.IDWay] = ValidOrNaN(v)
	}

	if invalid > 0 {
		n := len(u.sampling)
		u.Log.Warnf("row count: %d of which has valid aqi: %d = %.2f %%", n, n-invalid, 100*float64(n-invalid)/float64(n))
		u.Log.Warnf("invalid aqi count: %d", invalid)
		u.Log.Error("AQI sampling failed")
	}
	return values, invalid
}

type aqiMap struct {
	Data [][2]int64 `json:"data"`
}

func (u *Updater) writeMapJSON(values map[int64]float64) error {
	m := aqiMap{Data: [][2]int64{}}
	for _, e := range u.sampling {
		v := values[e.IDWay]
		if math.IsNaN(v) {
			continue
		}
		m.Data = append(m.Data, [2]int64{e.IDWay, int64(AqiClass(v))})
	}

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	path := filepath.Join(u.UpdatesDir, MapFileName)
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", MapFileName, err)
	}
	u.Log.Infof("exported current AQI for map: %s", path)
	return nil
}

func (u *Updater) writeCSV(values map[int64]float64) (int, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write([]string{"id_ig", "aqi"})

	written := 0
	for _, e := range u.edges {
		v, ok := values[e.IDWay]
		if !ok || math.IsNaN(v) {
			continue
		}
		_ = w.Write([]string{strconv.FormatInt(e.IDIG, 10), FormatAqi(v)})
		written++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, err
	}

	if err := writeFileAtomic(filepath.Join(u.UpdatesDir, u.WIPCSV), []byte(b.String())); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", u.WIPCSV, err)
	}
	return written, nil
}

// FormatAqi formats an AQI value for the update CSV with at least one
// decimal place, so whole values read back as floats ("2.0", not "2").
func FormatAqi(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// writeFileAtomic writes data next to path and renames it into place so
// readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func round(v float64, digits int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
