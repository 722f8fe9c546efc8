package aqi

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// three 1x1 degree cells from 24E to 27E along 60N..61N
const updaterGrid = `ncols 3
nrows 1
xllcorner 24
yllcorner 60
cellsize 1
NODATA_value -9999
2.3 0.5 0.97
`

const updaterTif = "aqi_2024-03-01T12.tif"

func newTestUpdater(t *testing.T) (*Updater, string) {
	t.Helper()
	cache, updates := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cache, ASCName(updaterTif)), []byte(updaterGrid), 0o644))

	edges := []Edge{
		{IDIG: 1, IDWay: 10, Point: Point{24.2, 60.5}},
		{IDIG: 2, IDWay: 10, Point: Point{24.2, 60.5}},
		{IDIG: 3, IDWay: 20, Point: Point{25.5, 60.5}},
		{IDIG: 4, IDWay: 30, Point: Point{26.5, 60.5}},
		{IDIG: 5, IDWay: 40, Point: Point{30.0, 60.5}},
	}
	logger, _ := test.NewNullLogger()
	return NewUpdater(logger, edges, cache, updates), updates
}

func TestValidity(t *testing.T) {
	tests := []struct {
		aqi  float64
		want int
	}{
		{2.5, ValidityOK},
		{1, ValidityOK},
		{0, ValidityMissing},
		{0.5, ValidityBelowOne},
		{-1, ValidityNegative},
		{math.NaN(), ValidityNotFinite},
		{math.Inf(1), ValidityNotFinite},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Validity(tt.aqi), "aqi %v", tt.aqi)
	}
}

func TestValidOrNaN(t *testing.T) {
	assert.Equal(t, 2.5, ValidOrNaN(2.5))
	assert.Equal(t, 1.0, ValidOrNaN(0.97))
	assert.Equal(t, 1.0, ValidOrNaN(0.95))
	assert.True(t, math.IsNaN(ValidOrNaN(0.94)))
	assert.True(t, math.IsNaN(ValidOrNaN(-1)))
	assert.True(t, math.IsNaN(ValidOrNaN(math.Inf(-1))))
}

func TestAqiClass(t *testing.T) {
	assert.Equal(t, 2, AqiClass(1.0))
	assert.Equal(t, 4, AqiClass(2.3))
	assert.Equal(t, 5, AqiClass(2.5))
	assert.Equal(t, 10, AqiClass(5.0))
	assert.Equal(t, 0, AqiClass(math.NaN()))
}

func TestFormatAqi(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{2, "2.0"},
		{1, "1.0"},
		{2.3, "2.3"},
		{4.75, "4.75"},
		{10, "10.0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAqi(tt.v), "aqi %v", tt.v)
	}
}

func TestNewUpdateAvailable(t *testing.T) {
	u, _ := newTestUpdater(t)
	assert.True(t, u.NewUpdateAvailable(updaterTif))

	u.LatestCSV = CSVName(updaterTif)
	assert.False(t, u.NewUpdateAvailable(updaterTif))
	assert.True(t, u.NewUpdateAvailable("aqi_2024-03-01T13.tif"))
}

func TestCreateUpdateCSV(t *testing.T) {
	u, updates := newTestUpdater(t)
	edges, samples := u.Edges()
	assert.Equal(t, 5, edges)
	assert.Equal(t, 4, samples)

	res, err := u.CreateUpdateCSV(updaterTif)
	require.NoError(t, err)

	assert.Equal(t, "aqi_2024-03-01T12.csv", res.CSV)
	assert.Equal(t, 4, res.Samples)
	assert.Equal(t, 3, res.Invalid)
	assert.Equal(t, 3, res.Written)
	assert.InDelta(t, 0.6, res.ValidRatio, 1e-9)
	assert.Equal(t, res.CSV, u.LatestCSV)

	csvData, err := os.ReadFile(filepath.Join(updates, res.CSV))
	require.NoError(t, err)
	assert.Equal(t, "id_ig,aqi\n1,2.3\n2,2.3\n4,1.0\n", string(csvData))

	mapData, err := os.ReadFile(filepath.Join(updates, MapFileName))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[[10,4],[30,2]]}`, string(mapData))
}

func TestCreateUpdateCSV_WholeValuesKeepDecimal(t *testing.T) {
	cache, updates := t.TempDir(), t.TempDir()
	grid := "ncols 2\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\nNODATA_value -9999\n2 0.96\n"
	require.NoError(t, os.WriteFile(filepath.Join(cache, ASCName(updaterTif)), []byte(grid), 0o644))

	logger, _ := test.NewNullLogger()
	u := NewUpdater(logger, []Edge{
		{IDIG: 1, IDWay: 1, Point: Point{0.5, 0.5}},
		{IDIG: 2, IDWay: 2, Point: Point{1.5, 0.5}},
	}, cache, updates)

	res, err := u.CreateUpdateCSV(updaterTif)
	require.NoError(t, err)

	csvData, err := os.ReadFile(filepath.Join(updates, res.CSV))
	require.NoError(t, err)
	assert.Equal(t, "id_ig,aqi\n1,2.0\n2,1.0\n", string(csvData))
}

func TestCreateUpdateCSV_MissingGrid(t *testing.T) {
	u, _ := newTestUpdater(t)
	_, err := u.CreateUpdateCSV("aqi_2024-03-01T13.tif")
	assert.Error(t, err)
	assert.Equal(t, "aqi_2024-03-01T13.csv", u.WIPCSV)
	assert.Empty(t, u.LatestCSV)
}

func TestUpdaterFinish_RemovesOldCSVs(t *testing.T) {
	u, updates := newTestUpdater(t)
	require.NoError(t, os.WriteFile(filepath.Join(updates, "aqi_2024-03-01T11.csv"), []byte("old"), 0o644))

	_, err := u.CreateUpdateCSV(updaterTif)
	require.NoError(t, err)
	u.Finish()

	assert.Empty(t, u.WIPCSV)
	assert.NoFileExists(t, filepath.Join(updates, "aqi_2024-03-01T11.csv"))
	assert.FileExists(t, filepath.Join(updates, "aqi_2024-03-01T12.csv"))
	assert.FileExists(t, filepath.Join(updates, MapFileName))
}
