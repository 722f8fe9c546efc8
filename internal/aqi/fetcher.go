package aqi

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hellej/hope-graph-updater/internal/raster"
)

// Defaults for the Enfuser data source and raster processing.
const (
	DefaultBucket         = "enfusernow2"
	DefaultRegion         = "eu-central-1"
	DefaultKeyPrefix      = "Finland/pks/"
	DefaultNodataValue    = 1.0
	DefaultMinNodataCount = 180000

	// AQIVariable is the NetCDF variable holding the air quality index.
	AQIVariable = "AQI"

	// netcdfMemberPrefix selects the member extracted from the archive.
	netcdfMemberPrefix = "allPollutants"
)

// FetchResult describes a processed AQI raster.
type FetchResult struct {
	Tif string

	// Threshold is the value at or below which cells were treated as
	// nodata, and NodataFound reports whether it selected enough cells.
	Threshold   float64
	NodataFound bool

	Filled  int
	Invalid int
}

// Fetcher downloads the current Enfuser archive and turns its AQI layer
// into a nodata filled raster in Dir.
//
// A Fetcher is driven by a single goroutine.
type Fetcher struct {
	Log       log.FieldLogger
	Store     ObjectStore
	Converter Converter

	Dir       string
	Bucket    string
	KeyPrefix string

	NodataValue    float64
	MinNodataCount int
	FillDistance   int

	// Now is the clock; it defaults to time.Now.
	Now func() time.Time

	// Latest is the last raster processed successfully and WIP the one
	// being processed.
	Latest string
	WIP    string

	tempFiles []string
	status    string
}

// NewFetcher returns a Fetcher with the Enfuser defaults.
func NewFetcher(logger log.FieldLogger, store ObjectStore, conv Converter, dir string) *Fetcher {
	return &Fetcher{
		Log:            logger,
		Store:          store,
		Converter:      conv,
		Dir:            dir,
		Bucket:         DefaultBucket,
		KeyPrefix:      DefaultKeyPrefix,
		NodataValue:    DefaultNodataValue,
		MinNodataCount: DefaultMinNodataCount,
		FillDistance:   raster.DefaultFillDistance,
		Now:            time.Now,
	}
}

func (f *Fetcher) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

// NewAvailable reports whether the raster for the current hour has not
// been processed yet. Status changes are logged once.
func (f *Fetcher) NewAvailable() bool {
	current := TifName(f.now())
	available := f.Latest != current

	status := "latest AQI data already fetched"
	if available {
		status = "new AQI data available: " + current
	}
	if status != f.status {
		f.Log.Infof("AQI fetcher status changed to: %s", status)
		f.status = status
	}
	return available
}

// FetchProcess downloads, extracts, converts and fills the AQI data for
// the current hour. On success Latest names the new raster.
func (f *Fetcher) FetchProcess(ctx context.Context) (*FetchResult, error) {
	now := f.now()
	f.WIP = TifName(now)
	key := EnfuserKey(f.KeyPrefix, now)
	f.Log.WithField("key", key).Info("created key for current AQI")

	zipName := ZipName(now)
	if err := f.download(ctx, key, zipName); err != nil {
		return nil, err
	}
	f.Log.WithField("zip", zipName).Info("got AQI zip")

	ncName, err := f.extract(zipName)
	if err != nil {
		return nil, err
	}
	f.Log.WithField("nc", ncName).Info("extracted AQI netcdf")

	asc := ASCName(f.WIP)
	if err := f.Converter.NetCDFToGrid(ctx, f.path(ncName), AQIVariable, f.path(asc)); err != nil {
		return nil, fmt.Errorf("failed to convert %s to grid: %w", ncName, err)
	}
	f.tempFiles = append(f.tempFiles, strings.TrimSuffix(asc, ".asc")+".prj")

	res, err := f.fillNoData(asc)
	if err != nil {
		return nil, err
	}

	if err := f.Converter.GridToGeoTIFF(ctx, f.path(asc), f.path(f.WIP)); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", f.WIP, err)
	}
	f.Log.WithField("tif", f.WIP).Info("exported AQI tif")

	res.Tif = f.WIP
	f.Latest = f.WIP
	return res, nil
}

// Finish removes temporary and outdated files and clears WIP. It runs
// after every fetch attempt, successful or not.
func (f *Fetcher) Finish() {
	f.removeTempFiles()
	f.removeOldFiles()
	f.WIP = ""
}

func (f *Fetcher) path(name string) string {
	return filepath.Join(f.Dir, name)
}

func (f *Fetcher) download(ctx context.Context, key, name string) error {
	out, err := os.Create(f.path(name))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	f.tempFiles = append(f.tempFiles, name)

	n, err := f.Store.Download(ctx, f.Bucket, key, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to fetch enfuser data: %w", err)
	}
	f.Log.WithFields(log.Fields{"key": key, "bytes": n}).Debug("downloaded enfuser archive")
	return nil
}

// extract writes the allPollutants member of the archive into Dir and
// returns its name.
func (f *Fetcher) extract(zipName string) (string, error) {
	zr, err := zip.OpenReader(f.path(zipName))
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", zipName, err)
	}
	defer func() { _ = zr.Close() }()

	for _, zf := range zr.File {
		name := filepath.Base(zf.Name)
		if zf.FileInfo().IsDir() || !strings.Contains(name, netcdfMemberPrefix) {
			continue
		}
		if err := extractFile(zf, f.path(name)); err != nil {
			return "", fmt.Errorf("failed to extract %s from %s: %w", zf.Name, zipName, err)
		}
		f.tempFiles = append(f.tempFiles, name)
		return name, nil
	}
	return "", fmt.Errorf("no %s file in %s", netcdfMemberPrefix, zipName)
}

func extractFile(zf *zip.File, dst string) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// fillNoData replaces nodata cells of the grid in place. Nodata may sit
// slightly above its nominal value after conversion, so the threshold is
// searched for.
func (f *Fetcher) fillNoData(asc string) (*FetchResult, error) {
	g, err := readGrid(f.path(asc))
	if err != nil {
		return nil, err
	}

	threshold, probes, ok := g.NodataThreshold(f.NodataValue, f.MinNodataCount)
	for _, p := range probes {
		f.Log.Infof("nodata offset: %g nodata count: %d", p.Offset, p.Count)
	}
	if !ok {
		f.Log.Warnf("failed to set nodata values in the AQI grid, nodata count: %d", probes[len(probes)-1].Count)
	}

	filled := g.FillNoData(threshold, f.FillDistance)
	invalid := g.CountBelow(1)
	if invalid > 0 {
		f.Log.Warnf("AQI grid has %d below 1 AQI values after nodata fill", invalid)
	}

	if err := writeGrid(f.path(asc), g); err != nil {
		return nil, err
	}
	return &FetchResult{Threshold: threshold, NodataFound: ok, Filled: filled, Invalid: invalid}, nil
}

func readGrid(path string) (*raster.Grid, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open grid: %w", err)
	}
	defer func() { _ = in.Close() }()

	g, err := raster.ReadAAIGrid(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return g, nil
}

func writeGrid(path string, g *raster.Grid) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create grid: %w", err)
	}
	if err := g.WriteAAIGrid(out); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return out.Close()
}

func (f *Fetcher) removeTempFiles() {
	var kept []string
	removed := 0
	for _, name := range f.tempFiles {
		err := os.Remove(f.path(name))
		switch {
		case err == nil:
			removed++
		case os.IsNotExist(err):
		default:
			kept = append(kept, name)
		}
	}
	f.Log.Infof("removed %d temp files", removed)
	if len(kept) > 0 {
		f.Log.Warnf("could not remove %d files", len(kept))
	}
	f.tempFiles = kept
}

// removeOldFiles deletes rasters and grids other than the latest ones.
func (f *Fetcher) removeOldFiles() {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		f.Log.WithError(err).Warn("failed to list AQI cache")
		return
	}

	keep := map[string]bool{f.Latest: true, ASCName(f.Latest): true}
	removed, failed := 0, 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || keep[name] {
			continue
		}
		if !strings.HasSuffix(name, ".tif") && !strings.HasSuffix(name, ".asc") {
			continue
		}
		if err := os.Remove(f.path(name)); err != nil {
			failed++
			continue
		}
		removed++
	}
	f.Log.Infof("removed %d old AQI tif files", removed)
	if failed > 0 {
		f.Log.Warnf("could not remove %d old AQI tif files", failed)
	}
}
