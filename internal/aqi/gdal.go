package aqi

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Converter turns Enfuser NetCDF layers into rasters.
type Converter interface {
	// NetCDFToGrid writes variable of the NetCDF file as an ESRI ASCII
	// grid with scale and offset applied.
	NetCDFToGrid(ctx context.Context, ncPath, variable, ascPath string) error

	// GridToGeoTIFF writes an ASCII grid as a WGS84 GeoTIFF.
	GridToGeoTIFF(ctx context.Context, ascPath, tifPath string) error
}

// GDAL is a Converter that shells out to gdal_translate.
type GDAL struct {
	// Translate is the gdal_translate binary, looked up in PATH when it
	// has no directory part.
	Translate string
}

// NewGDAL returns a converter using gdal_translate from PATH.
func NewGDAL() *GDAL {
	return &GDAL{Translate: "gdal_translate"}
}

func (g *GDAL) NetCDFToGrid(ctx context.Context, ncPath, variable, ascPath string) error {
	src := fmt.Sprintf("NETCDF:%q:%s", ncPath, variable)
	return g.run(ctx, "-q", "-of", "AAIGrid", "-ot", "Float32", "-unscale", "-b", "1", src, ascPath)
}

func (g *GDAL) GridToGeoTIFF(ctx context.Context, ascPath, tifPath string) error {
	return g.run(ctx, "-q", "-of", "GTiff", "-a_srs", "EPSG:4326", ascPath, tifPath)
}

func (g *GDAL) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, g.Translate, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("%s %s: %w", g.Translate, strings.Join(args, " "), err)
		}
		return fmt.Errorf("%s %s: %w: %s", g.Translate, strings.Join(args, " "), err, msg)
	}
	return nil
}
