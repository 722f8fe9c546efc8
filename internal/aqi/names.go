package aqi

import (
	"strings"
	"time"
)

// TimestampLayout is the hour resolution timestamp used in every artifact
// name, e.g. 2024-03-01T12.
const TimestampLayout = "2006-01-02T15"

// MapFileName is the AQI map JSON written next to the update CSVs.
const MapFileName = "aqi_map.json"

// Timestamp formats t in UTC with TimestampLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// TifName returns the AQI raster name for the hour containing t.
func TifName(t time.Time) string {
	return "aqi_" + Timestamp(t) + ".tif"
}

// ZipName returns the local name of the Enfuser archive for the hour
// containing t.
func ZipName(t time.Time) string {
	return "allPollutants_" + Timestamp(t) + ".zip"
}

// EnfuserKey returns the S3 object key of the Enfuser archive.
func EnfuserKey(prefix string, t time.Time) string {
	return prefix + ZipName(t)
}

// CSVName returns the edge update CSV name produced from a raster.
func CSVName(tif string) string {
	return strings.TrimSuffix(tif, ".tif") + ".csv"
}

// ASCName returns the ASCII grid kept alongside a raster.
func ASCName(tif string) string {
	return strings.TrimSuffix(tif, ".tif") + ".asc"
}
