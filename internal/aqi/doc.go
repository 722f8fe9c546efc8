// Package aqi is the AQI updater application: it downloads the hourly
// Enfuser air quality forecast, turns its AQI layer into a gap-free raster,
// samples the raster at the midpoint of every street network edge and
// publishes the result as an edge update CSV and a JSON map for the
// routing service.
//
// The application is split into a Fetcher (download and raster
// processing), an Updater (edge sampling and export) and an App that polls
// both, mirroring the two independent steps of each hourly cycle.
package aqi
