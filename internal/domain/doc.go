// Package domain models PM2.5 sensor telemetry and the pure logic of the
// estimation pipeline: area-model resolution, length-scale selection, data
// conditioning, calibration, and time chunking.
//
// # Sensor Data Conventions
//
// Readings arrive from heterogeneous networks (research-grade monitors,
// low-cost PMS-series particle counters, regulatory stations) with
// irregular sampling in both space and time. Each reading carries a WGS-84
// lat/lon, a UTC timestamp, and a raw PM2.5 value in µg/m³. The pair (0,0)
// is the universal "no GPS fix" sentinel and is treated as unprojectable.
//
// # Area Models
//
// Service coverage is divided into named geographic areas, each with its
// own bounding polygon, timezone, telemetry source tables, calibration
// factors, and elevation raster. A query is routed to exactly one area by
// point-in-polygon test; a point outside every area is a terminal error.
//
// # Calibration
//
// Low-cost optical sensors over- or under-count depending on model and
// season, so each area carries linear correction factors (slope/intercept)
// keyed by sensor model and a half-open validity interval [start, end).
// The first factor in configured order that covers the reading's timestamp
// wins. A reading with no covering factor keeps its raw value, clamped
// non-negative, and is labeled uncorrected so consumers can tell the two
// apart.
//
// # Outlier Quarantine
//
// A sensor whose mean reading for a calendar day (days since the Unix
// epoch, UTC) exceeds a ceiling (350 µg/m³ by default) is assumed broken
// or obstructed for that day, and a single extreme day biases the baseline
// of the days around it. The filter therefore drops the flagged day plus
// one day on either side for that sensor. The ceiling and quarantine width
// are operational constants inherited from the deployed calibration work;
// they are configurable but have no documented statistical derivation.
//
// # Length Scales
//
// The interpolation model's kernel widths (spatial meters, elevation
// meters, time hours) are periodically re-fit, so each area stores a list
// of length-scale profiles with validity intervals. The first profile
// overlapping the query window is used; zero overlapping profiles is a
// terminal configuration error.
package domain
