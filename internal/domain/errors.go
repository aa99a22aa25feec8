package domain

import "errors"

// Terminal pipeline errors. All are configuration or input problems that
// must be reported to the caller before (or instead of) producing output;
// none are retried internally.
var (
	// ErrNoAreaModel means the query location is outside every configured area.
	ErrNoAreaModel = errors.New("no corresponding area model")

	// ErrNoLengthScales means no length-scale profile overlaps the query window.
	ErrNoLengthScales = errors.New("length scales do not cover the query window")

	// ErrZoneSpan means the query region crosses a UTM zone boundary, so a
	// single planar projection cannot be used.
	ErrZoneSpan = errors.New("query region spans UTM zones")

	// ErrShapeMismatch means a multi-point query supplied latitude and
	// longitude lists of different lengths.
	ErrShapeMismatch = errors.New("latitude and longitude lists differ in length")

	// ErrEmptyQuery means the query resolved to zero timestamps or locations.
	ErrEmptyQuery = errors.New("query has no timestamps or locations")
)
