package xcubesh

import "time"

// Constants with externally-visible meaning. These values are part of the
// observable behavior of the package and must not drift.
const (
	// DefaultTileSize is the tile edge length, in pixels, used when a
	// caller does not specify one.
	DefaultTileSize = 1000

	// ShMaxImageSize is the largest width or height, in pixels, the
	// provider accepts for a single request.
	ShMaxImageSize = 2500

	// ShCatalogFeatureLimit is the page size used when paginating the
	// tile-feature catalog.
	ShCatalogFeatureLimit = 100

	// BandDataArrayName is the name of the single data variable used by
	// the 4D ("band_data") cube layout.
	BandDataArrayName = "band_data"
)

// DefaultTimeTolerance is applied to time_tolerance when neither it nor
// time_period is supplied.
var DefaultTimeTolerance = 10 * time.Minute
