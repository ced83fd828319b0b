package xcubesh

import "fmt"

// InvalidConfigError is returned when a CubeConfig cannot be constructed:
// unknown parameter names, conflicting time_period/time_tolerance, an
// inverted bbox, or a non-positive spatial_res/tile_size.
type InvalidConfigError struct {
	Message string
}

func (e *InvalidConfigError) Error() string {
	return e.Message
}

func invalidConfigf(format string, args ...interface{}) error {
	return &InvalidConfigError{Message: fmt.Sprintf(format, args...)}
}

// UnknownCrsError is returned when a CRS identifier is neither a known
// short form nor a known URI.
type UnknownCrsError struct {
	Input string
}

func (e *UnknownCrsError) Error() string {
	return fmt.Sprintf("unknown CRS %q", e.Input)
}

// UnknownDatasetError is returned when a dataset name is not present in
// the DatasetCatalog.
type UnknownDatasetError struct {
	DatasetName string
}

func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("unknown dataset %q", e.DatasetName)
}

// UnknownBandError is returned when a requested band is not listed for
// a dataset.
type UnknownBandError struct {
	DatasetName string
	BandName    string
}

func (e *UnknownBandError) Error() string {
	return fmt.Sprintf("unknown band %q for dataset %q", e.BandName, e.DatasetName)
}

// KeyNotFoundError is returned by VirtualStore.Get for any key outside
// the synthesized metadata set and not a valid chunk address.
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("key not found: %q", e.Key)
}

// TileShapeMismatchError is returned by the PixelDecoder when a
// provider response's declared width/height/components do not match
// the expected chunk geometry.
type TileShapeMismatchError struct {
	ExpectedWidth, ExpectedHeight, ExpectedComponents int
	ActualWidth, ActualHeight, ActualComponents       int
}

func (e *TileShapeMismatchError) Error() string {
	return fmt.Sprintf(
		"tile shape mismatch: expected %dx%dx%d, got %dx%dx%d",
		e.ExpectedWidth, e.ExpectedHeight, e.ExpectedComponents,
		e.ActualWidth, e.ActualHeight, e.ActualComponents,
	)
}

// EmptyTileError indicates a zero-length provider response body. The
// store recovers from this locally by substituting the configured
// fill value; it is exported so callers constructing their own
// PixelDecoder pipelines can detect the same condition.
type EmptyTileError struct {
	Variable string
}

func (e *EmptyTileError) Error() string {
	return fmt.Sprintf("empty tile response for %q", e.Variable)
}

// CatalogError wraps an error returned by a CatalogClient collaborator.
type CatalogError struct {
	Err error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog error: %v", e.Err)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// ProviderError wraps an error returned by a TileClient collaborator.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
