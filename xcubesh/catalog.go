package xcubesh

// BandInfo describes the static metadata of a single spectral band of a
// dataset known to DatasetCatalog.
type BandInfo struct {
	Name       string
	SampleType string
	FillValue  float64
	Units      string
}

// DatasetInfo is a dataset's default band list and per-band metadata, as
// known to DatasetCatalog.
type DatasetInfo struct {
	Name  string
	Bands []BandInfo
}

// DatasetCatalog is a static lookup of known dataset names to their
// default band list, sample type, fill value, and units, loaded from
// packaged metadata. It never performs network I/O.
type DatasetCatalog struct {
	datasets map[string]DatasetInfo
}

// NewDatasetCatalog returns a DatasetCatalog populated with the built-in
// dataset dictionary.
func NewDatasetCatalog() *DatasetCatalog {
	return &DatasetCatalog{datasets: builtinDatasets()}
}

// Lookup returns the DatasetInfo for the given name, or UnknownDatasetError.
func (c *DatasetCatalog) Lookup(name string) (DatasetInfo, error) {
	info, ok := c.datasets[name]
	if !ok {
		return DatasetInfo{}, &UnknownDatasetError{DatasetName: name}
	}
	return info, nil
}

// DefaultBandNames returns the dataset's default ordered band name list.
func (c *DatasetCatalog) DefaultBandNames(datasetName string) ([]string, error) {
	info, err := c.Lookup(datasetName)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(info.Bands))
	for i, b := range info.Bands {
		names[i] = b.Name
	}
	return names, nil
}

// Band returns the BandInfo for a single band of a dataset, or
// UnknownBandError if the dataset does not list that band.
func (c *DatasetCatalog) Band(datasetName, bandName string) (BandInfo, error) {
	info, err := c.Lookup(datasetName)
	if err != nil {
		return BandInfo{}, err
	}
	for _, b := range info.Bands {
		if b.Name == bandName {
			return b, nil
		}
	}
	return BandInfo{}, &UnknownBandError{DatasetName: datasetName, BandName: bandName}
}

func builtinDatasets() map[string]DatasetInfo {
	uint16Band := func(name, units string) BandInfo {
		return BandInfo{Name: name, SampleType: "uint16", FillValue: 0, Units: units}
	}
	float32Band := func(name, units string) BandInfo {
		return BandInfo{Name: name, SampleType: "float32", FillValue: 0, Units: units}
	}

	return map[string]DatasetInfo{
		"S2L1C": {
			Name: "S2L1C",
			Bands: []BandInfo{
				uint16Band("B01", "reflectance"), uint16Band("B02", "reflectance"),
				uint16Band("B03", "reflectance"), uint16Band("B04", "reflectance"),
				uint16Band("B05", "reflectance"), uint16Band("B06", "reflectance"),
				uint16Band("B07", "reflectance"), uint16Band("B08", "reflectance"),
				uint16Band("B8A", "reflectance"), uint16Band("B09", "reflectance"),
				uint16Band("B10", "reflectance"), uint16Band("B11", "reflectance"),
				uint16Band("B12", "reflectance"),
			},
		},
		"S2L2A": {
			Name: "S2L2A",
			Bands: []BandInfo{
				uint16Band("B01", "reflectance"), uint16Band("B02", "reflectance"),
				uint16Band("B03", "reflectance"), uint16Band("B04", "reflectance"),
				uint16Band("B05", "reflectance"), uint16Band("B06", "reflectance"),
				uint16Band("B07", "reflectance"), uint16Band("B08", "reflectance"),
				uint16Band("B8A", "reflectance"), uint16Band("B09", "reflectance"),
				uint16Band("B11", "reflectance"), uint16Band("B12", "reflectance"),
				{Name: "SCL", SampleType: "uint8", FillValue: 0, Units: "dimensionless"},
			},
		},
		"S1GRD": {
			Name: "S1GRD",
			Bands: []BandInfo{
				float32Band("VV", "dB"), float32Band("VH", "dB"),
			},
		},
		"DEM": {
			Name: "DEM",
			Bands: []BandInfo{
				float32Band("DEM", "meters"),
			},
		},
		"MODIS": {
			Name: "MODIS",
			Bands: []BandInfo{
				uint16Band("B01", "reflectance"), uint16Band("B02", "reflectance"),
			},
		},
		"LANDSAT8_L1C": {
			Name: "LANDSAT8_L1C",
			Bands: []BandInfo{
				uint16Band("B01", "reflectance"), uint16Band("B02", "reflectance"),
				uint16Band("B03", "reflectance"), uint16Band("B04", "reflectance"),
				uint16Band("B05", "reflectance"), uint16Band("B06", "reflectance"),
				uint16Band("B07", "reflectance"),
			},
		},
		"CUSTOM": {
			// BYOC datasets are identified via collection_id; the "CUSTOM"
			// entry supplies a generic single-band default for them.
			Name: "CUSTOM",
			Bands: []BandInfo{
				float32Band("band_1", "dimensionless"),
			},
		},
	}
}
