package xcubesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogLookup(t *testing.T) {
	catalog := NewDatasetCatalog()

	info, err := catalog.Lookup("S2L2A")
	assert.Nil(t, err)
	assert.Equal(t, 13, len(info.Bands))

	names, err := catalog.DefaultBandNames("S1GRD")
	assert.Nil(t, err)
	assert.Equal(t, []string{"VV", "VH"}, names)

	band, err := catalog.Band("S2L2A", "SCL")
	assert.Nil(t, err)
	assert.Equal(t, "uint8", band.SampleType)

	band, err = catalog.Band("DEM", "DEM")
	assert.Nil(t, err)
	assert.Equal(t, "float32", band.SampleType)
	assert.Equal(t, "meters", band.Units)
}

func TestCatalogUnknowns(t *testing.T) {
	catalog := NewDatasetCatalog()

	_, err := catalog.Lookup("NOPE")
	var unknownDataset *UnknownDatasetError
	assert.ErrorAs(t, err, &unknownDataset)

	_, err = catalog.Band("S2L2A", "B77")
	var unknownBand *UnknownBandError
	assert.ErrorAs(t, err, &unknownBand)
}
