package xcubesh

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleRequest() TileRequest {
	return TileRequest{
		Bands:         []string{"VV"},
		SampleTypes:   []string{"uint16"},
		FillValues:    []float64{0},
		Width:         4,
		Height:        3,
		NumComponents: 1,
	}
}

func TestDecodePassesRawSamples(t *testing.T) {
	req := sampleRequest()
	body := make([]byte, 4*3*2)
	for i := range body {
		body[i] = byte(i)
	}
	out, err := NewPixelDecoder().Decode(req, "VV", TileResponse{
		Width: 4, Height: 3, Components: 1, SampleType: "uint16", Body: body,
	})
	assert.Nil(t, err)
	assert.Equal(t, body, out)
}

func TestDecodeGzipEnvelope(t *testing.T) {
	req := sampleRequest()
	body := make([]byte, 4*3*2)
	for i := range body {
		body[i] = byte(i * 3)
	}
	var compressed bytes.Buffer
	w := gzip.NewWriter(&compressed)
	w.Write(body)
	w.Close()

	out, err := NewPixelDecoder().Decode(req, "VV", TileResponse{
		Width: 4, Height: 3, Components: 1, SampleType: "uint16", Body: compressed.Bytes(),
	})
	assert.Nil(t, err)
	assert.Equal(t, body, out)
}

func TestDecodeShapeMismatch(t *testing.T) {
	req := sampleRequest()
	var mismatch *TileShapeMismatchError

	_, err := NewPixelDecoder().Decode(req, "VV", TileResponse{
		Width: 5, Height: 3, Components: 1, SampleType: "uint16", Body: make([]byte, 5*3*2),
	})
	assert.ErrorAs(t, err, &mismatch)

	_, err = NewPixelDecoder().Decode(req, "VV", TileResponse{
		Width: 4, Height: 3, Components: 2, SampleType: "uint16", Body: make([]byte, 4*3*2*2),
	})
	assert.ErrorAs(t, err, &mismatch)

	// declared shape right, body short
	_, err = NewPixelDecoder().Decode(req, "VV", TileResponse{
		Width: 4, Height: 3, Components: 1, SampleType: "uint16", Body: make([]byte, 7),
	})
	assert.ErrorAs(t, err, &mismatch)
}

func TestDecodeEmptyTile(t *testing.T) {
	req := sampleRequest()
	_, err := NewPixelDecoder().Decode(req, "VV", TileResponse{Width: 4, Height: 3, Components: 1, SampleType: "uint16"})
	var empty *EmptyTileError
	assert.ErrorAs(t, err, &empty)
	assert.Equal(t, "VV", empty.Variable)
}

func TestFillBuffer(t *testing.T) {
	out := FillBuffer("float32", []float64{1.5}, 2, 2, 1)
	assert.Equal(t, 2*2*4, len(out))
	for i := 0; i < 4; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(out[i*4:]))
		assert.Equal(t, float32(1.5), v)
	}

	// per-band fill values interleave in component order
	out = FillBuffer("uint16", []float64{7, 9}, 2, 1, 2)
	assert.Equal(t, 2*1*2*2, len(out))
	assert.Equal(t, uint16(7), binary.LittleEndian.Uint16(out[0:]))
	assert.Equal(t, uint16(9), binary.LittleEndian.Uint16(out[2:]))
	assert.Equal(t, uint16(7), binary.LittleEndian.Uint16(out[4:]))
}

func TestBytesPerSample(t *testing.T) {
	assert.Equal(t, 1, BytesPerSample("uint8"))
	assert.Equal(t, 2, BytesPerSample("uint16"))
	assert.Equal(t, 2, BytesPerSample("int16"))
	assert.Equal(t, 4, BytesPerSample("uint32"))
	assert.Equal(t, 4, BytesPerSample("float32"))
	assert.Equal(t, 8, BytesPerSample("float64"))
}
