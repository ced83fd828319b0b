package xcubesh

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// TileResponse is the decoded shape of a provider response: declared
// geometry headers plus the raw sample body.
type TileResponse struct {
	Width, Height, Components int
	SampleType                string
	Body                      []byte
}

// PixelDecoder validates a provider's tile response against the
// requested chunk geometry and repackages its raw samples into the
// chunked-array binary layout: row-major (y, x) for 3D chunks, or
// (y, x, band) for 4D chunks.
type PixelDecoder struct{}

// NewPixelDecoder returns a PixelDecoder. It carries no state.
func NewPixelDecoder() *PixelDecoder { return &PixelDecoder{} }

// Decode validates resp against the geometry wanted by req/key and
// returns the chunk's raw bytes. It returns EmptyTileError for a
// zero-length body (recovered by the caller with FillBuffer) and
// TileShapeMismatchError when the declared width/height/components
// disagree with the expected chunk geometry.
func (PixelDecoder) Decode(req TileRequest, variable string, resp TileResponse) ([]byte, error) {
	if len(resp.Body) == 0 {
		return nil, &EmptyTileError{Variable: variable}
	}

	body := resp.Body
	if isGzip(body) {
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("tile envelope: %w", err)
		}
		body, err = io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("tile envelope: %w", err)
		}
	}

	expectedComponents := req.NumComponents
	if resp.Width != req.Width || resp.Height != req.Height || resp.Components != expectedComponents {
		return nil, &TileShapeMismatchError{
			ExpectedWidth: req.Width, ExpectedHeight: req.Height, ExpectedComponents: expectedComponents,
			ActualWidth: resp.Width, ActualHeight: resp.Height, ActualComponents: resp.Components,
		}
	}

	bps := BytesPerSample(resp.SampleType)
	expectedLen := resp.Width * resp.Height * resp.Components * bps
	if len(body) != expectedLen {
		return nil, &TileShapeMismatchError{
			ExpectedWidth: req.Width, ExpectedHeight: req.Height, ExpectedComponents: expectedComponents,
			ActualWidth: resp.Width, ActualHeight: resp.Height, ActualComponents: resp.Components,
		}
	}

	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

func isGzip(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b
}

// BytesPerSample returns the on-wire size of one sample of the given
// declared sample type.
func BytesPerSample(sampleType string) int {
	switch sampleType {
	case "uint8", "int8":
		return 1
	case "uint16", "int16":
		return 2
	case "uint32", "int32", "float32":
		return 4
	case "float64":
		return 8
	default:
		return 4
	}
}

// FillBuffer returns width*height*components samples, each component c
// set to fillValues[c % len(fillValues)], row-major. The VirtualStore
// uses this to recover from EmptyTileError by substituting the
// configured per-band fill values.
func FillBuffer(sampleType string, fillValues []float64, width, height, components int) []byte {
	n := width * height * components
	bps := BytesPerSample(sampleType)
	out := make([]byte, n*bps)
	for i := 0; i < n; i++ {
		fv := fillValues[i%len(fillValues)]
		writeSample(out[i*bps:(i+1)*bps], sampleType, fv)
	}
	return out
}

func writeSample(dst []byte, sampleType string, v float64) {
	switch sampleType {
	case "uint8":
		dst[0] = byte(uint8(v))
	case "int8":
		dst[0] = byte(int8(v))
	case "uint16":
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case "int16":
		binary.LittleEndian.PutUint16(dst, uint16(int16(v)))
	case "uint32":
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case "int32":
		binary.LittleEndian.PutUint32(dst, uint32(int32(v)))
	case "float32":
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
	case "float64":
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
	default:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
	}
}
