package raster

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/golang/snappy"

	"github.com/hydrosight/waterbodies/internal/grid"
)

// Serialized raster layout: 4-byte magic, 1-byte sample type, geobox
// (origin and resolution as float64, width and height as uint32), then the
// snappy-compressed little-endian pixel block.
var magic = [4]byte{'W', 'B', 'R', '1'}

const headerLen = 4 + 1 + 8*4 + 4*2

const (
	dtUint8 = iota + 1
	dtInt16
	dtInt32
	dtFloat32
	dtFloat64
)

func dtype[T Pixel]() byte {
	var z T
	switch any(z).(type) {
	case uint8:
		return dtUint8
	case int16:
		return dtInt16
	case int32:
		return dtInt32
	case float32:
		return dtFloat32
	default:
		return dtFloat64
	}
}

// Encode serializes a raster to the compressed wire form.
func Encode[T Pixel](r *Raster[T]) []byte {
	head := make([]byte, headerLen)
	copy(head[:4], magic[:])
	head[4] = dtype[T]()
	off := 5
	for _, f := range []float64{r.GB.OriginX, r.GB.OriginY, r.GB.ResX, r.GB.ResY} {
		binary.LittleEndian.PutUint64(head[off:], math.Float64bits(f))
		off += 8
	}
	binary.LittleEndian.PutUint32(head[off:], uint32(r.GB.Width))
	binary.LittleEndian.PutUint32(head[off+4:], uint32(r.GB.Height))

	raw := pixBytes(r.Pix)
	return append(head, snappy.Encode(nil, raw)...)
}

// Decode parses the compressed wire form back into a raster. The sample
// type must match the one the raster was encoded with.
func Decode[T Pixel](b []byte) (*Raster[T], error) {
	if len(b) < headerLen || [4]byte(b[:4]) != magic {
		return nil, fmt.Errorf("raster: bad magic")
	}
	if b[4] != dtype[T]() {
		return nil, fmt.Errorf("raster: sample type %d, want %d", b[4], dtype[T]())
	}
	var gb grid.GeoBox
	off := 5
	fs := make([]float64, 4)
	for i := range fs {
		fs[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
		off += 8
	}
	gb.OriginX, gb.OriginY, gb.ResX, gb.ResY = fs[0], fs[1], fs[2], fs[3]
	gb.Width = int(binary.LittleEndian.Uint32(b[off:]))
	gb.Height = int(binary.LittleEndian.Uint32(b[off+4:]))

	raw, err := snappy.Decode(nil, b[headerLen:])
	if err != nil {
		return nil, fmt.Errorf("raster: decompress: %w", err)
	}
	pix, err := bytesPix[T](raw, gb.Width*gb.Height)
	if err != nil {
		return nil, err
	}
	return &Raster[T]{GB: gb, Pix: pix}, nil
}

func pixBytes[T Pixel](pix []T) []byte {
	switch p := any(pix).(type) {
	case []uint8:
		out := make([]byte, len(p))
		copy(out, p)
		return out
	case []int16:
		out := make([]byte, 2*len(p))
		for i, v := range p {
			binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
		}
		return out
	case []int32:
		out := make([]byte, 4*len(p))
		for i, v := range p {
			binary.LittleEndian.PutUint32(out[4*i:], uint32(v))
		}
		return out
	case []float32:
		out := make([]byte, 4*len(p))
		for i, v := range p {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out
	case []float64:
		out := make([]byte, 8*len(p))
		for i, v := range p {
			binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
		}
		return out
	}
	return nil
}

func bytesPix[T Pixel](raw []byte, n int) ([]T, error) {
	pix := make([]T, n)
	switch p := any(pix).(type) {
	case []uint8:
		if len(raw) != n {
			return nil, fmt.Errorf("raster: pixel block is %d bytes, want %d", len(raw), n)
		}
		copy(p, raw)
	case []int16:
		if len(raw) != 2*n {
			return nil, fmt.Errorf("raster: pixel block is %d bytes, want %d", len(raw), 2*n)
		}
		for i := range p {
			p[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
		}
	case []int32:
		if len(raw) != 4*n {
			return nil, fmt.Errorf("raster: pixel block is %d bytes, want %d", len(raw), 4*n)
		}
		for i := range p {
			p[i] = int32(binary.LittleEndian.Uint32(raw[4*i:]))
		}
	case []float32:
		if len(raw) != 4*n {
			return nil, fmt.Errorf("raster: pixel block is %d bytes, want %d", len(raw), 4*n)
		}
		for i := range p {
			p[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
		}
	case []float64:
		if len(raw) != 8*n {
			return nil, fmt.Errorf("raster: pixel block is %d bytes, want %d", len(raw), 8*n)
		}
		for i := range p {
			p[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
		}
	}
	return pix, nil
}
