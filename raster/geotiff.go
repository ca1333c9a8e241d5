package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// GeoTIFF decoding for single-band DEMs. Classic TIFF only, strip or
// tile layout, uncompressed, Deflate or PackBits data. This covers what
// elevation providers actually ship; exotic layouts fail with a
// descriptive error rather than bad data.

// TIFF tags used here.
const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagPredictor        = 317
	tagTileWidth        = 322
	tagTileLength       = 323
	tagTileOffsets      = 324
	tagTileByteCounts   = 325
	tagSampleFormat     = 339
	tagModelPixelScale  = 33550
	tagModelTiepoint    = 33922
	tagModelTransform   = 34264
	tagGeoKeyDirectory  = 34735
	tagGDALNoData       = 42113
)

// TIFF compression schemes.
const (
	compressionNone       = 1
	compressionPackBits   = 32773
	compressionDeflate    = 8
	compressionOldDeflate = 32946
)

// Sample formats.
const (
	formatUint  = 1
	formatInt   = 2
	formatFloat = 3
)

// GeoTIFF key IDs carrying the coordinate system.
const (
	keyGeographicType  = 2048
	keyProjectedCSType = 3072
)

// OpenGeoTIFF reads a single-band GeoTIFF DEM from path.
func OpenGeoTIFF(path string) (*Raster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := DecodeGeoTIFF(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// DecodeGeoTIFF decodes an in-memory single-band GeoTIFF DEM.
func DecodeGeoTIFF(data []byte) (*Raster, error) {
	if len(data) < 8 {
		return nil, errors.New("geotiff: file too short")
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, errors.New("geotiff: not a TIFF file")
	}
	switch order.Uint16(data[2:]) {
	case 42:
	case 43:
		return nil, errors.New("geotiff: BigTIFF is not supported")
	default:
		return nil, errors.New("geotiff: bad TIFF magic")
	}
	ifdOffset := order.Uint32(data[4:])
	dir, err := parseIFD(data, order, ifdOffset)
	if err != nil {
		return nil, err
	}

	width := int(dir.uintOr(tagImageWidth, 0))
	height := int(dir.uintOr(tagImageLength, 0))
	if width <= 0 || height <= 0 {
		return nil, errors.New("geotiff: missing image dimensions")
	}
	if spp := dir.uintOr(tagSamplesPerPixel, 1); spp != 1 {
		return nil, fmt.Errorf("geotiff: want single band, got %d samples per pixel", spp)
	}
	bits := dir.uintOr(tagBitsPerSample, 1)
	format := dir.uintOr(tagSampleFormat, formatUint)
	compression := dir.uintOr(tagCompression, compressionNone)
	predictor := dir.uintOr(tagPredictor, 1)
	decode, bytesPerSample, err := sampleDecoder(format, bits, order)
	if err != nil {
		return nil, err
	}
	if predictor == 2 && format == formatFloat {
		return nil, errors.New("geotiff: horizontal predictor on float samples is not supported")
	}
	if predictor > 2 {
		return nil, fmt.Errorf("geotiff: predictor %d is not supported", predictor)
	}

	ref, err := georeference(dir)
	if err != nil {
		return nil, err
	}

	values := make([]float64, width*height)
	for i := range values {
		values[i] = math.NaN()
	}
	if dir.has(tagTileOffsets) {
		err = decodeTiles(data, dir, values, width, height,
			compression, predictor, bytesPerSample, decode)
	} else {
		err = decodeStrips(data, dir, values, width, height,
			compression, predictor, bytesPerSample, decode)
	}
	if err != nil {
		return nil, err
	}

	out := NewRaster(width, height, ref, values)
	out.EPSG = epsgCode(dir)
	if nodata, ok := noDataValue(dir); ok {
		out.SetNoData(nodata)
	}
	return out, nil
}

// ifdField is one resolved IFD entry with its raw value bytes.
type ifdField struct {
	typ   uint16
	count uint32
	raw   []byte
}

type ifd struct {
	order  binary.ByteOrder
	fields map[uint16]ifdField
}

var typeSizes = map[uint16]int{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8,
}

func parseIFD(data []byte, order binary.ByteOrder, offset uint32) (*ifd, error) {
	if int(offset)+2 > len(data) {
		return nil, errors.New("geotiff: IFD offset out of range")
	}
	n := int(order.Uint16(data[offset:]))
	dir := &ifd{order: order, fields: make(map[uint16]ifdField, n)}
	pos := int(offset) + 2
	for i := 0; i < n; i++ {
		if pos+12 > len(data) {
			return nil, errors.New("geotiff: truncated IFD entry")
		}
		tag := order.Uint16(data[pos:])
		typ := order.Uint16(data[pos+2:])
		count := order.Uint32(data[pos+4:])
		size, ok := typeSizes[typ]
		if !ok {
			pos += 12
			continue // unknown field type, skip
		}
		total := size * int(count)
		var raw []byte
		if total <= 4 {
			raw = data[pos+8 : pos+8+total]
		} else {
			valOff := int(order.Uint32(data[pos+8:]))
			if valOff+total > len(data) {
				return nil, fmt.Errorf("geotiff: tag %d value out of range", tag)
			}
			raw = data[valOff : valOff+total]
		}
		dir.fields[tag] = ifdField{typ: typ, count: count, raw: raw}
		pos += 12
	}
	return dir, nil
}

func (d *ifd) has(tag uint16) bool {
	_, ok := d.fields[tag]
	return ok
}

// uints resolves an integer-valued field as a slice.
func (d *ifd) uints(tag uint16) []uint64 {
	f, ok := d.fields[tag]
	if !ok {
		return nil
	}
	out := make([]uint64, 0, f.count)
	for i := 0; i < int(f.count); i++ {
		switch f.typ {
		case 1: // BYTE
			out = append(out, uint64(f.raw[i]))
		case 3: // SHORT
			out = append(out, uint64(d.order.Uint16(f.raw[2*i:])))
		case 4: // LONG
			out = append(out, uint64(d.order.Uint32(f.raw[4*i:])))
		default:
			return nil
		}
	}
	return out
}

func (d *ifd) uintOr(tag uint16, def uint64) uint64 {
	v := d.uints(tag)
	if len(v) == 0 {
		return def
	}
	return v[0]
}

// doubles resolves a DOUBLE-valued field as a slice.
func (d *ifd) doubles(tag uint16) []float64 {
	f, ok := d.fields[tag]
	if !ok || f.typ != 12 {
		return nil
	}
	out := make([]float64, f.count)
	for i := range out {
		out[i] = math.Float64frombits(d.order.Uint64(f.raw[8*i:]))
	}
	return out
}

// ascii resolves an ASCII field, trimming the NUL terminator.
func (d *ifd) ascii(tag uint16) (string, bool) {
	f, ok := d.fields[tag]
	if !ok || f.typ != 2 {
		return "", false
	}
	return strings.TrimRight(string(f.raw), "\x00"), true
}

// georeference extracts the axis-aligned affine transform.
func georeference(dir *ifd) (GeoRef, error) {
	scale := dir.doubles(tagModelPixelScale)
	tie := dir.doubles(tagModelTiepoint)
	if len(scale) >= 2 && len(tie) >= 6 {
		// Tiepoint maps raster point (i,j) to model point (x,y).
		i, j := tie[0], tie[1]
		x, y := tie[3], tie[4]
		return GeoRef{
			OriginX: x - i*scale[0],
			OriginY: y + j*scale[1],
			DX:      scale[0],
			DY:      -scale[1],
		}, nil
	}
	if m := dir.doubles(tagModelTransform); len(m) >= 16 {
		if m[1] != 0 || m[4] != 0 {
			return GeoRef{}, errors.New("geotiff: rotated rasters are not supported")
		}
		return GeoRef{OriginX: m[3], OriginY: m[7], DX: m[0], DY: m[5]}, nil
	}
	return GeoRef{}, errors.New("geotiff: no georeferencing tags present")
}

// epsgCode pulls the coordinate system code out of the GeoKey
// directory. Projected codes win over geographic ones.
func epsgCode(dir *ifd) int {
	keys := dir.uints(tagGeoKeyDirectory)
	if len(keys) < 4 {
		return 0
	}
	epsg := 0
	for i := 4; i+3 < len(keys); i += 4 {
		id, loc, value := keys[i], keys[i+1], keys[i+3]
		if loc != 0 {
			continue // value stored in another tag, not a plain code
		}
		switch id {
		case keyProjectedCSType:
			return int(value)
		case keyGeographicType:
			epsg = int(value)
		}
	}
	return epsg
}

func noDataValue(dir *ifd) (float64, bool) {
	s, ok := dir.ascii(tagGDALNoData)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// sampleDecoder returns a function decoding one raw sample to float64.
func sampleDecoder(format, bits uint64, order binary.ByteOrder) (func([]byte) float64, int, error) {
	switch {
	case format == formatUint && bits == 8:
		return func(b []byte) float64 { return float64(b[0]) }, 1, nil
	case format == formatUint && bits == 16:
		return func(b []byte) float64 { return float64(order.Uint16(b)) }, 2, nil
	case format == formatUint && bits == 32:
		return func(b []byte) float64 { return float64(order.Uint32(b)) }, 4, nil
	case format == formatInt && bits == 8:
		return func(b []byte) float64 { return float64(int8(b[0])) }, 1, nil
	case format == formatInt && bits == 16:
		return func(b []byte) float64 { return float64(int16(order.Uint16(b))) }, 2, nil
	case format == formatInt && bits == 32:
		return func(b []byte) float64 { return float64(int32(order.Uint32(b))) }, 4, nil
	case format == formatFloat && bits == 32:
		return func(b []byte) float64 { return float64(math.Float32frombits(order.Uint32(b))) }, 4, nil
	case format == formatFloat && bits == 64:
		return func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) }, 8, nil
	}
	return nil, 0, fmt.Errorf("geotiff: unsupported sample format %d with %d bits", format, bits)
}

func decodeStrips(data []byte, dir *ifd, values []float64, width, height int,
	compression, predictor uint64, bps int, decode func([]byte) float64) error {
	offsets := dir.uints(tagStripOffsets)
	counts := dir.uints(tagStripByteCounts)
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return errors.New("geotiff: inconsistent strip tags")
	}
	rowsPerStrip := int(dir.uintOr(tagRowsPerStrip, uint64(height)))
	if rowsPerStrip <= 0 {
		return errors.New("geotiff: bad rows per strip")
	}
	for s := range offsets {
		raw, err := segment(data, offsets[s], counts[s], compression)
		if err != nil {
			return err
		}
		row0 := s * rowsPerStrip
		rows := rowsPerStrip
		if row0+rows > height {
			rows = height - row0
		}
		if len(raw) < rows*width*bps {
			return fmt.Errorf("geotiff: strip %d too short", s)
		}
		if predictor == 2 {
			undoHorizontalPredictor(raw, width, rows, bps, dir.order)
		}
		for r := 0; r < rows; r++ {
			for c := 0; c < width; c++ {
				values[(row0+r)*width+c] = decode(raw[(r*width+c)*bps:])
			}
		}
	}
	return nil
}

func decodeTiles(data []byte, dir *ifd, values []float64, width, height int,
	compression, predictor uint64, bps int, decode func([]byte) float64) error {
	offsets := dir.uints(tagTileOffsets)
	counts := dir.uints(tagTileByteCounts)
	tw := int(dir.uintOr(tagTileWidth, 0))
	th := int(dir.uintOr(tagTileLength, 0))
	if tw <= 0 || th <= 0 || len(offsets) == 0 || len(offsets) != len(counts) {
		return errors.New("geotiff: inconsistent tile tags")
	}
	tilesAcross := (width + tw - 1) / tw
	tilesDown := (height + th - 1) / th
	if len(offsets) < tilesAcross*tilesDown {
		return errors.New("geotiff: too few tiles")
	}
	for ty := 0; ty < tilesDown; ty++ {
		for tx := 0; tx < tilesAcross; tx++ {
			i := ty*tilesAcross + tx
			raw, err := segment(data, offsets[i], counts[i], compression)
			if err != nil {
				return err
			}
			if len(raw) < tw*th*bps {
				return fmt.Errorf("geotiff: tile %d too short", i)
			}
			if predictor == 2 {
				undoHorizontalPredictor(raw, tw, th, bps, dir.order)
			}
			for r := 0; r < th; r++ {
				row := ty*th + r
				if row >= height {
					break
				}
				for c := 0; c < tw; c++ {
					col := tx*tw + c
					if col >= width {
						break
					}
					values[row*width+col] = decode(raw[(r*tw+c)*bps:])
				}
			}
		}
	}
	return nil
}

// segment returns the decompressed bytes of one strip or tile.
func segment(data []byte, offset, count, compression uint64) ([]byte, error) {
	if offset+count > uint64(len(data)) {
		return nil, errors.New("geotiff: segment out of range")
	}
	raw := data[offset : offset+count]
	switch compression {
	case compressionNone:
		return raw, nil
	case compressionDeflate, compressionOldDeflate:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("geotiff: deflate segment: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("geotiff: deflate segment: %w", err)
		}
		return out, nil
	case compressionPackBits:
		return unpackBits(raw)
	}
	return nil, fmt.Errorf("geotiff: compression scheme %d is not supported", compression)
}

// unpackBits decodes the PackBits run-length scheme.
func unpackBits(raw []byte) ([]byte, error) {
	var out []byte
	for i := 0; i < len(raw); {
		n := int(int8(raw[i]))
		i++
		switch {
		case n >= 0:
			if i+n+1 > len(raw) {
				return nil, errors.New("geotiff: truncated PackBits literal")
			}
			out = append(out, raw[i:i+n+1]...)
			i += n + 1
		case n == -128:
			// no-op
		default:
			if i >= len(raw) {
				return nil, errors.New("geotiff: truncated PackBits run")
			}
			for j := 0; j < 1-n; j++ {
				out = append(out, raw[i])
			}
			i++
		}
	}
	return out, nil
}

// undoHorizontalPredictor reverses TIFF predictor 2 in place for
// integer samples.
func undoHorizontalPredictor(raw []byte, width, rows, bps int, order binary.ByteOrder) {
	for r := 0; r < rows; r++ {
		rowStart := r * width * bps
		for c := 1; c < width; c++ {
			p := rowStart + c*bps
			prev := p - bps
			switch bps {
			case 1:
				raw[p] += raw[prev]
			case 2:
				order.PutUint16(raw[p:], order.Uint16(raw[p:])+order.Uint16(raw[prev:]))
			case 4:
				order.PutUint32(raw[p:], order.Uint32(raw[p:])+order.Uint32(raw[prev:]))
			}
		}
	}
}
