// Package testgeo builds small in-memory GeoTIFF and GeoJSON fixtures
// for tests. Only the layouts the decoder supports are produced.
package testgeo

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// TIFFOpts describes one synthetic single-band float32 GeoTIFF.
type TIFFOpts struct {
	Width, Height int
	Values        []float32 // row-major, Width*Height samples
	// OriginX, OriginY is the outer corner of the top-left cell.
	OriginX, OriginY float64
	// DX, DY are positive cell sizes; the raster is written north-up.
	DX, DY float64
	NoData *float64
	EPSG   int // written as a projected CS geokey when non-zero
	// Deflate compresses every segment with zlib.
	Deflate bool
	// TileW/TileH switch from strip to tile layout.
	TileW, TileH int
	// RowsPerStrip splits strip layout; 0 means one strip.
	RowsPerStrip int
}

const (
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
	typeASCII  = 2
)

type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	// inline value or offset filled at assembly time
	value  uint32
	extern []byte // value bytes stored outside the IFD when set
}

// GeoTIFF encodes opts as a little-endian classic TIFF.
func GeoTIFF(o TIFFOpts) []byte {
	if len(o.Values) != o.Width*o.Height {
		panic("testgeo: value count does not match dimensions")
	}
	var entries []entry
	addShort := func(tag uint16, v uint16) {
		entries = append(entries, entry{tag: tag, typ: typeShort, count: 1, value: uint32(v)})
	}
	addLong := func(tag uint16, v uint32) {
		entries = append(entries, entry{tag: tag, typ: typeLong, count: 1, value: v})
	}
	addLongs := func(tag uint16, vs []uint32) {
		if len(vs) == 1 {
			addLong(tag, vs[0])
			return
		}
		raw := make([]byte, 4*len(vs))
		for i, v := range vs {
			binary.LittleEndian.PutUint32(raw[4*i:], v)
		}
		entries = append(entries, entry{tag: tag, typ: typeLong, count: uint32(len(vs)), extern: raw})
	}
	addDoubles := func(tag uint16, vs []float64) {
		raw := make([]byte, 8*len(vs))
		for i, v := range vs {
			binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
		}
		entries = append(entries, entry{tag: tag, typ: typeDouble, count: uint32(len(vs)), extern: raw})
	}
	addASCII := func(tag uint16, s string) {
		raw := append([]byte(s), 0)
		e := entry{tag: tag, typ: typeASCII, count: uint32(len(raw))}
		if len(raw) <= 4 {
			var v [4]byte
			copy(v[:], raw)
			e.value = binary.LittleEndian.Uint32(v[:])
		} else {
			e.extern = raw
		}
		entries = append(entries, e)
	}
	addShorts := func(tag uint16, vs []uint16) {
		raw := make([]byte, 2*len(vs))
		for i, v := range vs {
			binary.LittleEndian.PutUint16(raw[2*i:], v)
		}
		entries = append(entries, entry{tag: tag, typ: typeShort, count: uint32(len(vs)), extern: raw})
	}

	segments := buildSegments(o)
	compression := uint16(1)
	if o.Deflate {
		compression = 8
		for i := range segments {
			var buf bytes.Buffer
			zw := zlib.NewWriter(&buf)
			zw.Write(segments[i])
			zw.Close()
			segments[i] = buf.Bytes()
		}
	}

	addLong(256, uint32(o.Width))
	addLong(257, uint32(o.Height))
	addShort(258, 32)
	addShort(259, compression)
	addShort(262, 1) // BlackIsZero
	addShort(277, 1)
	addShort(339, 3) // IEEE float samples

	// Data segment offsets get patched in after layout below; remember
	// where the offset arrays live.
	segOffsets := make([]uint32, len(segments))
	segCounts := make([]uint32, len(segments))
	for i, s := range segments {
		segCounts[i] = uint32(len(s))
	}
	if o.TileW > 0 {
		addLong(322, uint32(o.TileW))
		addLong(323, uint32(o.TileH))
	} else {
		rps := o.RowsPerStrip
		if rps == 0 {
			rps = o.Height
		}
		addLong(278, uint32(rps))
	}

	addDoubles(33550, []float64{o.DX, o.DY, 0})
	addDoubles(33922, []float64{0, 0, 0, o.OriginX, o.OriginY, 0})
	if o.EPSG != 0 {
		addShorts(34735, []uint16{
			1, 1, 0, 2, // version header, two keys
			1024, 0, 1, 1, // GTModelType = projected
			3072, 0, 1, uint16(o.EPSG),
		})
	}
	if o.NoData != nil {
		addASCII(42113, fmt.Sprintf("%g", *o.NoData))
	}

	// Layout: header, segment data, external values, IFD.
	var out bytes.Buffer
	out.Write([]byte{'I', 'I', 42, 0, 0, 0, 0, 0})
	for i, s := range segments {
		segOffsets[i] = uint32(out.Len())
		out.Write(s)
	}
	if o.TileW > 0 {
		addLongs(324, segOffsets)
		addLongs(325, segCounts)
	} else {
		addLongs(273, segOffsets)
		addLongs(279, segCounts)
	}
	for i := range entries {
		if entries[i].extern != nil {
			entries[i].value = uint32(out.Len())
			out.Write(entries[i].extern)
		}
	}

	ifdOffset := uint32(out.Len())
	sortEntries(entries)
	var ifd bytes.Buffer
	binary.Write(&ifd, binary.LittleEndian, uint16(len(entries)))
	for _, e := range entries {
		binary.Write(&ifd, binary.LittleEndian, e.tag)
		binary.Write(&ifd, binary.LittleEndian, e.typ)
		binary.Write(&ifd, binary.LittleEndian, e.count)
		if e.extern == nil && e.typ == typeShort && e.count == 1 {
			binary.Write(&ifd, binary.LittleEndian, uint16(e.value))
			binary.Write(&ifd, binary.LittleEndian, uint16(0))
		} else {
			binary.Write(&ifd, binary.LittleEndian, e.value)
		}
	}
	binary.Write(&ifd, binary.LittleEndian, uint32(0)) // no next IFD
	out.Write(ifd.Bytes())

	data := out.Bytes()
	binary.LittleEndian.PutUint32(data[4:], ifdOffset)
	return data
}

// buildSegments lays out raw float32 sample bytes per strip or tile.
func buildSegments(o TIFFOpts) [][]byte {
	rawSample := func(row, col int) []byte {
		b := make([]byte, 4)
		v := float32(math.NaN())
		if row < o.Height && col < o.Width {
			v = o.Values[row*o.Width+col]
		}
		binary.LittleEndian.PutUint32(b, math.Float32bits(v))
		return b
	}
	if o.TileW > 0 {
		across := (o.Width + o.TileW - 1) / o.TileW
		down := (o.Height + o.TileH - 1) / o.TileH
		segs := make([][]byte, 0, across*down)
		for ty := 0; ty < down; ty++ {
			for tx := 0; tx < across; tx++ {
				var seg []byte
				for r := 0; r < o.TileH; r++ {
					for c := 0; c < o.TileW; c++ {
						seg = append(seg, rawSample(ty*o.TileH+r, tx*o.TileW+c)...)
					}
				}
				segs = append(segs, seg)
			}
		}
		return segs
	}
	rps := o.RowsPerStrip
	if rps == 0 {
		rps = o.Height
	}
	var segs [][]byte
	for row0 := 0; row0 < o.Height; row0 += rps {
		var seg []byte
		for r := row0; r < row0+rps && r < o.Height; r++ {
			for c := 0; c < o.Width; c++ {
				seg = append(seg, rawSample(r, c)...)
			}
		}
		segs = append(segs, seg)
	}
	return segs
}

func sortEntries(entries []entry) {
	// IFD entries must be sorted by tag.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].tag < entries[j-1].tag; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// Feature is one polygon feature for DistrictsJSON.
type Feature struct {
	Name  string
	Rings [][][]float64
}

// DistrictsJSON builds a GeoJSON feature collection of polygons.
// Features with an empty name carry no shapeName property.
func DistrictsJSON(features ...Feature) []byte {
	fs := make([]map[string]any, len(features))
	for i, f := range features {
		props := map[string]any{}
		if f.Name != "" {
			props["shapeName"] = f.Name
		}
		fs[i] = map[string]any{
			"type":       "Feature",
			"properties": props,
			"geometry": map[string]any{
				"type":        "Polygon",
				"coordinates": f.Rings,
			},
		}
	}
	data, err := json.Marshal(map[string]any{
		"type":     "FeatureCollection",
		"features": fs,
	})
	if err != nil {
		panic(err)
	}
	return data
}

// Square returns the exterior ring of an axis-aligned square.
func Square(x0, y0, side float64) [][][]float64 {
	return [][][]float64{{
		{x0, y0},
		{x0 + side, y0},
		{x0 + side, y0 + side},
		{x0, y0 + side},
		{x0, y0},
	}}
}
