// Package exif reads the EXIF orientation tag from JPEG bytes and applies
// the matching transform so selfies taken on phones come out upright.
//
// The parser only understands what it needs: the SOI marker, the segment
// walk up to APP1, the Exif header, the TIFF byte order and the entries of
// IFD0. Every read is bounds-checked; truncated or malformed input yields an
// error instead of a panic.
package exif

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Orientation is the value of EXIF tag 0x0112.
type Orientation int

// Orientation values as defined by the EXIF specification.
const (
	Unknown     Orientation = 0
	Normal      Orientation = 1
	FlipH       Orientation = 2
	Rotate180   Orientation = 3
	FlipV       Orientation = 4
	Transpose   Orientation = 5
	Rotate90CW  Orientation = 6
	Transverse  Orientation = 7
	Rotate270CW Orientation = 8
)

// SwapsAxes reports whether applying o exchanges width and height.
func (o Orientation) SwapsAxes() bool {
	return o >= Transpose && o <= Rotate270CW
}

// Valid reports whether o is one of the eight defined orientations.
func (o Orientation) Valid() bool { return o >= Normal && o <= Rotate270CW }

func (o Orientation) String() string {
	switch o {
	case Normal:
		return "normal"
	case FlipH:
		return "flip-horizontal"
	case Rotate180:
		return "rotate-180"
	case FlipV:
		return "flip-vertical"
	case Transpose:
		return "transpose"
	case Rotate90CW:
		return "rotate-90-cw"
	case Transverse:
		return "transverse"
	case Rotate270CW:
		return "rotate-270-cw"
	}
	return "unknown"
}

const (
	markerSOI        = 0xFFD8
	markerAPP1       = 0xFFE1
	markerSOS        = 0xFFDA
	tagOrientation   = 0x0112
	ifdEntrySize     = 12
	tiffLittleEndian = 0x4949 // "II"
	tiffBigEndian    = 0x4D4D // "MM"
)

var (
	// ErrNotJPEG is returned when the input does not start with a JPEG SOI marker.
	ErrNotJPEG = errors.New("exif: not a jpeg")
	// ErrNoOrientation is returned when no APP1/Exif orientation tag was found.
	ErrNoOrientation = errors.New("exif: orientation not found")
	// ErrTruncated is returned when a structure points past the end of the input.
	ErrTruncated = errors.New("exif: truncated data")
)

// reader is a bounds-checked view over a byte slice.
type reader struct {
	b     []byte
	order binary.ByteOrder
}

func (r reader) u16(off int) (uint16, error) {
	if off < 0 || off+2 > len(r.b) {
		return 0, fmt.Errorf("%w: u16 at %d (len %d)", ErrTruncated, off, len(r.b))
	}
	return r.order.Uint16(r.b[off:]), nil
}

func (r reader) u32(off int) (uint32, error) {
	if off < 0 || off+4 > len(r.b) {
		return 0, fmt.Errorf("%w: u32 at %d (len %d)", ErrTruncated, off, len(r.b))
	}
	return r.order.Uint32(r.b[off:]), nil
}

func (r reader) slice(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > len(r.b) {
		return nil, fmt.Errorf("%w: %d bytes at %d (len %d)", ErrTruncated, n, off, len(r.b))
	}
	return r.b[off : off+n], nil
}

// IsJPEG reports whether b starts with the JPEG SOI marker.
func IsJPEG(b []byte) bool {
	return len(b) >= 2 && binary.BigEndian.Uint16(b) == markerSOI
}

// ReadOrientation returns the orientation stored in the APP1/Exif segment of
// a JPEG. Values outside 1..8 are reported as Unknown without an error.
func ReadOrientation(b []byte) (Orientation, error) {
	if !IsJPEG(b) {
		return Unknown, ErrNotJPEG
	}
	seg := reader{b: b, order: binary.BigEndian}

	off := 2
	for off+4 <= len(b) {
		marker, err := seg.u16(off)
		if err != nil {
			return Unknown, err
		}
		if marker&0xFF00 != 0xFF00 {
			// Lost sync with the segment stream.
			return Unknown, ErrNoOrientation
		}
		if marker == markerSOS {
			// Image data follows; metadata segments are all before this.
			return Unknown, ErrNoOrientation
		}
		size, err := seg.u16(off + 2)
		if err != nil {
			return Unknown, err
		}
		if size < 2 {
			return Unknown, fmt.Errorf("%w: segment size %d", ErrTruncated, size)
		}
		if marker == markerAPP1 {
			payload, err := seg.slice(off+4, int(size)-2)
			if err != nil {
				return Unknown, err
			}
			if o, err := readAPP1(payload); err == nil {
				return o, nil
			} else if !errors.Is(err, ErrNoOrientation) {
				return Unknown, err
			}
			// An APP1 that is not Exif (e.g. XMP); keep walking.
		}
		off += 2 + int(size)
	}
	return Unknown, ErrNoOrientation
}

// readAPP1 parses an APP1 payload (everything after the length field).
func readAPP1(p []byte) (Orientation, error) {
	if len(p) < 6 || string(p[:6]) != "Exif\x00\x00" {
		return Unknown, ErrNoOrientation
	}
	tiff := p[6:]
	if len(tiff) < 8 {
		return Unknown, ErrTruncated
	}

	r := reader{b: tiff}
	switch binary.BigEndian.Uint16(tiff) {
	case tiffLittleEndian:
		r.order = binary.LittleEndian
	case tiffBigEndian:
		r.order = binary.BigEndian
	default:
		return Unknown, fmt.Errorf("exif: bad tiff byte order %#x", tiff[:2])
	}

	ifd0, err := r.u32(4)
	if err != nil {
		return Unknown, err
	}
	count, err := r.u16(int(ifd0))
	if err != nil {
		return Unknown, err
	}
	for i := 0; i < int(count); i++ {
		entry := int(ifd0) + 2 + i*ifdEntrySize
		tag, err := r.u16(entry)
		if err != nil {
			return Unknown, err
		}
		if tag != tagOrientation {
			continue
		}
		v, err := r.u16(entry + 8)
		if err != nil {
			return Unknown, err
		}
		o := Orientation(v)
		if !o.Valid() {
			return Unknown, nil
		}
		return o, nil
	}
	return Unknown, ErrNoOrientation
}
