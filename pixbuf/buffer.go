package pixbuf

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"unsafe"
)

var ErrAllocation = errors.New("could not allocate pixel buffer")

// MaxChannels is the widest pixel record supported (RGBA).
const MaxChannels = 4

// Limits bounds the buffers New is willing to allocate.
type Limits struct {
	// MaxPixels is the largest width*height accepted. Zero disables the check.
	MaxPixels int
}

var DefaultLimits = Limits{MaxPixels: 1 << 28}

// Buffer is an owned width x height grid of pixels with a fixed number of
// 8-bit channels each. The pixel at (x, y) starts at Pix[(y*Width+x)*Channels].
type Buffer struct {
	width    int
	height   int
	channels int
	pix      []uint8
}

// New allocates a zeroed buffer under DefaultLimits.
func New(width, height, channels int) (*Buffer, error) {
	return DefaultLimits.New(width, height, channels)
}

func (l Limits) New(width, height, channels int) (*Buffer, error) {
	switch {
	case width <= 0 || height <= 0:
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrAllocation, width, height)
	case channels < 1 || channels > MaxChannels:
		return nil, fmt.Errorf("%w: unsupported channel count %d", ErrAllocation, channels)
	case width > math.MaxInt/height:
		return nil, fmt.Errorf("%w: %dx%d overflows", ErrAllocation, width, height)
	}

	if err := l.Check(width, height); err != nil {
		return nil, err
	}
	pixels := width * height
	if pixels > math.MaxInt/channels {
		return nil, fmt.Errorf("%w: %dx%dx%d overflows", ErrAllocation, width, height, channels)
	}

	return &Buffer{
		width:    width,
		height:   height,
		channels: channels,
		pix:      make([]uint8, pixels*channels),
	}, nil
}

// Check reports whether a width x height image fits under the pixel limit.
// Dimensions come from untrusted headers, so the product is never formed.
func (l Limits) Check(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrAllocation, width, height)
	}
	if l.MaxPixels > 0 && width > l.MaxPixels/height {
		return fmt.Errorf("%w: %dx%d image exceeds limit of %d pixels", ErrAllocation, width, height, l.MaxPixels)
	}
	return nil
}

// Wrap adopts pix as the storage of a width x height buffer without copying.
func Wrap(width, height, channels int, pix []uint8) (*Buffer, error) {
	if width <= 0 || height <= 0 || channels < 1 || channels > MaxChannels {
		return nil, fmt.Errorf("%w: invalid geometry %dx%dx%d", ErrAllocation, width, height, channels)
	}
	if len(pix) != width*height*channels {
		return nil, fmt.Errorf("%w: %d bytes do not match %dx%dx%d", ErrAllocation, len(pix), width, height, channels)
	}
	return &Buffer{width: width, height: height, channels: channels, pix: pix}, nil
}

func (b *Buffer) Width() int    { return b.width }
func (b *Buffer) Height() int   { return b.height }
func (b *Buffer) Channels() int { return b.channels }

// Pix exposes the underlying storage.
func (b *Buffer) Pix() []uint8 { return b.pix }

// Stride is the number of bytes between vertically adjacent pixels.
func (b *Buffer) Stride() int { return b.width * b.channels }

func (b *Buffer) Offset(x, y, c int) int {
	return (y*b.width+x)*b.channels + c
}

func (b *Buffer) inside(x, y, c int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height && c >= 0 && c < b.channels
}

// At returns channel c of pixel (x, y), or 0 outside the buffer.
func (b *Buffer) At(x, y, c int) uint8 {
	if !b.inside(x, y, c) {
		return 0
	}
	return b.pix[b.Offset(x, y, c)]
}

// Set writes channel c of pixel (x, y). Writes outside the buffer are ignored.
func (b *Buffer) Set(x, y, c int, v uint8) {
	if !b.inside(x, y, c) {
		return
	}
	b.pix[b.Offset(x, y, c)] = v
}

// Pixel returns the channel record of (x, y), or nil outside the buffer.
func (b *Buffer) Pixel(x, y int) []uint8 {
	if !b.inside(x, y, 0) {
		return nil
	}
	i := b.Offset(x, y, 0)
	return b.pix[i : i+b.channels : i+b.channels]
}

// Row returns the bytes of row y, or nil outside the buffer.
func (b *Buffer) Row(y int) []uint8 {
	if y < 0 || y >= b.height {
		return nil
	}
	s := b.Stride()
	return b.pix[y*s : (y+1)*s : (y+1)*s]
}

// Rows returns the bytes of rows [start, end), clipped to the buffer.
func (b *Buffer) Rows(start, end int) []uint8 {
	start = max(start, 0)
	end = min(end, b.height)
	if start >= end {
		return nil
	}
	s := b.Stride()
	return b.pix[start*s : end*s : end*s]
}

func (b *Buffer) Fill(v uint8) {
	for i := range b.pix {
		b.pix[i] = v
	}
}

func (b *Buffer) Clone() *Buffer {
	c := *b
	c.pix = bytes.Clone(b.pix)
	return &c
}

// SameSize reports whether both buffers have the same width, height and channels.
func (b *Buffer) SameSize(o *Buffer) bool {
	return b.width == o.width && b.height == o.height && b.channels == o.channels
}

// Overlaps reports whether the two buffers share any pixel storage.
func (b *Buffer) Overlaps(o *Buffer) bool {
	if len(b.pix) == 0 || len(o.pix) == 0 {
		return false
	}
	bStart := uintptr(unsafe.Pointer(unsafe.SliceData(b.pix)))
	oStart := uintptr(unsafe.Pointer(unsafe.SliceData(o.pix)))
	return bStart < oStart+uintptr(len(o.pix)) && oStart < bStart+uintptr(len(b.pix))
}

func (b *Buffer) Equal(o *Buffer) bool {
	return b.SameSize(o) && bytes.Equal(b.pix, o.pix)
}

func (b *Buffer) String() string {
	return fmt.Sprintf("%dx%dx%d", b.width, b.height, b.channels)
}
