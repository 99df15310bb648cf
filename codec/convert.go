package codec

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"pixelworks/pixbuf"
)

// FromImage copies img into a new buffer. Grayscale images get one channel,
// opaque color images three, everything else four (non-premultiplied RGBA).
func FromImage(img image.Image, limits pixbuf.Limits) (*pixbuf.Buffer, error) {
	b := img.Bounds()
	r := image.Rect(0, 0, b.Dx(), b.Dy())

	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		buf, err := limits.New(r.Dx(), r.Dy(), 1)
		if err != nil {
			return nil, err
		}
		gray, ok := img.(*image.Gray)
		if !ok {
			gray = image.NewGray(r)
			draw.Draw(gray, r, img, b.Min, draw.Src)
			b = r
		}
		for y := range r.Dy() {
			off := gray.PixOffset(b.Min.X, b.Min.Y+y)
			copy(buf.Row(y), gray.Pix[off:off+r.Dx()])
		}
		return buf, nil
	}

	if isOpaque(img) {
		buf, err := limits.New(r.Dx(), r.Dy(), 3)
		if err != nil {
			return nil, err
		}
		rgba, ok := img.(*image.RGBA)
		if !ok {
			rgba = image.NewRGBA(r)
			draw.Draw(rgba, r, img, b.Min, draw.Src)
			b = r
		}
		for y := range r.Dy() {
			row := buf.Row(y)
			src := rgba.Pix[rgba.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := range r.Dx() {
				copy(row[x*3:x*3+3], src[x*4:x*4+3])
			}
		}
		return buf, nil
	}

	buf, err := limits.New(r.Dx(), r.Dy(), 4)
	if err != nil {
		return nil, err
	}
	// drawing into NRGBA goes through premultiplied color, so NRGBA sources
	// are copied directly to keep translucent pixels exact
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(r)
		draw.Draw(nrgba, r, img, b.Min, draw.Src)
		b = r
	}
	for y := range r.Dy() {
		off := nrgba.PixOffset(b.Min.X, b.Min.Y+y)
		copy(buf.Row(y), nrgba.Pix[off:off+r.Dx()*4])
	}
	return buf, nil
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// ToImage wraps a copy of buf in the image type matching its channel count.
func ToImage(buf *pixbuf.Buffer) (image.Image, error) {
	r := image.Rect(0, 0, buf.Width(), buf.Height())

	switch buf.Channels() {
	case 1:
		img := image.NewGray(r)
		copy(img.Pix, buf.Pix())
		return img, nil
	case 2:
		img := image.NewNRGBA(r)
		for i := range buf.Width() * buf.Height() {
			v, a := buf.Pix()[i*2], buf.Pix()[i*2+1]
			copy(img.Pix[i*4:i*4+4], []uint8{v, v, v, a})
		}
		return img, nil
	case 3:
		img := image.NewRGBA(r)
		for i := range buf.Width() * buf.Height() {
			copy(img.Pix[i*4:i*4+3], buf.Pix()[i*3:i*3+3])
			img.Pix[i*4+3] = 0xFF
		}
		return img, nil
	case 4:
		img := image.NewNRGBA(r)
		copy(img.Pix, buf.Pix())
		return img, nil
	}
	return nil, fmt.Errorf("%w: %d channels", ErrUnsupported, buf.Channels())
}

// Pattern draws the demo image used when no input file is given: red grows
// with x, green with y, blue is constant.
func Pattern(width, height int) (*pixbuf.Buffer, error) {
	buf, err := pixbuf.New(width, height, 3)
	if err != nil {
		return nil, err
	}
	for y := range height {
		for x := range width {
			copy(buf.Pixel(x, y), []uint8{uint8(x), uint8(y), 128})
		}
	}
	return buf, nil
}
