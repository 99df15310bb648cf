package kernel

import (
	"math"

	"pixelworks/pixbuf"
)

// Bilinear samples channel c of src at the fractional position (xf, yf).
// The four neighbors are clamped to the image independently, so positions
// slightly outside the image replicate the border.
func Bilinear(src *pixbuf.Buffer, xf, yf float64, c int) uint8 {
	w, h := src.Width(), src.Height()

	fx, fy := math.Floor(xf), math.Floor(yf)
	tx, ty := xf-fx, yf-fy

	x0, y0 := int(fx), int(fy)
	x1, y1 := clampIndex(x0+1, w), clampIndex(y0+1, h)
	x0, y0 = clampIndex(x0, w), clampIndex(y0, h)

	pix, stride, ch := src.Pix(), src.Stride(), src.Channels()
	v00 := float64(pix[y0*stride+x0*ch+c])
	v10 := float64(pix[y0*stride+x1*ch+c])
	v01 := float64(pix[y1*stride+x0*ch+c])
	v11 := float64(pix[y1*stride+x1*ch+c])

	v0 := v00*(1-tx) + v10*tx
	v1 := v01*(1-tx) + v11*tx
	return uint8(math.RoundToEven(v0*(1-ty) + v1*ty))
}
