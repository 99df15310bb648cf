package kernel

import (
	"math"

	"pixelworks/parallel"
	"pixelworks/pixbuf"
)

// rotateRows fills the rows of r by inverse mapping: each destination pixel
// looks up where it came from in the source. Sources outside the image give
// black in every channel.
func rotateRows(src, dst *pixbuf.Buffer, p Rotation, r parallel.RowRange) {
	w, ch := src.Width(), src.Channels()
	fw, fh := float64(w), float64(src.Height())
	sin, cos := math.Sincos(p.Angle)

	for y := r.Start; y < r.End; y++ {
		out := dst.Row(y)
		yd := float64(y) - p.CenterY
		for x := range w {
			xd := float64(x) - p.CenterX
			xs := cos*xd + sin*yd + p.CenterX
			ys := -sin*xd + cos*yd + p.CenterY

			px := out[x*ch : (x+1)*ch]
			if !(xs >= 0 && xs < fw && ys >= 0 && ys < fh) {
				for c := range px {
					px[c] = 0
				}
				continue
			}
			for c := range px {
				px[c] = Bilinear(src, xs, ys, c)
			}
		}
	}
}
