package kernel

import (
	"pixelworks/parallel"
	"pixelworks/pixbuf"
)

// resizeRows fills target rows of r with center-aligned bilinear samples, so
// pixel centers of both grids line up.
func resizeRows(src, dst *pixbuf.Buffer, r parallel.RowRange) {
	sx := float64(src.Width()) / float64(dst.Width())
	sy := float64(src.Height()) / float64(dst.Height())
	ch := dst.Channels()

	for y := r.Start; y < r.End; y++ {
		out := dst.Row(y)
		ys := (float64(y)+0.5)*sy - 0.5
		for x := range dst.Width() {
			xs := (float64(x)+0.5)*sx - 0.5
			for c := range ch {
				out[x*ch+c] = Bilinear(src, xs, ys, c)
			}
		}
	}
}
