package kernel

import (
	"pixelworks/parallel"
	"pixelworks/pixbuf"
)

// convolveRows applies p to the destination rows of r. Taps falling outside
// the image read the nearest edge pixel. An even Size has no center tap; its
// window leans toward the top-left.
func convolveRows(src, dst *pixbuf.Buffer, p Convolution, r parallel.RowRange) {
	w, h, ch := src.Width(), src.Height(), src.Channels()
	pix, stride := src.Pix(), src.Stride()
	first := -(p.Size / 2)
	last := first + p.Size - 1

	for y := r.Start; y < r.End; y++ {
		out := dst.Row(y)
		for x := range w {
			for c := range ch {
				var acc float32
				ki := 0
				for ky := first; ky <= last; ky++ {
					row := clampIndex(y+ky, h) * stride
					for kx := first; kx <= last; kx++ {
						col := clampIndex(x+kx, w) * ch
						acc += float32(pix[row+col+c]) * p.Weights[ki]
						ki++
					}
				}
				out[x*ch+c] = clamp8(float64(acc*p.Factor + p.Bias))
			}
		}
	}
}
