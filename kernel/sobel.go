package kernel

import (
	"math"

	"pixelworks/parallel"
	"pixelworks/pixbuf"
)

var (
	sobelX = [9]int{-1, 0, 1, -2, 0, 2, -1, 0, 1}
	sobelY = [9]int{1, 2, 1, 0, 0, 0, -1, -2, -1}
)

// luminance weights the first three channels; narrower pixels pass channel 0
// through. The weighted sum is truncated, not rounded.
func luminance(px []uint8) int {
	if len(px) < 3 {
		return int(px[0])
	}
	return int(0.30*float32(px[0]) + 0.59*float32(px[1]) + 0.11*float32(px[2]))
}

// sobelRows writes the gradient magnitude of the luminance to every channel.
// Neighbors outside the image count as 0, unlike the replicate border used
// by convolution.
func sobelRows(src, dst *pixbuf.Buffer, r parallel.RowRange) {
	w, h, ch := src.Width(), src.Height(), src.Channels()

	var window [9]int
	for y := r.Start; y < r.End; y++ {
		out := dst.Row(y)
		for x := range w {
			i := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					yy, xx := y+dy, x+dx
					if yy < 0 || yy >= h || xx < 0 || xx >= w {
						window[i] = 0
					} else {
						window[i] = luminance(src.Pixel(xx, yy))
					}
					i++
				}
			}

			var gx, gy int
			for k, v := range window {
				gx += sobelX[k] * v
				gy += sobelY[k] * v
			}

			mag := clamp8(math.Sqrt(float64(gx*gx + gy*gy)))
			px := out[x*ch : (x+1)*ch]
			for c := range px {
				px[c] = mag
			}
		}
	}
}
