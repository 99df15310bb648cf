package kernel

import (
	"fmt"
	"math"
)

// Params selects a transform and carries the fields only that transform
// reads. The set is closed: Convolution, Sobel, Rotation and Resize.
type Params interface {
	params()
	fmt.Stringer
}

// Convolution is a Size x Size weight matrix in row-major order. The result
// of each tap sum is scaled by Factor and offset by Bias.
type Convolution struct {
	Weights []float32
	Size    int
	Factor  float32
	Bias    float32
}

// Sobel has no parameters beyond the buffer dimensions.
type Sobel struct{}

// Rotation turns the image by Angle radians about (CenterX, CenterY).
type Rotation struct {
	Angle   float64
	CenterX float64
	CenterY float64
}

// Resize scales the image to Width x Height.
type Resize struct {
	Width  int
	Height int
}

func (Convolution) params() {}
func (Sobel) params()       {}
func (Rotation) params()    {}
func (Resize) params()      {}

func (p Convolution) String() string {
	return fmt.Sprintf("convolve %dx%d factor=%g bias=%g", p.Size, p.Size, p.Factor, p.Bias)
}
func (Sobel) String() string { return "sobel" }
func (p Rotation) String() string {
	return fmt.Sprintf("rotate %.4grad about (%g, %g)", p.Angle, p.CenterX, p.CenterY)
}
func (p Resize) String() string { return fmt.Sprintf("resize %dx%d", p.Width, p.Height) }

// BoxBlur returns the normalized size x size averaging kernel.
func BoxBlur(size int) Convolution {
	w := make([]float32, size*size)
	for i := range w {
		w[i] = 1 / float32(size*size)
	}
	return Convolution{Weights: w, Size: size, Factor: 1}
}

func (p Convolution) validate() error {
	if p.Size < 1 {
		return fmt.Errorf("%w: kernel size %d", ErrInvalidParams, p.Size)
	}
	if len(p.Weights) != p.Size*p.Size {
		return fmt.Errorf("%w: %d weights for a %dx%d kernel", ErrInvalidParams, len(p.Weights), p.Size, p.Size)
	}
	return nil
}

func (p Resize) validate() error {
	if p.Width < 1 || p.Height < 1 {
		return fmt.Errorf("%w: target size %dx%d", ErrInvalidParams, p.Width, p.Height)
	}
	return nil
}

// RotationDegrees builds the rotation of a width x height image about its
// center. Whole turns are removed before converting to radians so that
// multiples of 360 map every pixel onto itself exactly.
func RotationDegrees(degrees float64, width, height int) Rotation {
	return Rotation{
		Angle:   math.Mod(degrees, 360) * math.Pi / 180,
		CenterX: float64(width-1) / 2,
		CenterY: float64(height-1) / 2,
	}
}
