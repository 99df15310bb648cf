// Package kernel holds the pixel transforms and their blocking entry points.
//
// Every entry point reads from src and writes into a separate dst, splitting
// the destination rows across workers with parallel.Partition. Workers share
// src read-only and never write the same row, which is what makes the
// concurrent writes safe.
//
// Border handling differs per transform and is kept that way on purpose:
//
//	Convolve    replicate the nearest edge pixel
//	EdgeDetect  treat outside neighbors as 0
//	Rotate      black when the source falls outside the image
//	Scale       replicate (through Bilinear)
package kernel

import (
	"errors"
	"fmt"

	"pixelworks/parallel"
	"pixelworks/pixbuf"
)

var (
	ErrGeometry      = errors.New("buffer geometry mismatch")
	ErrInvalidParams = errors.New("invalid kernel parameters")
)

// Convolve applies the weight matrix p to every channel of src.
func Convolve(src, dst *pixbuf.Buffer, p Convolution, workers int) error {
	if err := p.validate(); err != nil {
		return err
	}
	if err := sameGeometry(src, dst); err != nil {
		return err
	}
	return dispatch(dst.Height(), workers, func(r parallel.RowRange) {
		convolveRows(src, dst, p, r)
	})
}

// EdgeDetect writes the Sobel gradient magnitude of src to every channel of dst.
func EdgeDetect(src, dst *pixbuf.Buffer, workers int) error {
	if err := sameGeometry(src, dst); err != nil {
		return err
	}
	return dispatch(dst.Height(), workers, func(r parallel.RowRange) {
		sobelRows(src, dst, r)
	})
}

// Rotate turns src by p into dst, which keeps the source dimensions.
func Rotate(src, dst *pixbuf.Buffer, p Rotation, workers int) error {
	if err := sameGeometry(src, dst); err != nil {
		return err
	}
	return dispatch(dst.Height(), workers, func(r parallel.RowRange) {
		rotateRows(src, dst, p, r)
	})
}

// Scale resizes src into dst. The target size is the size of dst and rows are
// partitioned over the target height.
func Scale(src, dst *pixbuf.Buffer, workers int) error {
	if src == nil || dst == nil {
		return fmt.Errorf("%w: nil buffer", ErrGeometry)
	}
	if src.Channels() != dst.Channels() {
		return fmt.Errorf("%w: %d channels into %d", ErrGeometry, src.Channels(), dst.Channels())
	}
	if src.Overlaps(dst) {
		return fmt.Errorf("%w: destination shares storage with the source", ErrGeometry)
	}
	return dispatch(dst.Height(), workers, func(r parallel.RowRange) {
		resizeRows(src, dst, r)
	})
}

// Engine allocates destinations under Limits and runs transforms on Workers
// goroutines.
type Engine struct {
	Workers int
	Limits  pixbuf.Limits
}

// Apply allocates a destination for p and transforms src into it.
func Apply(src *pixbuf.Buffer, p Params, workers int) (*pixbuf.Buffer, error) {
	return Engine{Workers: workers, Limits: pixbuf.DefaultLimits}.Apply(src, p)
}

// Apply allocates the destination for p under e.Limits and transforms src
// into it.
func (e Engine) Apply(src *pixbuf.Buffer, p Params) (*pixbuf.Buffer, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrGeometry)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: no transform", ErrInvalidParams)
	}
	if r, ok := p.(Resize); ok {
		if err := r.validate(); err != nil {
			return nil, err
		}
	}

	w, h := TargetSize(src, p)
	dst, err := e.Limits.New(w, h, src.Channels())
	if err != nil {
		return nil, fmt.Errorf("could not allocate destination for %s: %w", p, err)
	}
	if err := e.Into(src, dst, p); err != nil {
		return nil, err
	}
	return dst, nil
}

// Into transforms src into the caller-provided dst, which must already have
// the size reported by TargetSize.
func (e Engine) Into(src, dst *pixbuf.Buffer, p Params) error {
	switch p := p.(type) {
	case Convolution:
		return Convolve(src, dst, p, e.Workers)
	case Sobel:
		return EdgeDetect(src, dst, e.Workers)
	case Rotation:
		return Rotate(src, dst, p, e.Workers)
	case Resize:
		if err := p.validate(); err != nil {
			return err
		}
		if dst != nil && (dst.Width() != p.Width || dst.Height() != p.Height) {
			return fmt.Errorf("%w: %s into %s", ErrGeometry, p, dst)
		}
		return Scale(src, dst, e.Workers)
	}
	return fmt.Errorf("%w: unknown transform %T", ErrInvalidParams, p)
}

// TargetSize is the width and height of the image p produces from src.
func TargetSize(src *pixbuf.Buffer, p Params) (int, int) {
	if r, ok := p.(Resize); ok {
		return r.Width, r.Height
	}
	return src.Width(), src.Height()
}

func sameGeometry(src, dst *pixbuf.Buffer) error {
	if src == nil || dst == nil {
		return fmt.Errorf("%w: nil buffer", ErrGeometry)
	}
	if !src.SameSize(dst) {
		return fmt.Errorf("%w: %s into %s", ErrGeometry, src, dst)
	}
	if src.Overlaps(dst) {
		return fmt.Errorf("%w: destination shares storage with the source", ErrGeometry)
	}
	return nil
}

func dispatch(rows, workers int, fn func(parallel.RowRange)) error {
	return parallel.Rows(rows, workers, func(r parallel.RowRange) error {
		fn(r)
		return nil
	})
}
