// Package pipeline parses textual operations and runs them one after the
// other over a buffer.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"pixelworks/kernel"
	"pixelworks/pixbuf"
)

var ErrInvalidOp = errors.New("invalid operation")

// BlurSize is the side of the box kernel used by blur steps.
const BlurSize = 3

// BlurPasses maps the named blur strengths to the number of times the box
// kernel is applied.
var BlurPasses = map[string]int{
	"light":  1,
	"medium": 3,
	"heavy":  10,
}

// Step is one parsed operation. Its kernel parameters are built against the
// buffer it runs on, since rotation pivots about the current image center.
type Step struct {
	Name   string
	Passes int
	build  func(width, height int) kernel.Params
}

func (s Step) String() string {
	if s.Passes > 1 {
		return fmt.Sprintf("%s x%d", s.Name, s.Passes)
	}
	return s.Name
}

// Params returns the kernel parameters of s for a width x height image.
func (s Step) Params(width, height int) kernel.Params {
	if s.build == nil {
		return nil
	}
	return s.build(width, height)
}

func fixed(p kernel.Params) func(int, int) kernel.Params {
	return func(int, int) kernel.Params { return p }
}

// Blur applies the 3x3 box kernel passes times.
func Blur(passes int) Step {
	return Step{
		Name:   "blur",
		Passes: passes,
		build:  fixed(kernel.BoxBlur(BlurSize)),
	}
}

func Sobel() Step {
	return Step{Name: "sobel", Passes: 1, build: fixed(kernel.Sobel{})}
}

// Rotate turns the image by degrees about its center.
func Rotate(degrees float64) Step {
	return Step{
		Name:   fmt.Sprintf("rotate:%g", degrees),
		Passes: 1,
		build: func(w, h int) kernel.Params {
			return kernel.RotationDegrees(degrees, w, h)
		},
	}
}

func Resize(width, height int) Step {
	return Step{
		Name:   fmt.Sprintf("resize:%dx%d", width, height),
		Passes: 1,
		build:  fixed(kernel.Resize{Width: width, Height: height}),
	}
}

// Fit resizes the image to the largest size within width x height that
// keeps its aspect ratio. A zero bound is taken from the image.
func Fit(width, height int) Step {
	return Step{
		Name:   fmt.Sprintf("fit:%dx%d", width, height),
		Passes: 1,
		build: func(w, h int) kernel.Params {
			fw, fh := fitSize(w, h, width, height)
			return kernel.Resize{Width: fw, Height: fh}
		},
	}
}

func fitSize(srcWidth, srcHeight, width, height int) (int, int) {
	destWidth := float64(width)
	if width == 0 {
		destWidth = float64(srcWidth)
	}
	destHeight := float64(height)
	if height == 0 {
		destHeight = float64(srcHeight)
	}

	srcAR := float64(srcWidth) / float64(srcHeight)
	destAR := destWidth / destHeight
	if srcAR < destAR {
		destWidth = destHeight * srcAR
	} else if srcAR > destAR {
		destHeight = destWidth / srcAR
	}
	return max(1, int(math.Round(destWidth))), max(1, int(math.Round(destHeight)))
}

// Convolve applies an arbitrary square kernel.
func Convolve(p kernel.Convolution) Step {
	return Step{Name: "convolve", Passes: 1, build: fixed(p)}
}

// Parse reads one operation:
//
//	blur[:light|medium|heavy|N]
//	sobel
//	rotate:DEG
//	resize:WxH
//	fit:WxH
//	convolve:w1,w2,...[;factor=F][;bias=B]
//	identity
func Parse(op string) (Step, error) {
	name, arg, hasArg := strings.Cut(strings.TrimSpace(op), ":")
	name = strings.ToLower(name)

	switch name {
	case "blur":
		if !hasArg {
			return Blur(BlurPasses["light"]), nil
		}
		if passes, ok := BlurPasses[strings.ToLower(arg)]; ok {
			return Blur(passes), nil
		}
		passes, err := strconv.Atoi(arg)
		if err != nil || passes < 1 {
			names := lo.Keys(BlurPasses)
			slices.Sort(names)
			return Step{}, fmt.Errorf("%w: blur strength %q, want one of %s or a positive count",
				ErrInvalidOp, arg, strings.Join(names, ", "))
		}
		return Blur(passes), nil

	case "sobel":
		if hasArg {
			return Step{}, fmt.Errorf("%w: sobel takes no argument", ErrInvalidOp)
		}
		return Sobel(), nil

	case "rotate":
		degrees, err := strconv.ParseFloat(arg, 64)
		if !hasArg || err != nil {
			return Step{}, fmt.Errorf("%w: rotate needs an angle in degrees, got %q", ErrInvalidOp, arg)
		}
		return Rotate(degrees), nil

	case "resize":
		w, h, err := parseSize(arg)
		if !hasArg || err != nil {
			return Step{}, fmt.Errorf("%w: resize needs WIDTHxHEIGHT, got %q", ErrInvalidOp, arg)
		}
		return Resize(w, h), nil

	case "fit":
		ws, hs, ok := strings.Cut(strings.ToLower(arg), "x")
		w, werr := strconv.Atoi(ws)
		h, herr := strconv.Atoi(hs)
		if !ok || werr != nil || herr != nil || w < 0 || h < 0 || w+h == 0 {
			return Step{}, fmt.Errorf("%w: fit needs WIDTHxHEIGHT with at most one zero bound, got %q", ErrInvalidOp, arg)
		}
		return Fit(w, h), nil

	case "convolve":
		if !hasArg {
			return Step{}, fmt.Errorf("%w: convolve needs weights", ErrInvalidOp)
		}
		p, err := parseConvolution(arg)
		if err != nil {
			return Step{}, err
		}
		return Convolve(p), nil

	case "identity":
		return Step{
			Name:   "identity",
			Passes: 1,
			build:  fixed(kernel.Convolution{Weights: []float32{1}, Size: 1, Factor: 1}),
		}, nil
	}
	return Step{}, fmt.Errorf("%w: unknown operation %q", ErrInvalidOp, name)
}

// ParseAll parses every op, stopping at the first malformed one.
func ParseAll(ops []string) ([]Step, error) {
	steps := make([]Step, 0, len(ops))
	for i, op := range ops {
		step, err := Parse(op)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i+1, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("missing separator")
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, err
	}
	if w < 1 || h < 1 {
		return 0, 0, fmt.Errorf("non-positive size")
	}
	return w, h, nil
}

func parseConvolution(s string) (kernel.Convolution, error) {
	fields := strings.Split(s, ";")
	p := kernel.Convolution{Factor: 1}

	for _, w := range strings.Split(fields[0], ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(w), 32)
		if err != nil {
			return p, fmt.Errorf("%w: kernel weight %q", ErrInvalidOp, w)
		}
		p.Weights = append(p.Weights, float32(v))
	}
	for p.Size*p.Size < len(p.Weights) {
		p.Size++
	}
	if p.Size*p.Size != len(p.Weights) {
		return p, fmt.Errorf("%w: %d weights do not form a square kernel", ErrInvalidOp, len(p.Weights))
	}

	for _, field := range fields[1:] {
		key, value, _ := strings.Cut(field, "=")
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
		if err != nil {
			return p, fmt.Errorf("%w: convolve option %q", ErrInvalidOp, field)
		}
		switch strings.TrimSpace(key) {
		case "factor":
			p.Factor = float32(v)
		case "bias":
			p.Bias = float32(v)
		default:
			return p, fmt.Errorf("%w: unknown convolve option %q", ErrInvalidOp, key)
		}
	}
	return p, nil
}

// Session holds the current image of a run that applies steps one at a
// time, together with a spare buffer of the previous result. Each step reads
// the current image and writes into the spare when it has the right size, so
// a chain of same-size steps swaps between two buffers instead of
// allocating. The source a session starts from is never written.
type Session struct {
	engine kernel.Engine
	logger *slog.Logger
	src    *pixbuf.Buffer
	cur    *pixbuf.Buffer
	spare  *pixbuf.Buffer
}

// NewSession starts a session on src. A nil logger means slog.Default().
func NewSession(engine kernel.Engine, logger *slog.Logger, src *pixbuf.Buffer) (*Session, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", kernel.ErrGeometry)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{engine: engine, logger: logger, src: src, cur: src}, nil
}

// Image is the current result. It is the session's own buffer, which later
// steps may overwrite.
func (s *Session) Image() *pixbuf.Buffer { return s.cur }

// Result returns the current image detached from the session.
func (s *Session) Result() *pixbuf.Buffer {
	if s.cur == s.src {
		return s.src.Clone()
	}
	return s.cur
}

// Apply runs every pass of step. On error the current image is left as it
// was after the last completed pass.
func (s *Session) Apply(step Step) error {
	start := time.Now()
	for range step.Passes {
		params := step.Params(s.cur.Width(), s.cur.Height())
		w, h := kernel.TargetSize(s.cur, params)

		dst := s.spare
		if dst == nil || dst.Width() != w || dst.Height() != h || dst.Channels() != s.cur.Channels() {
			out, err := s.engine.Apply(s.cur, params)
			if err != nil {
				return fmt.Errorf("could not run %s: %w", step, err)
			}
			dst = out
		} else if err := s.engine.Into(s.cur, dst, params); err != nil {
			return fmt.Errorf("could not run %s: %w", step, err)
		}

		s.spare = nil
		if s.cur != s.src {
			s.spare = s.cur
		}
		s.cur = dst
	}
	s.logger.Debug("step done", "op", step.String(), "size", s.cur.String(),
		"elapsed", time.Since(start))
	return nil
}

// Pipeline runs steps in order on a fresh session.
type Pipeline struct {
	Engine kernel.Engine
	Steps  []Step
	Logger *slog.Logger
}

// Run applies every step to src and returns the final buffer. src itself is
// never written.
func (p *Pipeline) Run(src *pixbuf.Buffer) (*pixbuf.Buffer, error) {
	sess, err := NewSession(p.Engine, p.Logger, src)
	if err != nil {
		return nil, err
	}
	for i, step := range p.Steps {
		if err := sess.Apply(step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return sess.Result(), nil
}
