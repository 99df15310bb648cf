package process

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/samber/lo"

	"pixelworks/codec"
	"pixelworks/kernel"
	"pixelworks/pipeline"
	"pixelworks/pixbuf"
)

// DemoSize is the side of the pattern the menu works on without an input.
const DemoSize = 256

var blurChoices = map[string]string{
	"a": "light",
	"b": "medium",
	"c": "heavy",
}

type MenuCmd struct {
	Input  string `arg:"" optional:"" help:"Source image, a demo pattern when omitted" type:"existingfile"`
	Output string `arg:"" optional:"" help:"Where the result is saved on exit"`
	Format string `help:"Output format, taken from the destination extension when auto" enum:"auto,gif,jpeg,png,bmp,tiff" default:"auto"`
}

func (c *MenuCmd) Validate(kctx *kong.Context) error {
	if c.Output == "" || (c.Format != "" && c.Format != "auto") {
		return nil
	}
	format, err := codec.FormatOf(c.Output)
	if err != nil {
		return fmt.Errorf("invalid output %q: %w", c.Output, err)
	}
	if !lo.Contains(codec.Formats, format) {
		return fmt.Errorf("invalid output %q: %w: cannot encode %s", c.Output, codec.ErrUnsupported, format)
	}
	c.Format = format
	return nil
}

func (c *MenuCmd) Run(engine kernel.Engine, console Console) error {
	src, err := c.load(engine)
	if err != nil {
		return err
	}

	sess, err := pipeline.NewSession(engine, nil, src)
	if err != nil {
		return err
	}

	m := menu{
		in:   bufio.NewScanner(console.In),
		out:  console.Out,
		sess: sess,
	}
	m.in.Split(bufio.ScanWords)
	m.loop()

	if c.Output == "" {
		fmt.Fprintln(m.out, "No output given, result discarded")
		return nil
	}
	format := c.Format
	if format == "auto" {
		format = ""
	}
	if err := codec.Save(sess.Image(), c.Output, format); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Saved to %s\n", c.Output)
	return nil
}

func (c *MenuCmd) load(engine kernel.Engine) (*pixbuf.Buffer, error) {
	if c.Input == "" {
		slog.Info("no input, using demo pattern", "size", DemoSize)
		return codec.Pattern(DemoSize, DemoSize)
	}
	buf, _, err := codec.Load(c.Input, engine.Limits)
	return buf, err
}

type menu struct {
	in      *bufio.Scanner
	out     io.Writer
	sess    *pipeline.Session
	pending string
}

// loop reads options until 5, end of input or a non-numeric option.
func (m *menu) loop() {
	for {
		m.pending = ""
		m.print()
		tok, ok := m.next()
		if !ok {
			return
		}
		// "1b" answers the option and the blur strength at once
		digits := strings.IndexFunc(tok, func(r rune) bool { return r < '0' || r > '9' })
		if digits > 0 {
			tok, m.pending = tok[:digits], tok[digits:]
		}
		op, err := strconv.Atoi(tok)
		if err != nil {
			return
		}

		switch op {
		case 1:
			m.blur()
		case 2:
			m.apply(pipeline.Sobel())
		case 3:
			fmt.Fprint(m.out, "Angle (degrees): ")
			deg, ok := m.nextFloat()
			if !ok {
				fmt.Fprintln(m.out, "Invalid angle.")
				continue
			}
			m.apply(pipeline.Rotate(deg))
		case 4:
			fmt.Fprint(m.out, "New width: ")
			w, wok := m.nextInt()
			fmt.Fprint(m.out, "New height: ")
			h, hok := m.nextInt()
			if !wok || !hok || w < 1 || h < 1 {
				fmt.Fprintln(m.out, "Invalid size.")
				continue
			}
			m.apply(pipeline.Resize(w, h))
		case 5:
			return
		default:
			fmt.Fprintln(m.out, "Invalid option.")
		}
	}
}

func (m *menu) print() {
	fmt.Fprint(m.out, `
Image Processing Menu
1) Convolution (3x3 blur)
  1a) Light blur
  1b) Medium blur
  1c) Heavy blur
2) Sobel edge detection
3) Rotate (degrees)
4) Resize (new width/height)
5) Save and exit
Option: `)
}

func (m *menu) blur() {
	fmt.Fprintf(m.out, `Choose blur strength:
  a) Light blur (%dx)
  b) Medium blur (%dx applications)
  c) Heavy blur (%dx applications)
Choice (a/b/c): `, pipeline.BlurPasses["light"], pipeline.BlurPasses["medium"], pipeline.BlurPasses["heavy"])

	choice, _ := m.next()
	strength, ok := blurChoices[choice]
	if !ok {
		fmt.Fprintln(m.out, "Invalid choice, using light blur")
		strength = "light"
	}
	passes := pipeline.BlurPasses[strength]
	if m.apply(pipeline.Blur(passes)) {
		fmt.Fprintf(m.out, "Applied blur %d time(s)\n", passes)
	}
}

func (m *menu) apply(step pipeline.Step) bool {
	if err := m.sess.Apply(step); err != nil {
		slog.Error("could not apply operation", "op", step.String(), "error", err)
		fmt.Fprintf(m.out, "Could not apply %s: %v\n", step, err)
		return false
	}
	return true
}

func (m *menu) next() (string, bool) {
	if m.pending != "" {
		tok := m.pending
		m.pending = ""
		return tok, true
	}
	if !m.in.Scan() {
		return "", false
	}
	return m.in.Text(), true
}

func (m *menu) nextInt() (int, bool) {
	tok, ok := m.next()
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(tok)
	return v, err == nil
}

func (m *menu) nextFloat() (float64, bool) {
	tok, ok := m.next()
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	return v, err == nil
}
