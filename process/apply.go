package process

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alecthomas/kong"
	"github.com/samber/lo"

	"pixelworks/codec"
	"pixelworks/kernel"
	"pixelworks/pipeline"
)

type ApplyCmd struct {
	Input  string   `arg:"" help:"Source image" type:"existingfile"`
	Output string   `arg:"" help:"Destination image"`
	Ops    []string `name:"op" short:"o" help:"${ops_help}" required:"" sep:"none"`
	Format string   `help:"Output format, taken from the destination extension when auto" enum:"auto,gif,jpeg,png,bmp,tiff" default:"auto"`

	steps []pipeline.Step `kong:"-"`
}

func (c *ApplyCmd) Validate(kctx *kong.Context) error {
	var err error
	if c.steps, err = parseOps(c.Ops); err != nil {
		return err
	}

	if c.Format == "" || c.Format == "auto" {
		format, err := codec.FormatOf(c.Output)
		if err != nil {
			return fmt.Errorf("invalid output %q: %w", c.Output, err)
		}
		if !lo.Contains(codec.Formats, format) {
			return fmt.Errorf("invalid output %q: %w: cannot encode %s", c.Output, codec.ErrUnsupported, format)
		}
		c.Format = format
	}
	return nil
}

func (c *ApplyCmd) Run(engine kernel.Engine) error {
	logger := slog.Default().With("file", c.Input)
	start := time.Now()

	src, format, err := codec.Load(c.Input, engine.Limits)
	if err != nil {
		return err
	}
	logger.Debug("loaded", "format", format, "size", src.String())

	p := pipeline.Pipeline{Engine: engine, Steps: c.steps, Logger: logger}
	out, err := p.Run(src)
	if err != nil {
		return fmt.Errorf("could not process %q: %w", c.Input, err)
	}

	if err := codec.Save(out, c.Output, c.Format); err != nil {
		return err
	}
	logger.Info("saved", "to", c.Output, "format", c.Format, "size", out.String(),
		"steps", len(c.steps), "elapsed", time.Since(start))
	return nil
}
