package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/alecthomas/kong"

	"pixelworks/kernel"
	"pixelworks/pixbuf"
	"pixelworks/process"
)

type cli struct {
	Config    kong.ConfigFlag `help:"JSON file with default flag values"`
	Workers   int             `help:"Goroutines per transform, GOMAXPROCS when 0" env:"PIXELWORKS_WORKERS" default:"0"`
	MaxPixels int             `help:"Largest image accepted, in pixels. 0 disables the limit" default:"268435456"`
	LogLevel  string          `help:"Log level" enum:"debug,info,warn,error" default:"info"`
	LogFormat string          `help:"Log output format" enum:"text,json" default:"text"`

	Apply process.ApplyCmd `cmd:"" help:"Run operations on one image"`
	Batch process.BatchCmd `cmd:"" help:"Run operations on every image in a folder"`
	Menu  process.MenuCmd  `cmd:"" help:"Interactive menu, on a demo pattern when no input is given"`
}

func (c *cli) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("invalid worker count: %d", c.Workers)
	}
	if c.MaxPixels < 0 {
		return fmt.Errorf("invalid pixel limit: %d", c.MaxPixels)
	}
	return nil
}

func (c *cli) engine() kernel.Engine {
	workers := c.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return kernel.Engine{
		Workers: workers,
		Limits:  pixbuf.Limits{MaxPixels: c.MaxPixels},
	}
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("pixelworks"),
		kong.Description("Parallel image filters: blur, edge detection, rotation and resize."),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON),
		process.Vars(),
	)

	slog.SetDefault(newLogger(os.Stderr, c.LogLevel, c.LogFormat))

	engine := c.engine()
	slog.Debug("running", "command", kctx.Command(), "workers", engine.Workers, "max_pixels", engine.Limits.MaxPixels)

	if err := kctx.Run(engine, process.StdConsole()); err != nil {
		slog.Error("command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}
