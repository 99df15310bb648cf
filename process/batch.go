package process

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/alecthomas/kong"

	"pixelworks/codec"
	"pixelworks/kernel"
	"pixelworks/parallel"
	"pixelworks/pipeline"
)

type BatchCmd struct {
	Scan      string   `help:"Source folder to scan" default:"."`
	Dest      string   `help:"Destination folder for processed pictures. Relative to scan dir if not absolute." default:"processed"`
	Ops       []string `name:"op" short:"o" help:"${ops_help}" required:"" sep:"none"`
	Format    string   `help:"Output format of processed images. If prefixed with 'unsup:' will convert only formats that cannot be written" enum:"same,gif,unsup:gif,jpeg,unsup:jpeg,png,unsup:png,bmp,unsup:bmp,tiff,unsup:tiff" default:"unsup:png"`
	Jobs      int      `help:"Images processed at the same time, GOMAXPROCS when 0" default:"0"`
	Overwrite bool     `help:"Replace existing destination files" default:"false"`

	steps []pipeline.Step `kong:"-"`
}

func (c *BatchCmd) Validate(kctx *kong.Context) error {
	scanDir, err := filepath.Abs(c.Scan)
	var info os.FileInfo
	if err == nil {
		if info, err = os.Stat(scanDir); err == nil && !info.IsDir() {
			err = fmt.Errorf("not a directory")
		}
	}
	if err != nil {
		return fmt.Errorf("invalid scan path %q: %w", c.Scan, err)
	}
	c.Scan = scanDir

	if !filepath.IsAbs(c.Dest) {
		c.Dest = filepath.Join(scanDir, c.Dest)
	}

	if c.Jobs < 0 {
		return fmt.Errorf("invalid job count: %d", c.Jobs)
	}

	c.steps, err = parseOps(c.Ops)
	return err
}

func (c *BatchCmd) Run(engine kernel.Engine) error {
	if err := os.MkdirAll(c.Dest, 0o755); err != nil {
		return fmt.Errorf("unable to create destination folder %q: %w", c.Dest, err)
	}

	files, err := os.ReadDir(c.Scan)
	if err != nil {
		return fmt.Errorf("unable to read folder %q: %w", c.Scan, err)
	}

	pool := parallel.Start(c.Jobs)
	slog.Debug("batch started", "scan", c.Scan, "dest", c.Dest, "jobs", pool.Workers(), "workers", engine.Workers)

	var processedCount, skippedCount, errCount atomic.Uint64
	// destination path -> source file name, so two inputs that map to the
	// same output do not silently replace each other
	var claimed sync.Map
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if _, err := codec.FormatOf(file.Name()); err != nil {
			skippedCount.Add(1)
			slog.Debug("skipping", "file", file.Name(), "reason", err)
			continue
		}

		pool.Submit(func() {
			logger := slog.Default().With("file", filepath.Join(c.Scan, file.Name()))
			if err := c.processFile(logger, engine, &claimed, file.Name()); err != nil {
				errCount.Add(1)
				logger.Error("could not process image", "error", err)
				return
			}
			processedCount.Add(1)
		})
	}

	pool.Wait()

	processed := processedCount.Load()
	errors := errCount.Load()
	slog.Info("stats", "processed", processed, "skipped", skippedCount.Load(), "errors", errors,
		"total", processed+errors)

	if errors > 0 {
		return fmt.Errorf("error processing %d files", errors)
	}
	return nil
}

func (c *BatchCmd) processFile(logger *slog.Logger, engine kernel.Engine, claimed *sync.Map, fileName string) error {
	src, format, err := codec.Load(filepath.Join(c.Scan, fileName), engine.Limits)
	if err != nil {
		return err
	}

	outFormat := outputFormat(format, c.Format)
	dest := filepath.Join(c.Dest, strings.TrimSuffix(fileName, filepath.Ext(fileName))+"."+outFormat)
	if owner, taken := claimed.LoadOrStore(dest, fileName); taken {
		return fmt.Errorf("destination %q is already written from %q", dest, owner)
	}
	if !c.Overwrite {
		if err := checkDest(dest); err != nil {
			return err
		}
	}

	p := pipeline.Pipeline{Engine: engine, Steps: c.steps, Logger: logger}
	out, err := p.Run(src)
	if err != nil {
		return err
	}

	if err := codec.Save(out, dest, outFormat); err != nil {
		return err
	}
	logger.Info("saved", "to", dest, "size", out.String())
	return nil
}

func checkDest(dest string) error {
	_, err := os.Stat(dest)
	switch {
	case err == nil:
		return fmt.Errorf("destination file already exists: %q", dest)
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("cannot stat destination file %q: %w", dest, err)
	}
	return nil
}
