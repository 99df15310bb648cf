// Package codec moves pixel buffers in and out of image files.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/vp8l"
	_ "golang.org/x/image/webp"

	"pixelworks/pixbuf"
)

var ErrUnsupported = errors.New("unsupported operation")

// Formats lists the formats Encode can write.
var Formats = []string{"gif", "jpeg", "png", "bmp", "tiff"}

var extensions = map[string]string{
	".gif":  "gif",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".png":  "png",
	".bmp":  "bmp",
	".tif":  "tiff",
	".tiff": "tiff",
	".webp": "webp",
}

// FormatOf guesses the format of path from its extension.
func FormatOf(path string) (string, error) {
	format, ok := extensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("%w: unknown image extension %q", ErrUnsupported, filepath.Ext(path))
	}
	return format, nil
}

// Decode reads any registered image format into a buffer. The header is
// checked against limits before any pixel is decoded.
func Decode(r io.Reader, limits pixbuf.Limits) (*pixbuf.Buffer, string, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, "", fmt.Errorf("could not read image: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	cfg, format, err := image.DecodeConfig(rs)
	switch {
	case errors.Is(err, image.ErrFormat):
		return nil, "", fmt.Errorf("%w: %w", ErrUnsupported, err)
	case err != nil:
		return nil, format, fmt.Errorf("could not read image header: %w", err)
	}
	if err := limits.Check(cfg.Width, cfg.Height); err != nil {
		return nil, format, err
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, format, fmt.Errorf("could not rewind image: %w", err)
	}
	img, format, err := image.Decode(rs)
	if err != nil {
		return nil, format, fmt.Errorf("could not decode image: %w", err)
	}

	buf, err := FromImage(img, limits)
	if err != nil {
		return nil, format, err
	}
	return buf, format, nil
}

// Load decodes the image file at path.
func Load(path string, limits pixbuf.Limits) (*pixbuf.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("could not open image %q: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Error("could not close image", "file", path, "error", closeErr)
		}
	}()

	buf, format, err := Decode(f, limits)
	if err != nil {
		return nil, format, fmt.Errorf("could not load %q: %w", path, err)
	}
	return buf, format, nil
}

// Encode writes buf to w in the given format.
func Encode(w io.Writer, buf *pixbuf.Buffer, format string) error {
	if !lo.Contains(Formats, format) {
		return fmt.Errorf("%w: cannot encode %q", ErrUnsupported, format)
	}

	img, err := ToImage(buf)
	if err != nil {
		return err
	}

	switch format {
	case "gif":
		err = gif.Encode(w, img, nil)
	case "jpeg":
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
	case "png":
		enc := png.Encoder{
			CompressionLevel: png.BestCompression,
			BufferPool:       pngPool,
		}
		err = enc.Encode(w, img)
	case "bmp":
		err = bmp.Encode(w, img)
	case "tiff":
		err = tiff.Encode(w, img, nil)
	}
	if err != nil {
		return fmt.Errorf("could not encode %s: %w", strings.ToUpper(format), err)
	}
	return nil
}

// Save writes buf to path through a temporary file in the same folder, so an
// existing file is only replaced by a complete image. An empty format is
// taken from the extension of path.
func Save(buf *pixbuf.Buffer, path, format string) (err error) {
	if format == "" {
		if format, err = FormatOf(path); err != nil {
			return err
		}
	}
	if !lo.Contains(Formats, format) {
		return fmt.Errorf("%w: cannot encode %q", ErrUnsupported, format)
	}

	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	outFile, err := os.CreateTemp(dir, name+".*")
	if err != nil {
		return fmt.Errorf("could not create temporary destination for %q: %w", path, err)
	}

	canRename := false
	defer func() {
		if defErr := outFile.Sync(); defErr != nil && err == nil {
			err = fmt.Errorf("could not flush temporary destination %q: %w", outFile.Name(), defErr)
		}
		if defErr := outFile.Close(); defErr != nil && err == nil {
			err = fmt.Errorf("could not close temporary destination %q: %w", outFile.Name(), defErr)
		}

		if canRename && err == nil {
			if defErr := os.Rename(outFile.Name(), path); defErr != nil {
				err = fmt.Errorf("could not rename destination file %q: %w", path, defErr)
			}
		}
		if err != nil {
			if rmErr := os.Remove(outFile.Name()); rmErr != nil {
				slog.Error("could not remove temporary destination", "file", outFile.Name(), "error", rmErr)
			}
		}
	}()

	if err = Encode(outFile, buf, format); err != nil {
		return fmt.Errorf("could not save %q: %w", path, err)
	}

	canRename = true
	return nil
}

type pngEncoderBufferPool struct {
	pool sync.Pool
}

func (p *pngEncoderBufferPool) Get() *png.EncoderBuffer {
	return p.pool.Get().(*png.EncoderBuffer)
}

func (p *pngEncoderBufferPool) Put(buf *png.EncoderBuffer) {
	p.pool.Put(buf)
}

var pngPool = &pngEncoderBufferPool{
	pool: sync.Pool{
		New: func() any {
			return &png.EncoderBuffer{}
		},
	},
}
