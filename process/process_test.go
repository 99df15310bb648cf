package process

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelworks/codec"
	"pixelworks/kernel"
	"pixelworks/pipeline"
	"pixelworks/pixbuf"
)

var testEngine = kernel.Engine{Workers: 3, Limits: pixbuf.DefaultLimits}

func writeImage(t *testing.T, path string, w, h int) *pixbuf.Buffer {
	t.Helper()
	buf, err := codec.Pattern(w, h)
	require.NoError(t, err)
	require.NoError(t, codec.Save(buf, path, ""))
	return buf
}

func expected(t *testing.T, src *pixbuf.Buffer, ops ...string) *pixbuf.Buffer {
	t.Helper()
	steps, err := pipeline.ParseAll(ops)
	require.NoError(t, err)
	p := pipeline.Pipeline{Engine: kernel.Engine{Workers: 1}, Steps: steps}
	out, err := p.Run(src)
	require.NoError(t, err)
	return out
}

func load(t *testing.T, path string) *pixbuf.Buffer {
	t.Helper()
	buf, _, err := codec.Load(path, pixbuf.DefaultLimits)
	require.NoError(t, err)
	return buf
}

func TestOutputFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src, want, out string
	}{
		{src: "png", want: "same", out: "png"},
		{src: "webp", want: "same", out: "webp"},
		{src: "jpeg", want: "png", out: "png"},
		{src: "jpeg", want: "unsup:png", out: "jpeg"},
		{src: "webp", want: "unsup:png", out: "png"},
		{src: "webp", want: "unsup:tiff", out: "tiff"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.out, outputFormat(tt.src, tt.want), "%s as %s", tt.src, tt.want)
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	src := writeImage(t, in, 40, 30)

	cmd := ApplyCmd{
		Input:  in,
		Output: filepath.Join(dir, "out.bmp"),
		Ops:    []string{"blur:medium", "rotate:15", "resize:20x10"},
		Format: "auto",
	}
	require.NoError(t, cmd.Validate(nil))
	assert.Equal(t, "bmp", cmd.Format)
	require.NoError(t, cmd.Run(testEngine))

	got := load(t, cmd.Output)
	want := expected(t, src, cmd.Ops...)
	assert.True(t, want.Equal(got), "got %s want %s", got, want)
}

func TestApply_Validate(t *testing.T) {
	t.Parallel()

	tests := []ApplyCmd{
		{Output: "out.png", Format: "auto"},
		{Output: "out.png", Format: "auto", Ops: []string{"twirl"}},
		{Output: "out.webp", Format: "auto", Ops: []string{"sobel"}},
		{Output: "out", Format: "auto", Ops: []string{"sobel"}},
	}
	for _, cmd := range tests {
		assert.Error(t, cmd.Validate(nil), "%+v", cmd)
	}

	cmd := ApplyCmd{Output: "out", Format: "tiff", Ops: []string{"sobel"}}
	assert.NoError(t, cmd.Validate(nil))
}

func TestApply_Parse(t *testing.T) {
	t.Parallel()

	var grammar struct {
		Apply ApplyCmd `cmd:""`
	}
	parser, err := kong.New(&grammar, Vars())
	require.NoError(t, err)

	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writeImage(t, in, 4, 4)

	_, err = parser.Parse([]string{"apply", in, filepath.Join(dir, "out.png"),
		"--op", "convolve:0,0,0,0,1,0,0,0,0;bias=1", "-o", "sobel"})
	require.NoError(t, err)
	assert.Equal(t, []string{"convolve:0,0,0,0,1,0,0,0,0;bias=1", "sobel"}, grammar.Apply.Ops)
	assert.Equal(t, "png", grammar.Apply.Format)
	require.Len(t, grammar.Apply.steps, 2)
}

func TestBatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeImage(t, filepath.Join(dir, "a.png"), 16, 12)
	b := writeImage(t, filepath.Join(dir, "b.bmp"), 9, 20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	cmd := BatchCmd{
		Scan:   dir,
		Dest:   "out",
		Ops:    []string{"sobel", "blur"},
		Format: "unsup:png",
		Jobs:   2,
	}
	require.NoError(t, cmd.Validate(nil))
	assert.Equal(t, filepath.Join(dir, "out"), cmd.Dest)
	require.NoError(t, cmd.Run(testEngine))

	assert.True(t, expected(t, a, cmd.Ops...).Equal(load(t, filepath.Join(dir, "out", "a.png"))))
	assert.True(t, expected(t, b, cmd.Ops...).Equal(load(t, filepath.Join(dir, "out", "b.bmp"))))

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// existing destinations are errors unless overwriting
	err = cmd.Run(testEngine)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error processing 2 files")

	cmd.Overwrite = true
	cmd.Format = "tiff"
	require.NoError(t, cmd.Run(testEngine))
	assert.FileExists(t, filepath.Join(dir, "out", "a.tiff"))
	assert.FileExists(t, filepath.Join(dir, "out", "b.tiff"))
}

func TestBatch_DestinationCollision(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeImage(t, filepath.Join(dir, "a.png"), 6, 5)
	b := writeImage(t, filepath.Join(dir, "a.bmp"), 7, 3)

	cmd := BatchCmd{
		Scan:      dir,
		Dest:      "out",
		Ops:       []string{"identity"},
		Format:    "tiff",
		Jobs:      2,
		Overwrite: true,
	}
	require.NoError(t, cmd.Validate(nil))
	err := cmd.Run(testEngine)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error processing 1 files")

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.tiff", entries[0].Name())

	got := load(t, filepath.Join(dir, "out", "a.tiff"))
	assert.True(t, a.Equal(got) || b.Equal(got), "output is one complete input, got %s", got)
}

func TestBatch_Validate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "file.png")
	writeImage(t, file, 2, 2)

	tests := []BatchCmd{
		{Scan: filepath.Join(dir, "missing"), Ops: []string{"sobel"}},
		{Scan: file, Ops: []string{"sobel"}},
		{Scan: dir, Ops: []string{"sobel"}, Jobs: -1},
		{Scan: dir},
		{Scan: dir, Ops: []string{"rotate:x"}},
	}
	for _, cmd := range tests {
		assert.Error(t, cmd.Validate(nil), "%+v", cmd)
	}

	cmd := BatchCmd{Scan: dir, Dest: "/elsewhere", Ops: []string{"sobel"}}
	require.NoError(t, cmd.Validate(nil))
	assert.Equal(t, "/elsewhere", cmd.Dest)
}

func TestMenu(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cmd := MenuCmd{Output: filepath.Join(dir, "menu.png"), Format: "auto"}
	require.NoError(t, cmd.Validate(nil))

	var out bytes.Buffer
	console := Console{In: strings.NewReader("1 b\n2\n4 64 32\n3 90\n5\n"), Out: &out}
	require.NoError(t, cmd.Run(testEngine, console))

	demo, err := codec.Pattern(DemoSize, DemoSize)
	require.NoError(t, err)
	want := expected(t, demo, "blur:medium", "sobel", "resize:64x32", "rotate:90")
	got := load(t, cmd.Output)
	assert.True(t, want.Equal(got), "got %s want %s", got, want)

	assert.Contains(t, out.String(), "Image Processing Menu")
	assert.Contains(t, out.String(), "Applied blur 3 time(s)")
	assert.Contains(t, out.String(), "Saved to "+cmd.Output)
}

func TestMenu_Input(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	src := writeImage(t, in, 10, 7)

	cmd := MenuCmd{Input: in, Output: filepath.Join(dir, "out.tiff"), Format: "auto"}
	require.NoError(t, cmd.Validate(nil))

	var out bytes.Buffer
	// "1c" picks the option and the strength in one answer, input ends without 5
	require.NoError(t, cmd.Run(testEngine, Console{In: strings.NewReader("1c"), Out: &out}))
	assert.Contains(t, out.String(), "Applied blur 10 time(s)")
	assert.True(t, expected(t, src, "blur:heavy").Equal(load(t, cmd.Output)))
}

func TestMenu_InvalidAnswers(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := MenuCmd{}
	require.NoError(t, cmd.Validate(nil))
	input := "1 z\n9\n3 left\n4 0 5\n4 100000 100000\nquit\n"
	engine := kernel.Engine{Workers: 2, Limits: pixbuf.Limits{MaxPixels: DemoSize * DemoSize}}
	require.NoError(t, cmd.Run(engine, Console{In: strings.NewReader(input), Out: &out}))

	text := out.String()
	assert.Contains(t, text, "Invalid choice, using light blur")
	assert.Contains(t, text, "Applied blur 1 time(s)")
	assert.Contains(t, text, "Invalid option.")
	assert.Contains(t, text, "Invalid angle.")
	assert.Contains(t, text, "Invalid size.")
	assert.Contains(t, text, "Could not apply resize:100000x100000")
	assert.Contains(t, text, "No output given, result discarded")
	assert.Equal(t, 6, strings.Count(text, "Option: "))
}

func TestMenu_Validate(t *testing.T) {
	t.Parallel()

	assert.Error(t, (&MenuCmd{Output: "x.webp", Format: "auto"}).Validate(nil))
	assert.Error(t, (&MenuCmd{Output: "x.dat", Format: "auto"}).Validate(nil))
	assert.NoError(t, (&MenuCmd{Output: "x.dat", Format: "png"}).Validate(nil))
}
