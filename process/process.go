// Package process holds the command line commands. Each command is a kong
// struct whose Validate hook checks and normalizes flags before Run is called
// with the kernel.Engine configured from the global flags.
package process

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/samber/lo"

	"pixelworks/codec"
	"pixelworks/pipeline"
)

// OpsHelp documents the --op syntax shared by apply and batch.
const OpsHelp = "Operation to run, repeat for more: blur[:light|medium|heavy|N], sobel, rotate:DEG, " +
	"resize:WxH, fit:WxH, convolve:W1,W2,...[;factor=F][;bias=B], identity"

// Vars are the help interpolations the command tags refer to.
func Vars() kong.Vars {
	return kong.Vars{"ops_help": OpsHelp}
}

// Console is where interactive commands read answers and write prompts.
type Console struct {
	In  io.Reader
	Out io.Writer
}

// StdConsole is the terminal.
func StdConsole() Console {
	return Console{In: os.Stdin, Out: os.Stdout}
}

func parseOps(ops []string) ([]pipeline.Step, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("no operation given")
	}
	steps, err := pipeline.ParseAll(ops)
	if err != nil {
		return nil, fmt.Errorf("invalid --op: %w", err)
	}
	return steps, nil
}

// outputFormat resolves the format an image decoded as srcFormat is written
// in. want is a format name, "same", or "unsup:" followed by the format that
// replaces only the formats codec cannot encode.
func outputFormat(srcFormat, want string) string {
	want, unsupOnly := strings.CutPrefix(want, "unsup:")
	if want == "same" || (unsupOnly && lo.Contains(codec.Formats, srcFormat)) {
		return srcFormat
	}
	return want
}
