package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/raysh454/offerlens/internal/history"
)

// Command selects what a run does.
type Command string

const (
	CommandServe    Command = "serve"
	CommandValidate Command = "validate"
)

var ErrUsage = errors.New("usage: offerlens <serve|validate> [flags]")

// CLIArgs are the command-line arguments of a single run.
type CLIArgs struct {
	Command Command

	// ConfigPath is an optional YAML file layered over the defaults.
	ConfigPath string

	// Addr overrides the configured listen address for serve.
	Addr string

	// BatchSize overrides the configured bulk batch size; 0 means "use config default".
	BatchSize int

	// Format is the validate output format: json or csv.
	Format string

	// URLs are the offers to validate.
	URLs []string

	// RawArgs is the original args slice (useful for debugging/tests).
	RawArgs []string
}

// ParseArgs parses a slice of args and returns CLIArgs. Use in tests by passing
// arbitrary slices. The function is deterministic and does not read os.Args.
func ParseArgs(args []string) (*CLIArgs, error) {
	if len(args) == 0 {
		return nil, ErrUsage
	}

	out := &CLIArgs{Command: Command(args[0]), RawArgs: args}
	fs := flag.NewFlagSet("offerlens "+args[0], flag.ContinueOnError)
	// Ensure Parse doesn't write to stdout/stderr in tests
	fs.SetOutput(io.Discard)
	fs.StringVar(&out.ConfigPath, "config", "", "Path to a YAML config file")

	switch out.Command {
	case CommandServe:
		fs.StringVar(&out.Addr, "addr", "", "Listen address (default from config)")
	case CommandValidate:
		fs.IntVar(&out.BatchSize, "batch", 0, "URLs per batch (0=use config default)")
		fs.StringVar(&out.Format, "format", history.FormatJSON, "Output format: json|csv")
	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}

	if out.Command == CommandServe {
		if fs.NArg() > 0 {
			return nil, fmt.Errorf("serve takes no arguments, got %q", fs.Args())
		}
		return out, nil
	}

	if out.BatchSize < 0 {
		return nil, fmt.Errorf("-batch must not be negative")
	}
	if !history.SupportedFormat(out.Format) {
		return nil, fmt.Errorf("%w: %s", history.ErrUnsupportedFormat, out.Format)
	}
	for _, u := range fs.Args() {
		if u = strings.TrimSpace(u); u != "" {
			out.URLs = append(out.URLs, u)
		}
	}
	if len(out.URLs) == 0 {
		return nil, fmt.Errorf("validate needs at least one URL")
	}
	return out, nil
}
