package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fmueller/moji/internal/cli"
	"github.com/fmueller/moji/internal/convert"
	"github.com/fmueller/moji/internal/pipeline"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	cmd := cli.NewRootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	fmt.Fprintln(stderr, err)
	if hint := failureHint(err); hint != "" {
		fmt.Fprintln(stderr, hint)
	}
	if shouldPrintUsageHint(err) {
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", helpHintTarget(cmd, args))
	}
	return 1
}

// failureHint suggests a next step for pipeline failures a user can act on.
func failureHint(err error) string {
	var conversion *convert.ConversionError
	switch {
	case errors.Is(err, pipeline.ErrModelLoad):
		return "Run 'moji setup' to download the model, or point --model at a ggml model file."
	case errors.As(err, &conversion):
		return "Check that ffmpeg is installed (or set MOJI_FFMPEG_PATH) and that the file is a supported audio format."
	default:
		return ""
	}
}

func shouldPrintUsageHint(err error) bool {
	if err == nil {
		return false
	}

	message := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"accepts ",
		"requires at least",
		"requires at most",
		"required flag",
	}

	for _, pattern := range patterns {
		if strings.Contains(message, pattern) {
			return true
		}
	}

	return false
}

func helpHintTarget(root *cobra.Command, args []string) string {
	if root == nil {
		return "moji"
	}

	target := root.CommandPath()
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return target
	}

	found, _, err := root.Find(args)
	if err == nil && found != nil {
		return found.CommandPath()
	}

	return target
}
