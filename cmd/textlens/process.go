package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/HerbHall/textlens/pkg/llm"
)

// runProcess runs one selection through the pipeline and streams the
// result to stdout. Returns the process exit code.
func runProcess(args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to configuration file")
	text := fs.String("text", "", "selected text to process (\"-\" reads stdin)")
	templateID := fs.Int64("template", 0, "prompt template ID (default: first template)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	selected := *text
	if selected == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read stdin: %v\n", err)
			return 1
		}
		selected = string(b)
	}
	if selected == "" {
		fmt.Fprintln(os.Stderr, "process: -text is required")
		fs.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "textlens: %v\n", err)
		return 1
	}
	defer a.close()

	wrote := false
	for frag, err := range a.pipeline.Run(ctx, selected, *templateID) {
		if err != nil {
			if wrote {
				fmt.Println()
			}
			if llm.IsCanceled(err) {
				fmt.Fprintln(os.Stderr, "canceled")
				return 130
			}
			fmt.Fprintln(os.Stderr, llm.UserMessage(err))
			return 1
		}
		fmt.Print(frag)
		wrote = true
	}
	if wrote {
		fmt.Println()
	}
	return 0
}
