package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/paperqa/internal/types"
	"github.com/xhad/paperqa/pkg/pipeline"
)

func NewChatCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <document>",
		Short: "Ask questions about a document interactively",
		Long: `Index a document, then answer questions typed on stdin.
Type "sections" to list headings, "overview" for document stats and "exit" to quit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, a, args[0])
		},
	}
	return cmd
}

func runChat(cmd *cobra.Command, a *app, path string) error {
	ctx := cmd.Context()
	p, h, closeFn, err := a.open(ctx, path)
	if err != nil {
		return err
	}
	defer closeFn()

	out := cmd.OutOrStdout()
	color.Cyan("\nAsk about %s (type 'exit' to quit)", path)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(query) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "sections":
			for _, s := range h.Sections {
				fmt.Fprintln(out, s.Heading)
			}
			continue
		case "overview":
			printOverview(out, p.Overview(h))
			continue
		}

		if err := answer(ctx, a, p, h, query, assistantPrompt); err != nil {
			if errors.Is(err, types.ErrCancelled) && ctx.Err() != nil {
				return nil
			}
			color.Red("\nError: %v", err)
		}
	}
	return scanner.Err()
}

func answer(
	ctx context.Context,
	a *app,
	p *pipeline.Pipeline,
	h *pipeline.Handle,
	query string,
	assistantPrompt func(string, ...interface{}),
) error {
	spinner := getSpinner("🔍 Searching the paper...")
	started := false
	onState := func(st pipeline.State) {
		if st == pipeline.StateSynthesizing {
			spinner.Describe(color.CyanString("🤖 Generating response..."))
		}
	}
	onChunk := func(chunk string) error {
		if !started {
			started = true
			spinner.Finish()
			fmt.Print("\r")
			assistantPrompt("Assistant: ")
		}
		assistantPrompt("%s", chunk)
		return nil
	}

	result, err := p.QueryStream(ctx, h, query, 0, onState, onChunk)
	if !started {
		spinner.Finish()
		fmt.Print("\r")
	}
	fmt.Println()
	if result != nil && a.cfg.UI.ShowEvidence {
		printEvidence(color.Output, result.Evidence)
	}
	return err
}
