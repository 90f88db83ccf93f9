package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/paperqa/pkg/config"
	"github.com/xhad/paperqa/pkg/pipeline"
)

// app holds what every subcommand needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewRootCmd(version string) *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "paperqa",
		Short:         "Ask questions about research papers",
		Long:          `Index a PDF paper by its sections and answer questions grounded in its text.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	rootCmd.AddCommand(
		NewChatCmd(a),
		NewAskCmd(a),
		NewSectionsCmd(a),
		NewOverviewCmd(a),
		NewServeCmd(a),
	)
	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "Path to config file")
	cmd.PersistentFlags().String("ollama-url", "", "Ollama server URL")
	cmd.PersistentFlags().String("model", "", "Chat model")
	cmd.PersistentFlags().Bool("rerank", false, "Rerank retrieved passages with the language model")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose logging")
}

func (a *app) init(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}

	if url, _ := cmd.Flags().GetString("ollama-url"); url != "" {
		cfg.LLM.BaseURL = url
		cfg.Embedder.BaseURL = url
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.LLM.Model = model
	}
	if cmd.Flags().Changed("rerank") {
		cfg.Reranker.Enabled, _ = cmd.Flags().GetBool("rerank")
	}

	if cfg.UI.Theme == "plain" {
		color.NoColor = true
	}

	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	a.cfg = cfg
	return nil
}

func (a *app) pipeline(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	p, closeFn, err := pipeline.FromConfig(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	return p, closeFn, nil
}

// open builds a pipeline and indexes the document at path behind a spinner.
func (a *app) open(ctx context.Context, path string) (*pipeline.Pipeline, *pipeline.Handle, func(), error) {
	p, closeFn, err := a.pipeline(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	spinner := getSpinner("📄 Indexing " + path + "...")
	h, err := p.IndexDocument(ctx, path)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	color.Green("✓ Indexed %d sections into %d passages\n", len(h.Sections), h.Index.Len())
	return p, h, closeFn, nil
}
