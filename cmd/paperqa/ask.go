package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xhad/paperqa/internal/types"
)

func NewAskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <document> <question>",
		Short: "Answer a single question about a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, _ := cmd.Flags().GetInt("top-k")
			asJSON, _ := cmd.Flags().GetBool("json")
			return runAsk(cmd, a, args[0], args[1], k, asJSON)
		},
	}

	cmd.Flags().IntP("top-k", "k", 0, "Passages to retrieve (0 uses the configured default)")
	cmd.Flags().Bool("json", false, "Output in JSON format")
	return cmd
}

func runAsk(cmd *cobra.Command, a *app, path, question string, k int, asJSON bool) error {
	ctx := cmd.Context()
	p, h, closeFn, err := a.open(ctx, path)
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := p.Query(ctx, h, question, k)
	if err != nil && (result == nil || !errors.Is(err, types.ErrGeneration)) {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil {
			return encErr
		}
		return err
	}

	if err == nil {
		fmt.Fprintln(out, result.Answer)
	}
	printEvidence(out, result.Evidence)
	return err
}
