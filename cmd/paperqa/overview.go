package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func NewOverviewCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overview <document>",
		Short: "Summarise a document's size and structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, h, closeFn, err := a.open(ctx, args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			ov := p.Overview(h)
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(ov)
			}
			printOverview(cmd.OutOrStdout(), ov)
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "Output in JSON format")
	return cmd
}
