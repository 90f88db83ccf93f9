package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewSectionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sections <document>",
		Short: "List the sections detected in a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, h, closeFn, err := a.open(ctx, args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return json.NewEncoder(out).Encode(h.Sections)
			}
			full, _ := cmd.Flags().GetBool("full")
			heading := color.New(color.FgCyan, color.Bold).SprintFunc()
			for _, s := range h.Sections {
				fmt.Fprintln(out, heading(s.Heading))
				if full {
					fmt.Fprintln(out, s.Body)
					fmt.Fprintln(out)
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("full", false, "Print section bodies")
	cmd.Flags().Bool("json", false, "Output in JSON format")
	return cmd
}
