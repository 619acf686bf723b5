package main

import (
	"github.com/spf13/cobra"
)

func newResolveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <remote> <ref>",
		Short: "Print the object a ref points to and its commit count",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd, args[0])
			if err != nil {
				return err
			}
			v, err := client.ResolveRef(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			oid := string(v.OID)
			if !v.Exists() {
				oid = "?"
			}
			writeLine(cmd.OutOrStdout(), "%s %d", oid, v.NumCommits)
			return nil
		},
	}
}
