package main

import (
	"sort"

	"github.com/spf13/cobra"
)

func newRefsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refs <remote>",
		Short: "List every ref and the object it points to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd, args[0])
			if err != nil {
				return err
			}
			refs, err := client.ListRefs(cmd.Context())
			if err != nil {
				return err
			}

			names := make([]string, 0, len(refs))
			for name := range refs {
				names = append(names, name)
			}
			sort.Strings(names)

			out := cmd.OutOrStdout()
			for _, name := range names {
				oid := string(refs[name])
				if oid == "" {
					oid = "?"
				}
				writeLine(out, "%s\t%s", oid, name)
			}
			return nil
		},
	}
}
