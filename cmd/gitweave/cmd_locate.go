package main

import (
	"github.com/spf13/cobra"

	"github.com/odvcencio/gitweave/pkg/object"
)

func newLocateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "locate <remote> <oid>",
		Short: "Print the id of the ledger record holding an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd, args[0])
			if err != nil {
				return err
			}
			id, err := client.LocateObject(cmd.Context(), object.ID(args[1]))
			if err != nil {
				return err
			}
			writeLine(cmd.OutOrStdout(), "%s", id)
			return nil
		},
	}
}

func newCatObjectCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cat-object <remote> <oid>",
		Short: "Write the raw payload of an object to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd, args[0])
			if err != nil {
				return err
			}
			obj, err := client.FetchObject(cmd.Context(), object.ID(args[1]))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(obj.Data)
			return err
		},
	}
}
