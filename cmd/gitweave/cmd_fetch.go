package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitweave/pkg/object"
)

func newFetchCmd(opts *globalOptions) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "fetch <remote>",
		Short: "Download every bundled object of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd, args[0])
			if err != nil {
				return err
			}

			errOut := cmd.ErrOrStderr()
			progress := newBarProgress(errOut, isTerminal(errOut), "bundles")
			objs, err := client.FetchObjects(cmd.Context(), progress)
			if err != nil {
				return err
			}
			table := object.NewTable(objs)

			if outPath != "" {
				if err := writeObjectStream(outPath, table.Objects()); err != nil {
					return err
				}
			}
			writeLine(cmd.OutOrStdout(), "fetched %d objects (%d unique) from %d bundles",
				len(objs), table.Len(), progress.Total())
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write unique objects as a compressed stream to this file")
	return cmd
}

func writeObjectStream(path string, objs []object.Object) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	w, err := object.NewWriter(f)
	if err != nil {
		return fmt.Errorf("object stream: %w", err)
	}
	for _, o := range objs {
		if err := w.Write(o); err != nil {
			return fmt.Errorf("write object %s: %w", o.OID, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish object stream: %w", err)
	}
	return nil
}
