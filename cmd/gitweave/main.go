package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitweave/pkg/ledger"
)

const version = "0.1.0-dev"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	root := &cobra.Command{
		Use:           "gitweave",
		Short:         "Read git refs and objects stored on the Arweave ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.register(root)

	root.AddCommand(newVersionCmd())
	root.AddCommand(newRefsCmd(&opts))
	root.AddCommand(newResolveCmd(&opts))
	root.AddCommand(newLocateCmd(&opts))
	root.AddCommand(newCatObjectCmd(&opts))
	root.AddCommand(newFetchCmd(&opts))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gitweave %s\n", version)
		},
	}
}

// exitCode maps error categories to process exit codes.
func exitCode(err error) int {
	switch ledger.CategoryOf(err) {
	case ledger.ErrUsage:
		return 2
	case ledger.ErrObjectNotFound:
		return 3
	default:
		return 1
	}
}

func writeLine(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}
