package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgavlin/xos/cmd/xos/dump"
	"github.com/pgavlin/xos/cmd/xos/shell"
)

var version = "<unknown>"

func configureCLI() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "xos",
		Short:         "xos host runtime",
		Long:          "xos - the host-side runtime for sandboxed applications",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCommand.AddCommand(dump.Command())
	rootCommand.AddCommand(shell.Command())

	return rootCommand
}

func main() {
	if err := configureCLI().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
