package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ivr/internal/cli"
)

var Version = "dev"

func main() {
	cli.LoadEnvFile()

	rootCmd := &cobra.Command{
		Use:          "ivrctl",
		Short:        "Operator tools for the IVR movements backend",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(numberCmd())
	rootCmd.AddCommand(composeCmd())
	rootCmd.AddCommand(consultCmd())
	rootCmd.AddCommand(auditCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
