// Command aetherflow is the companion command-line tool for the AetherFlow
// runner.
//
// Usage:
//
//	aetherflow [--json] validate FLOW_FILE
//	aetherflow [--json] run FLOW_FILE [--run-id ID] [--profiles-file PATH] [--env-file TYPE:PATH[:optional]]...
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aetherflow/aetherflow/internal/cli"
)

var version = "dev"

func main() {
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "aetherflow",
		Short:         "AetherFlow — run-once YAML workflow runner",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewValidateCmd(outputFn),
		cli.NewRunCmd(outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
