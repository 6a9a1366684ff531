package cli

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aetherflow/aetherflow/internal/runner"
	"github.com/aetherflow/aetherflow/internal/settings"
	"github.com/aetherflow/aetherflow/internal/spec"
)

// NewValidateCmd parses and semantically validates a flow document without
// executing it, exiting 2 on failure per spec.md §6's exit-code contract.
func NewValidateCmd(outputFn func() *Output) *cobra.Command {
	var envStrict bool

	cmd := &cobra.Command{
		Use:   "validate FLOW_FILE",
		Short: "Validate a flow document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fs, err := spec.ParseFlow(data)
			if err != nil {
				out.Error(err.Error())
				os.Exit(runner.ExitSpecError)
			}

			env := settings.Snapshot()
			if err := spec.Validate(fs, spec.ValidateOptions{EnvStrict: envStrict, Env: env}); err != nil {
				out.Error(err.Error())
				os.Exit(runner.ExitSpecError)
			}

			out.Success("flow is valid: " + fs.Flow.ID)
			out.Print([]string{"FLOW_ID", "JOBS"}, [][]string{{fs.Flow.ID, strconv.Itoa(len(fs.Jobs))}}, fs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&envStrict, "env-strict", false, "reject flows referencing unset env vars at validation time")
	return cmd
}
