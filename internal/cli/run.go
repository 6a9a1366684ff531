package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aetherflow/aetherflow/internal/runner"
	"github.com/aetherflow/aetherflow/internal/spec"
)

// NewRunCmd validates then executes a flow document once. Passing the same
// --run-id against the same state database resumes a prior attempt,
// per spec.md §4.5 / §8 property 3.
func NewRunCmd(outputFn func() *Output) *cobra.Command {
	var runID string
	var onlyJob string
	var profilesPath string
	var envFileFlags []string
	var bundleManifestPath string
	var allowStaleBundle bool

	cmd := &cobra.Command{
		Use:   "run [FLOW_FILE]",
		Short: "Run a flow once, or a bundle manifest's entry_flow with --bundle-manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			if bundleManifestPath == "" && len(args) != 1 {
				return fmt.Errorf("run requires FLOW_FILE, or --bundle-manifest")
			}
			if bundleManifestPath != "" && len(args) != 0 {
				return fmt.Errorf("run accepts FLOW_FILE or --bundle-manifest, not both")
			}

			envFiles, err := parseEnvFileFlags(envFileFlags)
			if err != nil {
				return err
			}

			var profiles spec.ProfilesFileSpec
			if profilesPath != "" {
				raw, err := os.ReadFile(profilesPath)
				if err != nil {
					return err
				}
				profiles, err = spec.ParseProfiles(raw)
				if err != nil {
					out.Error(err.Error())
					os.Exit(runner.ExitSpecError)
				}
			}

			opts := runner.Options{
				RunID:     runID,
				OnlyJobID: onlyJob,
				Profiles:  profiles,
				EnvFiles:  envFiles,
			}

			var summary *runner.Summary
			if bundleManifestPath != "" {
				raw, err := os.ReadFile(bundleManifestPath)
				if err != nil {
					return err
				}
				mf, err := spec.ParseBundleManifest(raw)
				if err != nil {
					out.Error(err.Error())
					os.Exit(runner.ExitSpecError)
				}
				summary, err = runner.RunBundle(context.Background(), mf, runner.BundleOptions{
					ManifestDir: filepath.Dir(bundleManifestPath),
					AllowStale:  allowStaleBundle,
				}, opts)
				if err != nil {
					out.Error(err.Error())
					os.Exit(runner.ExitJobFailure)
				}
			} else {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				summary, err = runner.Run(context.Background(), data, opts)
				if err != nil {
					out.Error(err.Error())
					os.Exit(runner.ExitJobFailure)
				}
			}

			out.Success(fmt.Sprintf("run complete: flow=%s run_id=%s", summary.FlowID, summary.RunID))
			headers := []string{"JOB_ID", "STATUS"}
			rows := make([][]string, 0, len(summary.JobStatuses))
			for jobID, status := range summary.JobStatuses {
				rows = append(rows, []string{jobID, status})
			}
			out.Print(headers, rows, summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier; reusing one resumes a prior attempt")
	cmd.Flags().StringVar(&onlyJob, "only-job", "", "restrict execution to a single job id")
	cmd.Flags().StringVar(&profilesPath, "profiles-file", "", "path to a profiles document")
	cmd.Flags().StringArrayVar(&envFileFlags, "env-file", nil, "TYPE:PATH[:optional] env-file source, repeatable (last wins)")
	cmd.Flags().StringVar(&bundleManifestPath, "bundle-manifest", "", "path to a bundle manifest; syncs it and runs its entry_flow")
	cmd.Flags().BoolVar(&allowStaleBundle, "allow-stale-bundle", false, "fall back to the last synced bundle if a fresh sync fails")

	return cmd
}

// parseEnvFileFlags turns repeated --env-file TYPE:PATH[:optional] flags
// into an ordered []spec.EnvFileSpec, per spec.md §6's env-file spec.
func parseEnvFileFlags(flags []string) ([]spec.EnvFileSpec, error) {
	out := make([]spec.EnvFileSpec, 0, len(flags))
	for _, f := range flags {
		parts := strings.SplitN(f, ":", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid --env-file %q, expected TYPE:PATH[:optional]", f)
		}
		es := spec.EnvFileSpec{Type: parts[0], Path: parts[1]}
		if len(parts) == 3 {
			optional, err := strconv.ParseBool(parts[2])
			if err != nil {
				return nil, fmt.Errorf("invalid --env-file %q: %w", f, err)
			}
			es.Optional = optional
		}
		out = append(out, es)
	}
	return out, nil
}
