package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"thetacore/internal/core"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the context and whichever of process, link and theta exist",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			docs, err := a.documents(ctx, true)
			if err != nil {
				return err
			}
			if err := a.svc.Validate(ctx, docs); err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, "documents are valid")
			return err
		},
	}
}

func newAdaptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "adapt",
		Short: "Expand theta with defaults and groups for every partition",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			docs, err := a.documents(ctx, false)
			if err != nil {
				return err
			}
			adapted, err := a.svc.Adapt(ctx, docs)
			if err != nil {
				return err
			}
			return a.emit(ctx, adapted.Theta)
		},
	}
}

func newMutateCmd(a *app) *cobra.Command {
	var (
		opts    core.MutateOptions
		unstick string
	)
	cmd := &cobra.Command{
		Use:   "mutate",
		Short: "Apply estimates and edits to theta, then sanitize and normalize",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("unstick") {
				v, err := a.unstickValue(unstick)
				if err != nil {
					return err
				}
				opts.Unstick = &v
			}
			docs, err := a.documents(ctx, false)
			if err != nil {
				return err
			}
			mutated, report, err := a.svc.Mutate(ctx, docs, opts)
			if err != nil {
				return err
			}
			a.logger.Info("mutated", "stages", report.Stages, "diagnostics", len(report.Diagnostics.Items))
			return a.emit(ctx, mutated.Theta)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.ZeroSdIC, "zero-sd-ic", false, "set sd_transf of every state variable to 0")
	f.BoolVar(&opts.ZeroSdPar, "zero-sd-par", false, "set sd_transf of every process and observation parameter to 0")
	f.StringVar(&opts.Trace, "trace", "", "plug guesses from a trace file")
	f.Lookup("trace").NoOptDefVal = core.DefaultTraceFile
	f.StringVar(&opts.Design, "design", "", "plug guesses from a design file (takes precedence over --trace)")
	f.Lookup("design").NoOptDefVal = core.DefaultDesignFile
	f.IntVar(&opts.IndexTrace, "index-trace", -1, "row of the trace or design file (negative counts from the end)")
	f.StringVar(&opts.State, "state", "", "plug initial conditions from a state estimate file")
	f.Lookup("state").NoOptDefVal = core.DefaultHatFile
	f.IntVar(&opts.IndexState, "index-state", -1, "row of the state estimate file (negative counts from the end)")
	f.BoolVar(&opts.Ungroup, "ungroup", false, "give every population its own initial condition group")
	f.BoolVar(&opts.Preserve, "preserve", false, "leave fixed initial condition groups untouched")
	f.StringSliceVar(&opts.Rescale, "rescale", nil, "rescale a reporting parameter: par[,hat file]")
	f.StringVar(&opts.Covariance, "covariance", "", "plug a covariance matrix")
	f.Lookup("covariance").NoOptDefVal = core.DefaultCovarianceFile
	f.StringArrayVar(&opts.Set, "set", nil, "par:group:prop:value or par:transformation:value (repeatable)")
	f.StringVar(&unstick, "unstick", "", "move guesses stuck on a bound by this fraction of the range")
	f.Lookup("unstick").NoOptDefVal = "default"
	return cmd
}

// unstickValue parses --unstick, falling back to the configured default
// when the flag is given without a value.
func (a *app) unstickValue(raw string) (float64, error) {
	if raw == "default" {
		return a.cfg.Mutate.Unstick, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, usageError{fmt.Errorf("invalid --unstick %q: %w", raw, err)}
	}
	return v, nil
}

func newPredictCmd(a *app) *cobra.Command {
	var (
		n             int
		states, trace string
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Build one theta per trace sample from state estimates at time n",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			docs, err := a.documents(ctx, false)
			if err != nil {
				return err
			}
			sr, err := a.loader.Open(ctx, states)
			if err != nil {
				return err
			}
			defer func() { _ = sr.Close() }()
			tr, err := a.loader.Open(ctx, trace)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()
			predicted, err := a.svc.Predict(ctx, docs, n, sr, tr)
			if err != nil {
				return err
			}
			thetas := make([]any, len(predicted))
			for i, d := range predicted {
				thetas[i] = d.Theta
			}
			return a.emit(ctx, thetas)
		},
	}
	f := cmd.Flags()
	f.IntVarP(&n, "time", "n", 0, "time index of the state rows")
	f.StringVar(&states, "states", "X_0.csv", "state trajectories file")
	f.StringVar(&trace, "trace", core.DefaultTraceFile, "trace file")
	return cmd
}

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save, load and list document snapshots",
	}
	var name string
	save := &cobra.Command{
		Use:   "save",
		Short: "Store the four documents as a snapshot",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			docs, err := a.documents(ctx, true)
			if err != nil {
				return err
			}
			snap, err := a.svc.SaveSnapshot(ctx, name, docs)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, snap.ID)
			return err
		},
	}
	save.Flags().StringVar(&name, "name", "", "snapshot name")

	load := &cobra.Command{
		Use:   "load ID",
		Short: "Print the documents of a snapshot",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.svc.LoadSnapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd.Context(), snap.Documents)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, oldest first",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summaries, err := a.svc.ListSnapshots(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range summaries {
				if _, err := fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", s.ID, s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), s.Name); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.AddCommand(save, load, list)
	return cmd
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError{err}
	}
	return nil
}

func exactArgs(n int) cobra.PositionalArgs {
	check := cobra.ExactArgs(n)
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}
