// Command thetactl validates, adapts, mutates and predicts theta documents
// and keeps snapshots of them.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"thetacore/pkg/domain"
)

var exitFunc = os.Exit

// main runs the command-line interface using the program arguments and exits
// the process with the status code returned by cli.
func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

// usageError marks flag and argument errors.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// Exit codes: 0 success, 1 runtime failure, 2 usage, 3 invalid documents.
func cli(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if closeErr := a.close(); err == nil {
		err = closeErr
	}
	if err == nil {
		return 0
	}
	if _, writeErr := fmt.Fprintf(stderr, "thetactl: %v\n", err); writeErr != nil {
		return 1
	}
	var ue usageError
	switch {
	case errors.As(err, &ue):
		return 2
	case errors.Is(err, domain.ErrValidation):
		return 3
	default:
		return 1
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "thetactl",
		Short:         "Manage context, process, link and theta documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			a.reportMetrics()
			return nil
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "YAML configuration file")
	f.StringVar(&a.rootDir, "root", "", "directory (or bucket prefix root) that document and data paths resolve against")
	f.StringVar(&a.paths.context, "context", "context.json", "context document key")
	f.StringVar(&a.paths.process, "process", "process.json", "process document key")
	f.StringVar(&a.paths.link, "link", "link.json", "link document key")
	f.StringVar(&a.paths.theta, "theta", "theta.json", "theta document key")
	f.StringVarP(&a.out, "out", "o", "", "write the result to this key instead of stdout")
	f.BoolVar(&a.spans, "spans", false, "write operation spans as JSON lines to stderr")

	root.AddCommand(
		newValidateCmd(a),
		newAdaptCmd(a),
		newMutateCmd(a),
		newPredictCmd(a),
		newSnapshotCmd(a),
	)
	return root
}
