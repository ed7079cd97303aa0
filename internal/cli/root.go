package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// NewRootCmd creates the surveyload command tree. Command output goes to
// stdout, diagnostics and errors to stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:     "surveyload",
		Short:   "Synthetic load generator for the survey front-end",
		Version: version,
		Long: `Surveyload drives the survey front-end with many concurrent respondent
sessions. Each worker takes a contiguous slice of the dataset and, for every
record, opens the start page, submits the access code and confirms the
address until the survey launch redirect is seen.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newRunCmd())
	root.AddCommand(newPartitionCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// Execute runs the root command with the process arguments.
// This is called by main.main().
func Execute() error {
	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
