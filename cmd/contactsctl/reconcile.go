package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [campaign-id]",
	Short: "Recompute stored recipient counts",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReconcile,
}

var reconcileAll bool

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileAll, "all", false, "Reconcile every campaign")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if err := checkReconcileArgs(args, reconcileAll); err != nil {
		return err
	}

	container, err := openContainer(cmd.Context())
	if err != nil {
		return err
	}
	defer container.Close()

	if reconcileAll {
		report, err := container.Reconciler.ReconcileAll(cmd.Context())
		if report != nil {
			if werr := writeJSON(cmd.OutOrStdout(), report); werr != nil {
				return werr
			}
		}
		return err
	}

	result, err := container.Reconciler.Reconcile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func checkReconcileArgs(args []string, all bool) error {
	switch {
	case all && len(args) > 0:
		return errors.New("pass either a campaign id or --all, not both")
	case !all && len(args) == 0:
		return errors.New("a campaign id or --all is required")
	}
	return nil
}
