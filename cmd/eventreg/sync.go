package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func pullCmd(d *deps) *cobra.Command {
	var eventRef string
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Replace the event's registrations with the current sheet content",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ev, err := d.event(ctx, eventRef)
			if err != nil {
				return err
			}
			s, err := d.syncer(ctx, d.notifier())
			if err != nil {
				return err
			}
			rep, err := s.Pull(ctx, ev)
			if err != nil {
				return fmt.Errorf("pull %s (imported %d rows before failing): %w", ev.Name, rep.Imported, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d imported, %d blank rows, %d carried over\n",
				ev.Name, rep.Imported, rep.Skipped, rep.Carried)
			if rep.Drift {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: sheet header differs from the stored one; run `eventreg event accept-header %d` once the sheet is correct\n", ev.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&eventRef, "event", "", "Event id or name")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func pushCmd(d *deps) *cobra.Command {
	var eventRef string
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Write each registration's verification status into the sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ev, err := d.event(ctx, eventRef)
			if err != nil {
				return err
			}
			s, err := d.syncer(ctx, d.notifier())
			if err != nil {
				return err
			}
			rep, err := s.Push(ctx, ev)
			if err != nil {
				return fmt.Errorf("push %s: %w", ev.Name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d cells written, %d failed\n", ev.Name, rep.Written, rep.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&eventRef, "event", "", "Event id or name")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}
