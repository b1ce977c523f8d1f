package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"eventreg/internal/badges"
	"eventreg/internal/mailer"
	"eventreg/internal/models"
	"eventreg/internal/verify"
)

func mailCmd(d *deps) *cobra.Command {
	var eventRef, mailType, debugTo string
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Send the confirm or verify mail to the event's participants",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := d.cfg.RequireSMTP(); err != nil {
				return err
			}
			ev, err := d.event(ctx, eventRef)
			if err != nil {
				return err
			}
			tr := mailer.NewSMTP(mailer.SMTPConfig{
				Host:     d.cfg.SMTPHost,
				Port:     d.cfg.SMTPPort,
				User:     d.cfg.SMTPUser,
				Password: d.cfg.SMTPPassword,
			})
			m := mailer.New(d.store, d.verifier(nil), tr, d.cfg.MailFromName, d.metrics, d.log)
			rep, err := m.MailParticipants(ctx, ev, mailType, debugTo)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d sent, %d skipped, %d failed\n", ev.Name, rep.Sent, rep.Skipped, rep.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&eventRef, "event", "", "Event id or name")
	cmd.Flags().StringVar(&mailType, "type", "", "Mail type (confirm, verify)")
	cmd.Flags().StringVar(&debugTo, "debug-to", "", "Send every mail to this address instead")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func confirmCmd(d *deps) *cobra.Command {
	var eventRef, email string
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Mark a participant verified without a token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ev, err := d.event(ctx, eventRef)
			if err != nil {
				return err
			}
			out, err := d.verifier(nil).ForceVerify(ctx, ev, email)
			if err != nil {
				return err
			}
			if out == verify.OutcomeAlreadyVerified {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was already verified\n", email)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s verified\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&eventRef, "event", "", "Event id or name")
	cmd.Flags().StringVar(&email, "email", "", "Participant email")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func listCmd(d *deps) *cobra.Command {
	var eventRef, display string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the registrations of an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			keep, err := displayFilter(display)
			if err != nil {
				return err
			}
			ev, err := d.event(ctx, eventRef)
			if err != nil {
				return err
			}
			regs, err := d.store.ListRegistrations(ctx, ev.ID)
			if err != nil {
				return err
			}
			return writeRegistrations(cmd.OutOrStdout(), regs, keep)
		},
	}
	cmd.Flags().StringVar(&eventRef, "event", "", "Event id or name")
	cmd.Flags().StringVar(&display, "display", "all", "Which registrations to show (all, unverified, verified)")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func displayFilter(display string) (func(models.Registration) bool, error) {
	switch display {
	case "", "all":
		return func(models.Registration) bool { return true }, nil
	case "verified":
		return func(r models.Registration) bool { return r.Verified }, nil
	case "unverified":
		return func(r models.Registration) bool { return !r.Verified }, nil
	default:
		return nil, fmt.Errorf("unknown --display %q (all, unverified, verified)", display)
	}
}

func writeRegistrations(w io.Writer, regs []models.Registration, keep func(models.Registration) bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tEMAIL\tNAME\tCONFIRMED\tVERIFIED")
	for _, r := range regs {
		if !keep(r) {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.Row, r.Fields.Email, r.FullName(), yesNo(r.Confirmed), yesNo(r.Verified))
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func badgesCmd(d *deps) *cobra.Command {
	var eventRef, outDir string
	cmd := &cobra.Command{
		Use:   "badges",
		Short: "Render printable name badges for an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if d.cfg.RendererURL == "" {
				return fmt.Errorf("RENDERER_URL is empty")
			}
			ev, err := d.event(ctx, eventRef)
			if err != nil {
				return err
			}
			regs, err := d.store.ListRegistrations(ctx, ev.ID)
			if err != nil {
				return err
			}
			g := badges.NewGenerator(&badges.HTTPRenderer{
				URL:        d.cfg.RendererURL,
				CombineURL: d.cfg.RendererCombineURL,
				APIKey:     d.cfg.RendererAPIKey,
				Template:   d.cfg.BadgeTemplate,
			}, badges.Options{
				Subtopic: d.cfg.BadgeSubtopic,
				OptOut:   d.cfg.BadgeOptOut,
			}, d.log)
			files, err := g.Generate(ctx, ev, regs, outDir)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&eventRef, "event", "", "Event id or name")
	cmd.Flags().StringVar(&outDir, "out", "badges", "Output directory")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}
