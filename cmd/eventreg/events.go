package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"eventreg/internal/models"
)

func eventCmd(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Manage events",
	}
	cmd.AddCommand(eventAddCmd(d), eventListCmd(d), eventDeleteCmd(d), eventAcceptHeaderCmd(d))
	return cmd
}

func eventAddCmd(d *deps) *cobra.Command {
	var ev models.Event
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a spreadsheet as a new event",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ev.SkipRows < 0 {
				return fmt.Errorf("--skip-rows must not be negative")
			}
			if err := d.store.CreateEvent(cmd.Context(), &ev); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "event %d created\n", ev.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&ev.Name, "name", "", "Event name")
	f.StringVar(&ev.TableID, "table", "", "Spreadsheet id")
	f.StringVar(&ev.SheetName, "sheet", "", "Sheet (tab) name, first sheet when empty")
	f.IntVar(&ev.SkipRows, "skip-rows", 0, "Rows below the header to ignore")
	f.StringVar(&ev.FromMail, "from-mail", "", "Sender address of participant mails")
	f.StringVar(&ev.VerifiedURL, "verified-url", "", "Redirect after a successful verification")
	f.StringVar(&ev.AlreadyVerifiedURL, "already-verified-url", "", "Redirect for an already verified participant")
	f.StringVar(&ev.InvalidTokenURL, "invalid-token-url", "", "Redirect for an invalid link")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func eventListCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List events",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := d.store.ListEvents(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTABLE\tSHEET\tCOLUMNS\tDRIFT")
			for _, ev := range events {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", ev.ID, ev.Name, ev.TableID, ev.SheetName, len(ev.Header), yesNo(ev.HeaderDrift))
			}
			return tw.Flush()
		},
	}
}

func eventDeleteCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <event>",
		Short: "Delete an event with its registrations and mail texts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := d.event(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return d.store.DeleteEvent(cmd.Context(), ev.ID)
		},
	}
}

func eventAcceptHeaderCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "accept-header <event>",
		Short: "Forget the stored header so the next pull adopts the sheet's current one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := d.event(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := d.store.UpdateEventHeader(cmd.Context(), ev.ID, nil, false); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "header of %s cleared; run pull to adopt the current one\n", ev.Name)
			return nil
		},
	}
}

func mailTextCmd(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mailtext",
		Short: "Manage mail templates",
	}

	var eventRef, mailType, subject, file string
	set := &cobra.Command{
		Use:   "set",
		Short: "Store the HTML template of a mail type",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !models.ValidMailType(mailType) {
				return fmt.Errorf("unknown mail type %q (confirm, verify)", mailType)
			}
			body, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			ev, err := d.event(cmd.Context(), eventRef)
			if err != nil {
				return err
			}
			return d.store.SetMailText(cmd.Context(), models.MailText{
				EventID: ev.ID,
				Type:    mailType,
				Subject: subject,
				Body:    string(body),
			})
		},
	}
	set.Flags().StringVar(&eventRef, "event", "", "Event id or name")
	set.Flags().StringVar(&mailType, "type", "", "Mail type (confirm, verify)")
	set.Flags().StringVar(&subject, "subject", "", "Subject, default per mail type when empty")
	set.Flags().StringVar(&file, "file", "", "HTML template file")
	_ = set.MarkFlagRequired("event")
	_ = set.MarkFlagRequired("type")
	_ = set.MarkFlagRequired("file")

	cmd.AddCommand(set)
	return cmd
}
