package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"eventreg/internal/models"
)

func questionCmd(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "question",
		Short: "Manage the questions asked before verification",
	}
	cmd.AddCommand(questionAddCmd(d), questionListCmd(d), questionDeleteCmd(d), questionAnswersCmd(d))
	return cmd
}

func questionAddCmd(d *deps) *cobra.Command {
	var eventRef, skipIf string
	var q models.Question
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Ask a question on the verification link",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkQuestion(&q, skipIf); err != nil {
				return err
			}
			ev, err := d.event(cmd.Context(), eventRef)
			if err != nil {
				return err
			}
			q.EventID = ev.ID
			if err := d.store.AddQuestion(cmd.Context(), &q); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "question %d added\n", q.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&eventRef, "event", "", "Event id or name")
	f.StringVar(&q.Name, "name", "", "Question text")
	f.StringVar(&q.Type, "type", models.QuestionOpen, "Question type (open, close)")
	f.StringArrayVar(&q.Choices, "choice", nil, "Possible answer of a close question, repeatable")
	f.StringVar(&skipIf, "skip-if", "", "Do not ask registrations with field=value, e.g. lunch=Ne")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func checkQuestion(q *models.Question, skipIf string) error {
	q.Name = strings.TrimSpace(q.Name)
	if q.Name == "" {
		return fmt.Errorf("--name is empty")
	}
	if !models.ValidQuestionType(q.Type) {
		return fmt.Errorf("unknown question type %q (open, close)", q.Type)
	}
	if q.Type == models.QuestionClosed && len(q.Choices) == 0 {
		return fmt.Errorf("a close question needs at least one --choice")
	}
	if q.Type == models.QuestionOpen && len(q.Choices) > 0 {
		return fmt.Errorf("--choice only applies to close questions")
	}
	if skipIf != "" {
		field, value, ok := strings.Cut(skipIf, "=")
		if !ok || strings.TrimSpace(field) == "" {
			return fmt.Errorf("--skip-if must look like field=value, got %q", skipIf)
		}
		q.SkipField, q.SkipValue = strings.TrimSpace(field), strings.TrimSpace(value)
	}
	return nil
}

func questionListCmd(d *deps) *cobra.Command {
	var eventRef string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the questions of an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := d.event(cmd.Context(), eventRef)
			if err != nil {
				return err
			}
			qs, err := d.store.ListQuestions(cmd.Context(), ev.ID)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tNAME\tCHOICES\tSKIP IF")
			for _, q := range qs {
				skip := ""
				if q.SkipField != "" {
					skip = q.SkipField + "=" + q.SkipValue
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", q.ID, q.Type, q.Name, strings.Join(q.Choices, " | "), skip)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&eventRef, "event", "", "Event id or name")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func questionDeleteCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a question with its answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("question id %q: %w", args[0], err)
			}
			return d.store.DeleteQuestion(cmd.Context(), id)
		},
	}
}

func questionAnswersCmd(d *deps) *cobra.Command {
	var eventRef string
	cmd := &cobra.Command{
		Use:   "answers",
		Short: "Print the collected answers of an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ev, err := d.event(ctx, eventRef)
			if err != nil {
				return err
			}
			qs, err := d.store.ListQuestions(ctx, ev.ID)
			if err != nil {
				return err
			}
			names := make(map[int64]string, len(qs))
			for _, q := range qs {
				names[q.ID] = q.Name
			}
			answers, err := d.store.ListAnswers(ctx, ev.ID, "")
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EMAIL\tQUESTION\tANSWER")
			for _, a := range answers {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Email, names[a.QuestionID], a.Value)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&eventRef, "event", "", "Event id or name")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}
