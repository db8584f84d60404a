package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/BodyControl/internal/models"
	"github.com/BTreeMap/BodyControl/internal/store"
)

func historyCmd(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "List finished sessions, or show one with its debrief",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := root.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			if len(args) == 1 {
				return showSession(cmd.OutOrStdout(), st, args[0])
			}
			return listSessions(cmd.OutOrStdout(), st, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions to list, 0 for all")
	return cmd
}

func listSessions(out io.Writer, st store.Store, limit int) error {
	recs, err := st.ListSessions(limit)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(recs) == 0 {
		fmt.Fprintln(out, "no sessions recorded")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENDED\tOUTCOME\tPLAY\tSUSPICION\tSTAGES")
	for _, rec := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0f\t%d\n",
			rec.ID, rec.EndedAt.Local().Format(time.DateTime), rec.Outcome.Kind,
			rec.PlayTime.Round(time.Second), rec.FinalSuspicion, rec.StagesCompleted)
	}
	return tw.Flush()
}

func showSession(out io.Writer, st store.Store, id string) error {
	rec, err := st.GetSession(id)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("session %s: %w", id, models.ErrSessionNotFound)
	}
	fmt.Fprintf(out, "Session   %s\n", rec.ID)
	fmt.Fprintf(out, "Seed      %d\n", rec.Seed)
	fmt.Fprintf(out, "Outcome   %s", rec.Outcome.Kind)
	if rec.Outcome.Reason != "" {
		fmt.Fprintf(out, " (%s)", rec.Outcome.Reason)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Play time %s\n", rec.PlayTime.Round(time.Second))
	fmt.Fprintf(out, "Suspicion %.0f\n", rec.FinalSuspicion)
	fmt.Fprintf(out, "Stages    %d\n", rec.StagesCompleted)
	fmt.Fprintf(out, "Steps     %d\n", rec.StepCount)
	if len(rec.Ledger) > 0 {
		fmt.Fprintln(out, "Ledger:")
		for _, e := range rec.Ledger {
			reason := e.Reason
			if reason == "" {
				reason = "-"
			}
			fmt.Fprintf(out, "  %8s %+6.1f  %-30s total %.1f\n", e.At.Round(100*time.Millisecond), e.Amount, reason, e.Total)
		}
	}

	text, err := st.GetDebrief(id)
	if err != nil {
		return fmt.Errorf("get debrief: %w", err)
	}
	if text == "" {
		text = "(pending)"
	}
	fmt.Fprintf(out, "Debrief:\n  %s\n", text)
	return nil
}
