package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/BodyControl/internal/config"
	"github.com/BTreeMap/BodyControl/internal/game"
	"github.com/BTreeMap/BodyControl/internal/genai"
	"github.com/BTreeMap/BodyControl/internal/models"
	"github.com/BTreeMap/BodyControl/internal/store"
	"github.com/BTreeMap/BodyControl/internal/util"
)

type simulateOptions struct {
	runs      int
	mistakes  float64
	frame     time.Duration
	limit     time.Duration
	save      bool
	debrief   bool
	jsonOut   bool
	openAIKey string
}

func simulateCmd(root *rootOptions) *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play sessions headlessly with the autopilot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), cmd.OutOrStdout(), root, opts)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.runs, "runs", 1, "number of sessions to play")
	f.Float64Var(&opts.mistakes, "mistakes", 0, "probability the autopilot slips on each decision (0-1)")
	f.DurationVar(&opts.frame, "frame", 50*time.Millisecond, "simulated frame step")
	f.DurationVar(&opts.limit, "limit", 5*time.Minute, "maximum play time per session")
	f.BoolVar(&opts.save, "save", false, "write finished sessions and debriefs to the store")
	f.BoolVar(&opts.debrief, "debrief", false, "print a debrief after each session")
	f.BoolVar(&opts.jsonOut, "json", false, "print session records as JSON lines")
	f.StringVar(&opts.openAIKey, "openai-api-key", util.StringEnv("", "OPENAI_API_KEY"), "OpenAI API key for debriefs (overrides $OPENAI_API_KEY)")
	return cmd
}

// runSeed derives the seed of run i. A zero base picks fresh seeds.
func runSeed(base uint64, i int) uint64 {
	if base == 0 {
		return util.NewSeed()
	}
	return base + uint64(i)
}

func runSimulate(ctx context.Context, out io.Writer, root *rootOptions, opts *simulateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.runs < 1 {
		return fmt.Errorf("--runs must be at least 1")
	}
	if opts.mistakes < 0 || opts.mistakes > 1 {
		return fmt.Errorf("--mistakes must be between 0 and 1")
	}
	cfg, err := root.tuning()
	if err != nil {
		return err
	}

	var st store.Store
	if opts.save {
		st, err = root.openStore()
		if err != nil {
			return err
		}
		defer st.Close()
	}
	var d genai.Debriefer
	if opts.save || opts.debrief {
		d = debriefer(opts.openAIKey, genai.DefaultModel)
	}

	enc := json.NewEncoder(out)
	for i := 0; i < opts.runs; i++ {
		rec, err := simulateOne(ctx, cfg, runSeed(root.seed, i), opts)
		if err != nil {
			return err
		}

		var text string
		if d != nil {
			text, err = d.Debrief(ctx, rec)
			if err != nil {
				slog.Warn("runSimulate: debrief failed", "id", rec.ID, "error", err)
			}
		}
		if st != nil {
			if err := persistRun(st, rec, text); err != nil {
				return err
			}
		}

		if opts.jsonOut {
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("encode record: %w", err)
			}
			continue
		}
		fmt.Fprintln(out, summaryLine(i+1, rec))
		if opts.debrief && text != "" {
			fmt.Fprintf(out, "  %s\n", text)
		}
	}
	return nil
}

func simulateOne(ctx context.Context, cfg *config.Config, seed uint64, opts *simulateOptions) (models.SessionRecord, error) {
	s := game.NewSession(cfg, game.Deps{}, game.WithSeed(seed))
	var pilotOpts []game.AutopilotOption
	if opts.mistakes > 0 {
		pilotOpts = append(pilotOpts, game.WithMistakes(opts.mistakes, util.NewSeededRandom(^seed)))
	}
	rec, err := game.Simulate(ctx, s, game.NewAutopilot(s, pilotOpts...), opts.frame, opts.limit)
	if err != nil {
		return rec, fmt.Errorf("simulate seed %d: %w", seed, err)
	}
	return rec, nil
}

func persistRun(st store.Store, rec models.SessionRecord, debrief string) error {
	if rec.Outcome.Kind == "" {
		slog.Warn("persistRun: session did not finish, not saved", "id", rec.ID)
		return nil
	}
	if err := st.SaveSession(rec); err != nil {
		return fmt.Errorf("save session %s: %w", rec.ID, err)
	}
	if debrief == "" {
		return nil
	}
	if err := st.SaveDebrief(rec.ID, debrief); err != nil {
		return fmt.Errorf("save debrief %s: %w", rec.ID, err)
	}
	return nil
}

func summaryLine(n int, rec models.SessionRecord) string {
	outcome := string(rec.Outcome.Kind)
	if outcome == "" {
		outcome = "unfinished"
	}
	return fmt.Sprintf("run %d seed=%d outcome=%s play=%s suspicion=%.0f stages=%d steps=%d id=%s",
		n, rec.Seed, outcome, rec.PlayTime.Round(time.Millisecond), rec.FinalSuspicion,
		rec.StagesCompleted, rec.StepCount, rec.ID)
}
