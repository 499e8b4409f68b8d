package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"agora/internal/workflow"
)

var (
	discussContext   string
	discussRounds    int
	discussThreshold float64
	discussJSON      bool
)

var discussCmd = &cobra.Command{
	Use:   "discuss <topic>",
	Short: "Run a standalone multi-round discussion",
	Long: `Run the pro/con/leader discussion on a topic. Each round is graded by the
judge; the loop stops when the score reaches the threshold or the rounds run out.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		c, err := initContainer(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		opts := c.Engine.Discussion.Options()
		if cmd.Flags().Changed("rounds") {
			opts.MaxRounds = discussRounds
		}
		if cmd.Flags().Changed("threshold") {
			opts.ScoreThreshold = discussThreshold
		}

		outcome, err := c.Engine.Discussion.RunWith(ctx, strings.Join(args, " "), discussContext, opts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if discussJSON {
			return printJSON(out, outcome)
		}

		fmt.Fprintln(out, outcome.Transcript)
		fmt.Fprintln(out)
		fmt.Fprintln(out, workflow.EvaluationNote(outcome))
		if outcome.Degraded != nil {
			fmt.Fprintf(out, "ended early: %v\n", outcome.Degraded)
		}
		return nil
	},
}

func init() {
	discussCmd.Flags().StringVar(&discussContext, "context", "", "Related information added to the first round")
	discussCmd.Flags().IntVar(&discussRounds, "rounds", 0, "Maximum rounds (default from DISCUSSION_MAX_ROUNDS)")
	discussCmd.Flags().Float64Var(&discussThreshold, "threshold", 0, "Score threshold 0..10 (default from DISCUSSION_SCORE_THRESHOLD)")
	discussCmd.Flags().BoolVar(&discussJSON, "json", false, "Print the outcome as JSON")
}
