package commands

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"agora/internal/workflow"
)

var (
	askSession string
	askUser    string
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Answer one message through the chat workflow",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		c, err := initContainer(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := c.Engine.Workflow.Run(ctx, workflow.Request{
			SessionID: askSession,
			UserID:    askUser,
			Message:   strings.Join(args, " "),
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if askJSON {
			return printJSON(out, res)
		}

		fmt.Fprintln(out, res.Answer)
		fmt.Fprintf(out, "\nsession %s, intent: %s\n", res.SessionID, res.Intent.IntentSummary)
		fmt.Fprintf(out, "database lookup: %t, discussion: %t, took %s\n",
			res.UsedDatabase, res.UsedDiscussion, humanize.Comma(res.DurationMs)+"ms")
		if res.Discussion != nil {
			fmt.Fprintln(out, workflow.EvaluationNote(res.Discussion))
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "Session to continue (a new one is created when empty)")
	askCmd.Flags().StringVar(&askUser, "user", "", "User id recorded with the turn")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full response as JSON")
}
