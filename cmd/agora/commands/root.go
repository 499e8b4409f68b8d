package commands

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"agora/internal/bootstrap"
	"agora/pkg/errors"
)

var rootCmd = &cobra.Command{
	Use:   "agora",
	Short: "Agora - multi-agent chat with structured discussions",
	Long: `Agora answers questions through a workflow of agents: intent recognition,
an optional database and knowledge base lookup, an optional pro/con/leader
discussion graded by a judge, and a final integrated reply.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(discussCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(eventsCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// initContainer builds the full container without the HTTP layer.
func initContainer(ctx context.Context) (*bootstrap.Container, error) {
	c := bootstrap.NewContainer()
	if err := c.Init(ctx, false); err != nil {
		if c.Log != nil {
			c.Close()
		}
		return nil, err
	}
	return c, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encode output")
	}
	return nil
}
