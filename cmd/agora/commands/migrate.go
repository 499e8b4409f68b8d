package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"agora/internal/bootstrap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending agent database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		c := bootstrap.NewContainer()
		if err := c.InitConfig(); err != nil {
			return err
		}
		defer c.Close()

		if err := c.InitInfrastructure(ctx); err != nil {
			return err
		}

		applied, err := c.Migrate(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(applied) == 0 {
			fmt.Fprintln(out, "database is up to date")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintf(out, "applied %s\n", name)
		}
		return nil
	},
}
