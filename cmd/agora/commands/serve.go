package commands

import (
	"github.com/spf13/cobra"

	"agora/internal/bootstrap"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Start the HTTP API with health, metrics, chat, discussion, database and knowledge routes.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		c := bootstrap.NewContainer()
		if err := c.Init(ctx, true); err != nil {
			if c.Log != nil {
				c.Close()
			}
			return err
		}

		if serveMigrate {
			if _, err := c.Migrate(ctx); err != nil {
				c.Close()
				return err
			}
		}

		return c.Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply pending migrations before serving")
}
