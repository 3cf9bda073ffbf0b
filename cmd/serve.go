package cmd

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	configx "github.com/tanpawarit/Chative-Slot-Booking/pkg/config"
	"github.com/tanpawarit/Chative-Slot-Booking/server"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the SMS webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			httpCfg, err := configx.New[server.Config]("HTTP")
			if err != nil {
				return err
			}
			if httpCfg.Mode != "" {
				gin.SetMode(httpCfg.Mode)
			}

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := server.New(*httpCfg, a.orchestrator)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}
