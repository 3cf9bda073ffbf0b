package cmd

import (
	"github.com/spf13/cobra"

	configx "github.com/tanpawarit/Chative-Slot-Booking/pkg/config"
	logx "github.com/tanpawarit/Chative-Slot-Booking/pkg/logger"
)

func NewRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "slotbook",
		Short:         "SMS slot-booking assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configx.SetEnvFile(envFile)
			// Re-read LOG_* now that the env file is known.
			conf, err := configx.New[logx.Config]("LOG")
			if err != nil {
				return err
			}
			logx.Init(*conf)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default ./.env when present)")

	root.AddCommand(
		newServeCommand(),
		newChatCommand(),
		newMigrateCommand(),
		newBookingsCommand(),
	)
	return root
}
