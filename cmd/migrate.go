package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tanpawarit/Chative-Slot-Booking/agent/booking"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the bookings table and its unique (date, slot) constraint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := booking.NewBunRepository(db).Migrate(ctx); err != nil {
				return err
			}
			log.Info().Msg("bookings schema is up to date")
			return nil
		},
	}
}
