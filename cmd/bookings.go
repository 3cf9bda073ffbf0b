package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tanpawarit/Chative-Slot-Booking/agent/booking"
)

func newBookingsCommand() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "List the bookings for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := time.Parse(booking.DateLayout, date); err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
			}

			db, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := booking.NewBunRepository(db).List(ctx, date)
			if err != nil {
				return err
			}
			return printBookings(cmd.OutOrStdout(), date, rows)
		},
	}
	cmd.Flags().StringVar(&date, "date", time.Now().Format(booking.DateLayout), "date to list (YYYY-MM-DD)")
	return cmd
}

func printBookings(out io.Writer, date string, rows []booking.Booking) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintf(out, "No bookings on %s.\n", date)
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tNAME\tPHONE\tID")
	for _, b := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.Slot, b.Name, b.Phone, b.ID)
	}
	return tw.Flush()
}
