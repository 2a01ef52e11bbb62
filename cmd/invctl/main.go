package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iliyamo/ticket-inventory/internal/clock"
	"github.com/iliyamo/ticket-inventory/internal/config"
	"github.com/iliyamo/ticket-inventory/internal/database"
	"github.com/iliyamo/ticket-inventory/internal/queue"
	"github.com/iliyamo/ticket-inventory/internal/repository"
	"github.com/iliyamo/ticket-inventory/internal/service"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "invctl",
		Short:         "Operational commands for the ticket inventory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newReleaseExpiredHoldsCmd())
	root.AddCommand(newCleanupExpiredOrdersCmd())
	root.AddCommand(newImportUnitsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "invctl:", err)
		os.Exit(1)
	}
}

// openDB loads configuration and opens the database.  Both commands
// share it so a misconfigured environment fails the same way.
func openDB() (*sql.DB, error) {
	cfg := config.Load()
	return database.Open(cfg)
}

func newReleaseExpiredHoldsCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "release-expired-holds",
		Short: "Release holds whose deadline has passed",
		Long: `Scans the hold ledger for rows past their expiry deadline and
returns each unit to the available pool. Units already released by the
TTL path are counted separately and are not an error. With --dry-run,
prints the number of expired holds without touching anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			units := repository.NewUnitRepo(db)
			ledger := repository.NewHoldRepo(db)
			sweeper := service.NewSweeper(units, ledger, clock.NewSystem())

			report, err := sweeper.Sweep(context.Background(), dryRun)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Printf("dry-run: %d expired hold(s) would be released\n", report.Scanned)
				return nil
			}
			fmt.Printf("scanned=%d released=%d already_free=%d failed=%d\n",
				report.Scanned, report.Released, report.AlreadyFree, report.Failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report expired holds without releasing them")
	return cmd
}

func newCleanupExpiredOrdersCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "cleanup-expired-orders",
		Short: "Expire pending orders past their payment deadline",
		Long: `Finds orders still pending past their deadline and runs the full
cascade on each: release held units, cancel pending tickets, restore
ticket-type quota and mark the order expired. Each order runs in its
own transaction; one failing order does not stop the batch. With
--dry-run, prints per-order planned effects without committing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			units := repository.NewUnitRepo(db)
			ledger := repository.NewHoldRepo(db)
			orders := repository.NewOrderRepo(db)
			tickets := repository.NewTicketRepo(db)
			quotas := repository.NewQuotaRepo(db)
			expirer := service.NewOrderExpirer(units, ledger, orders, tickets, quotas, clock.NewSystem(),
				service.WithOrderEventPublisher(queue.NewPublisher()))

			report, err := expirer.Run(context.Background(), dryRun)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Printf("dry-run: %d expired order(s) would be processed\n", report.Processed)
				for _, o := range report.Orders {
					fmt.Printf("  order %d (%s): release %d unit(s), cancel %d ticket(s), restore %d quota\n",
						o.OrderID, o.OrderNumber, o.ReleasedUnits, o.CancelledTickets, o.RestoredQuota)
				}
				return nil
			}
			fmt.Printf("processed=%d expired=%d failed=%d\n", report.Processed, report.Expired, report.Failed)
			for _, o := range report.Orders {
				if o.Err != "" {
					fmt.Printf("  order %d (%s): FAILED: %s\n", o.OrderID, o.OrderNumber, o.Err)
					continue
				}
				fmt.Printf("  order %d (%s): released=%d already_free=%d cancelled=%d restored=%d\n",
					o.OrderID, o.OrderNumber, o.ReleasedUnits, o.AlreadyFree, o.CancelledTickets, o.RestoredQuota)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report planned effects without committing")
	return cmd
}

func newImportUnitsCmd() *cobra.Command {
	var layoutID uint64
	cmd := &cobra.Command{
		Use:   "import-units UNIT_UID...",
		Short: "Create available inventory units in a layout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if layoutID == 0 {
				return errors.New("--layout is required")
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			units := repository.NewUnitRepo(db)
			if err := units.CreateBulk(context.Background(), layoutID, args); err != nil {
				return err
			}
			fmt.Printf("created %d unit(s) in layout %d\n", len(args), layoutID)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&layoutID, "layout", 0, "seating layout the units belong to")
	return cmd
}
