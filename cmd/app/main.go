package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"minex/internal/handlers"
	"minex/internal/models"
	"minex/internal/notify"
	"minex/internal/util"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "minex",
		Short:        "Referral commissions and daily ROI distribution",
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newDistributeCmd(),
		newMigrateCmd(),
		newSeedPackagesCmd(),
		newStatusCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daily ROI scheduler, admin notifications and the ops server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			go notify.Run(ctx, a.sender(), a.closed, a.runs)

			a.scheduler.Start()
			defer a.scheduler.Stop()

			var db handlers.Pinger
			if a.pg != nil {
				db = a.pg
			}
			server := &http.Server{
				Addr:              a.cfg.OpsAddr,
				Handler:           handlers.NewOpsRouter(db, a.scheduler),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()

			log.Infoln("Ops server listening on", a.cfg.OpsAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			log.Infoln("Shutting down")
			return nil
		},
	}
}

func newDistributeCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "distribute",
		Short: "Distribute daily ROI as of a date (default today, UTC)",
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf := time.Now().UTC()
			if date != "" {
				d, err := util.ParseDay(date)
				if err != nil {
					return err
				}
				asOf = d
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.scheduler.RunFor(cmd.Context(), asOf, models.TriggerCLI)
			if res != nil {
				if perr := printJSON(res); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "as-of day, YYYY-MM-DD")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Apply or roll back schema migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requirePostgres(); err != nil {
				return err
			}

			if args[0] == "up" {
				return a.pg.MigrateUp()
			}
			return a.pg.MigrateDown(steps)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "migrations to roll back with down")
	return cmd
}

func newSeedPackagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-packages",
		Short: "Create the default six package levels that do not exist yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requirePostgres(); err != nil {
				return err
			}

			added, err := a.svc.Packages.SeedDefaults(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d %s\n", added, util.Plural(added, "package", "packages"))
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the ROI schedule and the last distribution run",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.scheduler.Status(cmd.Context())
			if err != nil {
				return err
			}
			next := util.NextDaily(time.Now(), a.cfg.Scheduler.Hour, a.cfg.Scheduler.Minute)
			status.NextRun = &next
			return printJSON(status)
		},
	}
}
