package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Run one refill and one drain pass, then exit.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := buildServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			svc.scheduler.RunOnce(ctx)
			return nil
		},
	}
}
