package main

import (
	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/scheduler"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run batches on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			a, cleanup, err := ctx.buildApp(runCtx)
			if err != nil {
				return err
			}
			defer cleanup()

			if spec == "" {
				spec = a.Config.Schedule.Cron
			}

			var locker scheduler.Locker
			if a.Cache != nil {
				locker = a.Cache
			}

			s, err := scheduler.New(spec, a.Orchestrator, locker, a.Config.Redis.LockTTL, a.Logger)
			if err != nil {
				return err
			}

			s.Start()
			a.Logger.WithField("schedule", spec).Info("Waiting for scheduled batch runs")
			<-runCtx.Done()
			s.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "Cron expression overriding schedule.cron")
	return cmd
}
