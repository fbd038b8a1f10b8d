package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/urfave/cli/v3"

	"github.com/MarkStefanovic/ketl-sub000/internal/app"
)

var runHwd = &Runner{}

type Runner struct{}

func (r *Runner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the scheduler until interrupted",
		Flags: []cli.Flag{
			configFlag(),
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Usage: "how long to wait for running jobs to stop",
				Value: 10 * time.Second,
			},
		},
		Action: r.run,
	}
}

func (r *Runner) run(ctx context.Context, c *cli.Command) error {
	a, err := app.New(c.String("config"))
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := a.Start(runCtx); err != nil {
		_ = a.Stop(context.Background(), app.StopFatalError)
		return fmt.Errorf("start: %w", err)
	}
	// Not running under systemd is fine; SdNotify is a no-op then.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	reason := app.StopUnknown
	select {
	case sig := <-sigs:
		reason = app.StopSIGINT
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		reason = app.StopFatalError
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), c.Duration("shutdown-timeout"))
	defer stopCancel()
	stopErr := a.Stop(stopCtx, reason)

	if err := a.Err(); err != nil {
		return err
	}
	return stopErr
}
