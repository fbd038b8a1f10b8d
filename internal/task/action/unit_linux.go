//go:build linux

package action

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

// Unit starts a systemd unit and waits for its start job to finish. Pair it
// with Type=oneshot units so "done" means the work actually ran.
func Unit(spec Spec, log logx.Logger) job.Action {
	unit := unitName(spec.Unit)
	return func(ctx context.Context) (job.Outcome, error) {
		var (
			conn *dbus.Conn
			err  error
		)
		if spec.UserBus {
			conn, err = dbus.NewUserConnectionContext(ctx)
		} else {
			conn, err = dbus.NewSystemConnectionContext(ctx)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to connect to systemd: %w", err)
		}
		defer conn.Close()

		done := make(chan string, 1)
		id, err := conn.StartUnitContext(ctx, unit, "replace", done)
		if err != nil {
			return nil, fmt.Errorf("failed to start %s: %w", unit, err)
		}
		log.Debug("unit start queued", logx.String("unit", unit), logx.Int("systemd_job", id))

		select {
		case <-ctx.Done():
			// Leave the unit alone; stopping it is the operator's call.
			return nil, ctx.Err()
		case result := <-done:
			return unitOutcome(unit, result)
		}
	}
}
