// Package action turns configured action specs into runnable job actions.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

const (
	KindCommand = "command"
	KindSleep   = "sleep"
	KindFail    = "fail"
	KindUnit    = "unit"
)

// Spec describes one action.
type Spec struct {
	Kind    string
	Command []string
	Dir     string
	Env     []string
	// SkipExitCode, when non-zero, turns that exit status into a Skipped outcome.
	SkipExitCode int
	Sleep        time.Duration
	Message      string
	// Unit is the systemd unit started by the unit kind. A bare name gets ".service".
	Unit string
	// UserBus talks to the per-user systemd instance instead of the system one.
	UserBus bool
}

var ErrUnknownKind = errors.New("unknown action kind")

// Build returns the action for spec. log receives command output summaries.
func Build(spec Spec, log logx.Logger) (job.Action, error) {
	switch strings.ToLower(strings.TrimSpace(spec.Kind)) {
	case KindCommand:
		if len(spec.Command) == 0 || strings.TrimSpace(spec.Command[0]) == "" {
			return nil, fmt.Errorf("command action requires a program")
		}
		return Command(spec, log), nil
	case KindSleep:
		if spec.Sleep < 0 {
			return nil, fmt.Errorf("sleep must be >= 0")
		}
		return Sleep(spec.Sleep), nil
	case KindUnit:
		if strings.TrimSpace(spec.Unit) == "" {
			return nil, fmt.Errorf("unit action requires a unit name")
		}
		return Unit(spec, log), nil
	case KindFail:
		msg := spec.Message
		if msg == "" {
			msg = "configured to fail"
		}
		return Fail(msg), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, spec.Kind)
	}
}

// Sleep waits d (or until ctx ends) and succeeds.
func Sleep(d time.Duration) job.Action {
	return func(ctx context.Context) (job.Outcome, error) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
			return job.Success{}, nil
		}
	}
}

// Fail always returns an error carrying msg. Useful for exercising retries.
func Fail(msg string) job.Action {
	return func(context.Context) (job.Outcome, error) {
		return nil, errors.New(msg)
	}
}
