package action

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/engine"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
)

var ErrUnsupported = errors.New("systemd units are only supported on linux")

func unitName(raw string) string {
	u := strings.TrimSpace(raw)
	if !strings.Contains(u, ".") {
		u += ".service"
	}
	return u
}

// unitOutcome maps a systemd job result string onto an outcome.
//
// See org.freedesktop.systemd1.Manager JobRemoved: done, canceled, timeout,
// failed, dependency, skipped.
func unitOutcome(unit, result string) (job.Outcome, error) {
	switch result {
	case "done":
		return job.Success{}, nil
	case "skipped":
		return job.Skipped{Reason: unit + " skipped by systemd"}, nil
	case "dependency":
		return nil, engine.NoRetry(fmt.Errorf("%s: a required unit failed", unit))
	default:
		return nil, fmt.Errorf("%s: job %s", unit, result)
	}
}
