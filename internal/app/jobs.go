package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MarkStefanovic/ketl-sub000/internal/config"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

// ErrInvalidJobs is returned when the validation policy is "refuse" and at
// least one job failed to build or validate.
var ErrInvalidJobs = errors.New("invalid jobs")

// Catalog is the outcome of turning config into jobs.
type Catalog struct {
	// Jobs are the jobs the engine will schedule.
	Jobs []*job.Job
	// Disabled names jobs present in Jobs whose enabled flag is false.
	Disabled []string
	// Skipped names jobs dropped by the skip_invalid policy.
	Skipped []string
	// BuildErr holds per-job build failures (bad durations, unknown action kinds...).
	BuildErr error
	// Validation is the cross-job check of the built jobs.
	Validation job.ValidationResult
}

// OK reports whether every configured job built and validated.
func (c Catalog) OK() bool { return c.BuildErr == nil && c.Validation.IsOK() }

// Report renders build and validation problems for humans.
func (c Catalog) Report() string {
	var out string
	if c.BuildErr != nil {
		out += "build errors:\n" + c.BuildErr.Error() + "\n"
	}
	if c.Validation.HasErrors() {
		out += c.Validation.Report()
	}
	return out
}

// ResolveJobs builds and validates the configured jobs and applies the
// validation policy. Under skip_invalid, validation repeats until the
// remaining set is consistent, so dependents of a dropped job are dropped too.
func ResolveJobs(cfg *config.Config, policy string, log logx.Logger) (Catalog, error) {
	built, buildErr := config.BuildJobs(cfg.Jobs, log)
	cat := Catalog{BuildErr: buildErr, Validation: job.ValidateJobs(built)}

	if !cat.OK() && policy == config.PolicyRefuse {
		return cat, fmt.Errorf("%w:\n%s", ErrInvalidJobs, cat.Report())
	}

	jobs := built
	for res := cat.Validation; res.HasErrors(); res = job.ValidateJobs(jobs) {
		drop := map[string]bool{}
		for _, n := range res.InvalidJobNames() {
			if !drop[n] {
				cat.Skipped = append(cat.Skipped, n)
			}
			drop[n] = true
		}
		kept := jobs[:0:0]
		for _, j := range jobs {
			if !drop[j.Name()] {
				kept = append(kept, j)
			}
		}
		jobs = kept
	}
	cat.Jobs = jobs

	enabled := map[string]bool{}
	for _, jc := range cfg.Jobs {
		enabled[strings.TrimSpace(jc.Name)] = jc.IsEnabled()
	}
	for _, j := range jobs {
		if on, ok := enabled[j.Name()]; ok && !on {
			cat.Disabled = append(cat.Disabled, j.Name())
		}
	}
	return cat, nil
}
