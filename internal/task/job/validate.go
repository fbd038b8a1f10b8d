package job

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationResult maps job name to the set of problems found for it.
type ValidationResult struct {
	errors map[string]map[string]struct{}
	names  []string
}

// ValidateJobs flags duplicate names and dependencies that name no job in the set.
// It is pure; the caller decides what to do with invalid jobs.
func ValidateJobs(jobs []*Job) ValidationResult {
	res := ValidationResult{errors: map[string]map[string]struct{}{}}

	counts := map[string]int{}
	for _, j := range jobs {
		if j == nil {
			continue
		}
		if counts[j.name] == 0 {
			res.names = append(res.names, j.name)
		}
		counts[j.name]++
	}
	sort.Strings(res.names)
	for _, n := range res.names {
		res.errors[n] = map[string]struct{}{}
	}

	for name, n := range counts {
		if n > 1 {
			res.errors[name][fmt.Sprintf("job name %q is used by %d jobs", name, n)] = struct{}{}
		}
	}
	for _, j := range jobs {
		if j == nil {
			continue
		}
		for _, dep := range j.dependencies {
			if _, ok := counts[dep]; !ok {
				res.errors[j.name][fmt.Sprintf("dependency %q does not exist", dep)] = struct{}{}
			}
		}
	}
	return res
}

// IsOK reports whether no job has errors.
func (r ValidationResult) IsOK() bool { return !r.HasErrors() }

func (r ValidationResult) HasErrors() bool {
	for _, errs := range r.errors {
		if len(errs) > 0 {
			return true
		}
	}
	return false
}

// Errors returns the sorted problems recorded for name.
func (r ValidationResult) Errors(name string) []string {
	out := make([]string, 0, len(r.errors[name]))
	for e := range r.errors[name] {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func (r ValidationResult) InvalidJobNames() []string {
	var out []string
	for _, n := range r.names {
		if len(r.errors[n]) > 0 {
			out = append(out, n)
		}
	}
	return out
}

func (r ValidationResult) ValidJobNames() []string {
	var out []string
	for _, n := range r.names {
		if len(r.errors[n]) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Report formats all problems, one job per block. Empty when OK.
func (r ValidationResult) Report() string {
	var b strings.Builder
	for _, n := range r.InvalidJobNames() {
		b.WriteString(n)
		b.WriteString(":\n")
		for _, e := range r.Errors(n) {
			b.WriteString("  - ")
			b.WriteString(e)
			b.WriteString("\n")
		}
	}
	return b.String()
}
