package scheduler

import "github.com/MarkStefanovic/ketl-sub000/internal/task/state"

// ResultReader is the part of state.Results the scheduler reads.
type ResultReader interface {
	Latest(name string) (state.Result, bool)
}

// DependenciesHaveRun reports whether a job may run with respect to its
// dependencies. It is true when there are no dependencies, when the job has
// never produced a result, or when ANY dependency's latest result is a
// success that ended strictly after the job's own latest result.
func DependenciesHaveRun(name string, dependencies []string, results ResultReader) bool {
	if len(dependencies) == 0 {
		return true
	}
	own, ok := results.Latest(name)
	if !ok {
		return true
	}
	ownEnd := own.Info().End
	for _, dep := range dependencies {
		r, ok := results.Latest(dep)
		if !ok {
			continue
		}
		if s, isSuccess := r.(state.ResultSuccess); isSuccess && s.End.After(ownEnd) {
			return true
		}
	}
	return false
}
