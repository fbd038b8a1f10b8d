package config

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"

	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

// ReloadPlan is what a running process can take from a new config.
//
// Job enablement, logging and the API server are applied live. Everything
// else is listed in Ignored so the caller can warn that a restart is needed.
type ReloadPlan struct {
	// Enabled holds jobs whose enabled flag changed, mapped to the new value.
	Enabled        map[string]bool
	LoggingChanged bool
	APIChanged     bool
	Ignored        []string
}

func (p ReloadPlan) Empty() bool {
	return len(p.Enabled) == 0 && !p.LoggingChanged && !p.APIChanged && len(p.Ignored) == 0
}

// PlanReload compares two configs.
func PlanReload(oldCfg, newCfg *Config) ReloadPlan {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	plan := ReloadPlan{Enabled: map[string]bool{}}

	plan.LoggingChanged = !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging)
	if !reflect.DeepEqual(oldCfg.Engine, newCfg.Engine) {
		plan.Ignored = append(plan.Ignored, "engine")
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		plan.Ignored = append(plan.Ignored, "storage")
	}
	plan.APIChanged = oldCfg.API != newCfg.API

	oldJobs := jobsByName(oldCfg.Jobs)
	newJobs := jobsByName(newCfg.Jobs)
	for name, nj := range newJobs {
		oj, ok := oldJobs[name]
		if !ok {
			plan.Ignored = append(plan.Ignored, "jobs."+name+" (added)")
			continue
		}
		if oj.IsEnabled() != nj.IsEnabled() {
			plan.Enabled[name] = nj.IsEnabled()
		}
		if jobBodyHash(oj) != jobBodyHash(nj) {
			plan.Ignored = append(plan.Ignored, "jobs."+name+" (changed)")
		}
	}
	for name := range oldJobs {
		if _, ok := newJobs[name]; !ok {
			plan.Ignored = append(plan.Ignored, "jobs."+name+" (removed)")
		}
	}
	sort.Strings(plan.Ignored)
	return plan
}

// Fields returns safe structured attrs describing the plan.
func (p ReloadPlan) Fields() []logx.Field {
	names := make([]string, 0, len(p.Enabled))
	for n := range p.Enabled {
		names = append(names, n)
	}
	sort.Strings(names)
	return []logx.Field{
		logx.Strings("enablement_changed", names),
		logx.Bool("logging_changed", p.LoggingChanged),
		logx.Bool("api_changed", p.APIChanged),
		logx.Strings("ignored", p.Ignored),
	}
}

func jobsByName(jobs []JobConfig) map[string]JobConfig {
	out := make(map[string]JobConfig, len(jobs))
	for _, j := range jobs {
		out[strings.TrimSpace(j.Name)] = j
	}
	return out
}

// jobBodyHash hashes everything about a job except its enabled flag.
func jobBodyHash(j JobConfig) uint64 {
	j.Enabled = nil
	b, err := json.Marshal(j)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}
