package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarkStefanovic/ketl-sub000/internal/config"
	"github.com/MarkStefanovic/ketl-sub000/internal/storage"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/state"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

func sleepJob(name string, deps ...string) config.JobConfig {
	return config.JobConfig{
		Name:         name,
		Dependencies: deps,
		Schedule:     []config.ScheduleConfig{{Parts: []config.SchedulePartConfig{{Frequency: "1s"}}}},
		Action:       config.ActionConfig{Kind: "sleep", Sleep: "1ms"},
	}
}

func TestResolveJobsSkipInvalidDropsDependents(t *testing.T) {
	t.Parallel()

	off := false
	disabled := sleepJob("quiet")
	disabled.Enabled = &off
	bad := sleepJob("broken")
	bad.Action.Kind = "dance"

	cfg := &config.Config{Jobs: []config.JobConfig{
		sleepJob("extract"),
		sleepJob("load", "missing"),
		sleepJob("report", "load"),
		sleepJob("dup"),
		sleepJob("dup"),
		bad,
		disabled,
	}}

	cat, err := ResolveJobs(cfg, config.PolicySkipInvalid, logx.Nop())
	require.NoError(t, err)
	assert.False(t, cat.OK())
	require.Error(t, cat.BuildErr)
	assert.Contains(t, cat.Report(), "build errors")
	assert.Contains(t, cat.Report(), `dependency "missing" does not exist`)

	var names []string
	for _, j := range cat.Jobs {
		names = append(names, j.Name())
	}
	assert.ElementsMatch(t, []string{"extract", "quiet"}, names)
	assert.ElementsMatch(t, []string{"load", "report", "dup"}, cat.Skipped)
	assert.Equal(t, []string{"quiet"}, cat.Disabled)
}

func TestResolveJobsRefuse(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Jobs: []config.JobConfig{sleepJob("a", "ghost")}}
	_, err := ResolveJobs(cfg, config.PolicyRefuse, logx.Nop())
	require.ErrorIs(t, err, ErrInvalidJobs)

	cfg = &config.Config{Jobs: []config.JobConfig{sleepJob("a"), sleepJob("b", "a")}}
	cat, err := ResolveJobs(cfg, config.PolicyRefuse, logx.Nop())
	require.NoError(t, err)
	assert.True(t, cat.OK())
	assert.Len(t, cat.Jobs, 2)
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()

	_, on, err := mapStorageConfig(&config.Config{}, 10)
	require.NoError(t, err)
	assert.False(t, on)

	_, _, err = mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "sqlite"}}, 10)
	require.Error(t, err)

	sc, on, err := mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "SQLite", Path: "x.db", BusyTimeout: "2s"}}, 7)
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, storage.Config{Driver: "sqlite", Path: "x.db", BusyTimeout: 2 * time.Second, KeepResults: 7}, sc)
}

func TestAppRunsJobsAndPersistsResults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dataPath := filepath.Join(dir, "ketl.jsonl")
	cfgPath := filepath.Join(dir, "ketl.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`{
  "engine": {"max_simultaneous_jobs": 2, "scan_frequency": "50ms"},
  "logging": {"level": "error", "sink": {"enabled": true, "min_level": "info"}},
  "storage": {"driver": "file", "path": %q},
  "jobs": [
    {"name": "tick", "schedule": [{"parts": [{"frequency": "1s"}]}], "action": {"kind": "sleep", "sleep": "1ms"}},
    {"name": "off", "enabled": false, "schedule": [{"parts": [{"frequency": "1s"}]}], "action": {"kind": "sleep", "sleep": "1ms"}}
  ]
}`, dataPath)), 0o600))

	a, err := New(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"off"}, a.Catalog().Disabled)

	st, ok := a.statuses.Get("tick")
	require.True(t, ok)
	assert.IsType(t, state.StatusInitial{}, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	require.Eventually(t, func() bool {
		_, ok := a.results.Latest("tick")
		return ok
	}, 5*time.Second, 20*time.Millisecond)
	_, ran := a.results.Latest("off")
	assert.False(t, ran)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx, StopSIGTERM))

	store, err := storage.Open(storage.Config{Driver: "file", Path: dataPath}, logx.Nop())
	require.NoError(t, err)
	defer store.Close()
	recs, err := store.RecentResults(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, "tick", recs[0].Job)
	assert.Equal(t, state.OutcomeSuccess, recs[0].Outcome)
}

func TestStopPersistsShutdownStatus(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dataPath := filepath.Join(dir, "ketl.jsonl")
	cfgPath := filepath.Join(dir, "ketl.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`{
  "engine": {"max_simultaneous_jobs": 1, "scan_frequency": "20ms"},
  "logging": {"level": "error"},
  "storage": {"driver": "file", "path": %q},
  "jobs": [{"name": "long", "schedule": [{"parts": [{"frequency": "1s"}]}], "action": {"kind": "sleep", "sleep": "1h"}}]
}`, dataPath)), 0o600))

	a, err := New(cfgPath)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool { return a.statuses.RunningJobCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx, StopSIGTERM))

	raw, err := os.ReadFile(filepath.Join(dir, "ketl.status.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.NotEmpty(t, lines)
	var last state.StatusRecord
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, "long", last.Job)
	assert.Equal(t, state.StateCancelled, last.State)
}

func TestApplyReloadTogglesJobs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ketl.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{
  "logging": {"level": "error"},
  "jobs": [{"name": "tick", "schedule": [{"parts": [{"frequency": "1h"}]}], "action": {"kind": "sleep", "sleep": "1ms"}}]
}`), 0o600))

	a, err := New(cfgPath)
	require.NoError(t, err)
	defer a.Stop(context.Background(), StopUnknown)

	oldCfg := a.cfgm.Get()
	newCfg := *oldCfg
	newCfg.Jobs = append([]config.JobConfig(nil), oldCfg.Jobs...)
	off := false
	newCfg.Jobs[0].Enabled = &off

	require.True(t, a.sched.Enabled("tick"))
	a.applyReload(context.Background(), oldCfg, &newCfg)
	assert.False(t, a.sched.Enabled("tick"))
}
