package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/state"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

// execute runs j to a terminal result. When ctx (the runner's own context) is
// cancelled the job is marked Cancelled, no result is published, and ctx's
// error is returned so the worker unwinds.
func (r *Runner) execute(ctx context.Context, j *job.Job) (state.Result, error) {
	name := j.Name()
	defer r.release(name)

	jobCtx, cancelJob := context.WithCancelCause(ctx)
	defer cancelJob(nil)
	if r.setCancel(name, cancelJob) {
		now := r.now()
		res := state.ResultCancelled{ResultInfo: state.ResultInfo{Job: name, RunID: r.newRunID(), Start: now, End: now}}
		r.log.Info("job cancelled", logx.String("job", name), logx.String("run_id", res.RunID), logx.Int("attempts", 0))
		r.results.Add(res)
		r.statuses.Add(state.StatusFromResult(res))
		return res, nil
	}

	if j.Timeout() > 0 {
		var cancelTimeout context.CancelFunc
		jobCtx, cancelTimeout = context.WithTimeoutCause(jobCtx, j.Timeout(), ErrJobTimeout)
		defer cancelTimeout()
	}

	info := state.ResultInfo{Job: name, RunID: r.newRunID(), Start: r.now()}
	log := r.log.With(logx.String("job", name), logx.String("run_id", info.RunID))

	r.statuses.Running(name)
	log.Info("job started", logx.Int("retries", j.Retries()), logx.Duration("timeout", j.Timeout()))

	out, attempts, err := r.runWithRetry(jobCtx, j, log)
	info.End = r.now()
	if info.End.Before(info.Start) {
		info.End = info.Start
	}
	info.Attempts = attempts

	if ctx.Err() != nil {
		r.statuses.Cancelled(name)
		log.Info("job cancelled by shutdown", logx.Int("attempts", attempts))
		return nil, ctx.Err()
	}

	var res state.Result
	if err != nil {
		cause := context.Cause(jobCtx)
		switch {
		case jobCtx.Err() != nil && errors.Is(cause, ErrJobTimeout):
			res = state.ResultFailure{ResultInfo: info, Message: fmt.Sprintf("timed out after %s", j.Timeout())}
			log.Warn("job timed out", logx.Duration("timeout", j.Timeout()), logx.Int("attempts", attempts))
		case jobCtx.Err() != nil && errors.Is(cause, ErrJobCancelled):
			res = state.ResultCancelled{ResultInfo: info}
			log.Info("job cancelled", logx.Int("attempts", attempts))
		default:
			res = state.ResultFailure{ResultInfo: info, Message: err.Error()}
			log.Warn("job failed", logx.Err(err), logx.Int("attempts", attempts), logx.Duration("dur", info.End.Sub(info.Start)))
		}
	} else {
		switch o := out.(type) {
		case job.Failure:
			res = state.ResultFailure{ResultInfo: info, Message: o.Message}
			log.Warn("job reported failure", logx.String("message", o.Message), logx.Int("attempts", attempts))
		case job.Skipped:
			res = state.ResultSkipped{ResultInfo: info, Reason: o.Reason}
			log.Info("job skipped", logx.String("reason", o.Reason))
		case job.Success:
			res = state.ResultSuccess{ResultInfo: info}
			log.Info("job succeeded", logx.Int("attempts", attempts), logx.Duration("dur", info.End.Sub(info.Start)))
		default:
			res = state.ResultSuccess{ResultInfo: info}
			log.Info("job succeeded", logx.Int("attempts", attempts), logx.Duration("dur", info.End.Sub(info.Start)))
		}
	}

	r.results.Add(res)
	r.statuses.Add(state.StatusFromResult(res))
	return res, nil
}

// runWithRetry makes up to 1+retries attempts. ctx carries the overall
// timeout, so an expiry ends the loop regardless of attempts left.
func (r *Runner) runWithRetry(ctx context.Context, j *job.Job, log logx.Logger) (job.Outcome, int, error) {
	maxAttempts := 1 + j.Retries()
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var out job.Outcome
		out, err = r.attempt(ctx, j, log)
		if err == nil {
			if out == nil {
				out = job.Success{}
			}
			return out, attempt, nil
		}
		if ctx.Err() != nil {
			return nil, attempt, err
		}
		var nr noRetryError
		if errors.As(err, &nr) {
			return nil, attempt, nr.err
		}
		if attempt >= maxAttempts {
			return nil, attempt, err
		}

		delay := retryDelay(err)
		log.Debug("job retry", logx.Int("attempt", attempt+1), logx.Duration("delay", delay), logx.Err(err))
		if delay > 0 {
			tmr := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				tmr.Stop()
				return nil, attempt, context.Cause(ctx)
			case <-tmr.C:
			}
		}
	}
	return nil, maxAttempts, err
}

type attemptResult struct {
	out job.Outcome
	err error
}

// attempt runs the action once. The action runs in its own goroutine so a
// call that ignores ctx still frees the worker when ctx ends.
func (r *Runner) attempt(ctx context.Context, j *job.Job, log logx.Logger) (job.Outcome, error) {
	done := make(chan attemptResult, 1)
	go func() {
		var res attemptResult
		defer func() {
			if p := recover(); p != nil {
				res = attemptResult{err: fmt.Errorf("panic: %v", p)}
				log.Error("job panicked", logx.Any("panic", p), logx.Stack(string(debug.Stack())))
			}
			done <- res
		}()
		out, err := j.Run(ctx)
		res = attemptResult{out: out, err: err}
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}
