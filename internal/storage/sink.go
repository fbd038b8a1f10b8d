package storage

import (
	"context"
	"time"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/state"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

const writeTimeout = 2 * time.Second

// LogSink adapts a Store to logx.Sink.
func LogSink(st Store) logx.Sink {
	return logx.SinkFunc(func(ctx context.Context, e logx.Entry) error {
		return st.AppendLog(ctx, e)
	})
}

// PumpStatuses writes every status change from ch until ch is closed.
func PumpStatuses(ctx context.Context, st Store, ch <-chan state.Status, log logx.Logger) error {
	return pump(ctx, ch, log, "status", func(wctx context.Context, s state.Status) error {
		return st.AppendStatus(wctx, state.StatusRecordOf(s))
	})
}

// PumpResults writes every result from ch until ch is closed.
func PumpResults(ctx context.Context, st Store, ch <-chan state.Result, log logx.Logger) error {
	return pump(ctx, ch, log, "result", func(wctx context.Context, r state.Result) error {
		return st.AppendResult(wctx, state.ResultRecordOf(r))
	})
}

// pump writes values from ch until the publisher side closes it. Cancelling
// ctx is a hard stop: what is already buffered is written, anything
// published later is lost.
func pump[T any](ctx context.Context, ch <-chan T, log logx.Logger, kind string, write func(context.Context, T) error) error {
	put := func(v T) {
		wctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := write(wctx, v); err != nil {
			log.Warn("storage write failed", logx.String("kind", kind), logx.Err(err))
		}
	}
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case v, ok := <-ch:
					if !ok {
						return ctx.Err()
					}
					put(v)
				default:
					return ctx.Err()
				}
			}
		case v, ok := <-ch:
			if !ok {
				return nil
			}
			put(v)
		}
	}
}

// SeedResults loads persisted results into rs, oldest first per job.
func SeedResults(ctx context.Context, st Store, rs *state.Results) (int, error) {
	recs, err := st.RecentResults(ctx)
	if err != nil {
		return 0, err
	}
	for _, rec := range recs {
		rs.Add(state.ResultFromRecord(rec))
	}
	return len(recs), nil
}
