//go:build !linux

package action

import (
	"context"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/engine"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

func Unit(spec Spec, _ logx.Logger) job.Action {
	return func(context.Context) (job.Outcome, error) {
		return nil, engine.NoRetry(ErrUnsupported)
	}
}
