package scheduler

import logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"

func nopLogger() logx.Logger { return logx.Nop() }
