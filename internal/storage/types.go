package storage

import (
	"context"
	"errors"
	"time"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/state"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines files next to Path
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	// KeepResults is how many results per job RecentResults returns and the
	// file driver retains on compaction.
	KeepResults int
}

// Store is the persistence API used by the sink pumps.
type Store interface {
	AppendStatus(ctx context.Context, rec state.StatusRecord) error
	AppendResult(ctx context.Context, rec state.ResultRecord) error
	AppendLog(ctx context.Context, e logx.Entry) error
	// RecentResults returns up to KeepResults results per job, oldest first within each job.
	RecentResults(ctx context.Context) ([]state.ResultRecord, error)
	Close() error
}

const defaultKeepResults = 10

func (c Config) keep() int {
	if c.KeepResults <= 0 {
		return defaultKeepResults
	}
	return c.KeepResults
}
