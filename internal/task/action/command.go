package action

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/engine"
	"github.com/MarkStefanovic/ketl-sub000/internal/task/job"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

const (
	outputTailBytes = 4 << 10
	killWaitDelay   = 2 * time.Second
)

// Command runs spec.Command as a child process.
//
// Exit status 0 is Success and spec.SkipExitCode (if set) is Skipped. Any
// other exit status is a retryable error carrying the stderr tail. A program
// that cannot be started is not retried. When ctx ends the whole process
// group is killed.
func Command(spec Spec, log logx.Logger) job.Action {
	argv := append([]string(nil), spec.Command...)
	env := append([]string(nil), spec.Env...)
	dir := spec.Dir
	skipCode := spec.SkipExitCode
	display := strings.Join(argv, " ")

	return func(ctx context.Context) (job.Outcome, error) {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = dir
		if len(env) > 0 {
			cmd.Env = append(os.Environ(), env...)
		}
		stdout := &tailBuffer{max: outputTailBytes}
		stderr := &tailBuffer{max: outputTailBytes}
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		setCommandProcessGroup(cmd)
		cmd.Cancel = func() error {
			killCommandProcessGroup(cmd)
			return nil
		}
		cmd.WaitDelay = killWaitDelay

		start := time.Now()
		err := cmd.Run()
		dur := time.Since(start)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var exitErr *exec.ExitError
		switch {
		case err == nil:
			log.Debug("command finished", logx.String("command", display), logx.Duration("dur", dur), logx.String("stdout", stdout.String()))
			return job.Success{}, nil
		case errors.As(err, &exitErr):
			code := exitErr.ExitCode()
			if skipCode != 0 && code == skipCode {
				return job.Skipped{Reason: firstNonEmpty(strings.TrimSpace(stdout.String()), fmt.Sprintf("exit status %d", code))}, nil
			}
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				return nil, fmt.Errorf("%s: exit status %d", display, code)
			}
			return nil, fmt.Errorf("%s: exit status %d: %s", display, code, msg)
		default:
			return nil, engine.NoRetry(fmt.Errorf("%s: %w", display, err))
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// tailBuffer keeps only the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
