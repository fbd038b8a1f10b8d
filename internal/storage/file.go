package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/state"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

const resultCompactEvery = 1000

// fileStore is a JSON Lines backend.
//
// Files:
//   - <prefix>.status.jsonl  (append-only status history)
//   - <prefix>.results.jsonl (results journal, compacted to the last KeepResults per job)
//   - <prefix>.log.jsonl     (append-only log records)
type fileStore struct {
	log  logx.Logger
	keep int

	mu sync.Mutex

	statusFile  *os.File
	resultsPath string
	resultsFile *os.File
	logFile     *os.File

	recent       map[string][]state.ResultRecord
	resultWrites int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:         log,
		keep:        cfg.keep(),
		resultsPath: prefix + ".results.jsonl",
		recent:      map[string][]state.ResultRecord{},
	}
	if err := replayResults(s.resultsPath, s.remember); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("results journal replay failed", logx.Err(err))
	}

	var err error
	if s.statusFile, err = openAppend(prefix + ".status.jsonl"); err != nil {
		return nil, err
	}
	if s.resultsFile, err = openAppend(s.resultsPath); err != nil {
		_ = s.statusFile.Close()
		return nil, err
	}
	if s.logFile, err = openAppend(prefix + ".log.jsonl"); err != nil {
		_ = s.statusFile.Close()
		_ = s.resultsFile.Close()
		return nil, err
	}
	return s, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, f := range []**os.File{&s.statusFile, &s.resultsFile, &s.logFile} {
		if *f != nil {
			errs = append(errs, (*f).Close())
			*f = nil
		}
	}
	return errors.Join(errs...)
}

func (s *fileStore) AppendStatus(_ context.Context, rec state.StatusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendJSON(s.statusFile, rec)
}

func (s *fileStore) AppendLog(_ context.Context, e logx.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendJSON(s.logFile, e)
}

func (s *fileStore) AppendResult(_ context.Context, rec state.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := appendJSON(s.resultsFile, rec); err != nil {
		return err
	}
	s.remember(rec)
	s.resultWrites++
	if s.resultWrites%resultCompactEvery == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("results compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) RecentResults(context.Context) ([]state.ResultRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return flattenRecent(s.recent), nil
}

func (s *fileStore) remember(rec state.ResultRecord) {
	h := append(s.recent[rec.Job], rec)
	if over := len(h) - s.keep; over > 0 {
		h = append([]state.ResultRecord(nil), h[over:]...)
	}
	s.recent[rec.Job] = h
}

// compactLocked rewrites the results journal with only the retained records.
func (s *fileStore) compactLocked() error {
	if s.resultsFile == nil {
		return ErrClosed
	}
	tmp := s.resultsPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, rec := range flattenRecent(s.recent) {
		if err := enc.Encode(rec); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = s.resultsFile.Close()
	if err := os.Rename(tmp, s.resultsPath); err != nil {
		s.resultsFile, _ = openAppend(s.resultsPath)
		return err
	}
	s.resultsFile, err = openAppend(s.resultsPath)
	return err
}

func appendJSON(f *os.File, v any) error {
	if f == nil {
		return ErrClosed
	}
	return json.NewEncoder(f).Encode(v)
}

func replayResults(path string, fn func(state.ResultRecord)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var rec state.ResultRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil || rec.Job == "" {
			continue
		}
		fn(rec)
	}
	return sc.Err()
}

func flattenRecent(m map[string][]state.ResultRecord) []state.ResultRecord {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	var out []state.ResultRecord
	for _, n := range names {
		out = append(out, m[n]...)
	}
	return out
}
