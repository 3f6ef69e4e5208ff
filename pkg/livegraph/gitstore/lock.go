package gitstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
	"github.com/randalmurphal/livegraph/pkg/livegraph/retry"
)

const locksDir = ".locks"

// fileLock is an advisory lock held by the existence of a file.
type fileLock struct {
	path string
}

// acquireLock creates path exclusively, polling every interval until
// timeout. The file body records the holder for humans; only its existence
// matters.
func acquireLock(ctx context.Context, name, path string, timeout, interval time.Duration) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := retry.DoContext(waitCtx, retry.Poll(interval), func(context.Context) (*fileLock, error) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			return nil, retry.Transient(err, "lock held")
		}
		if err != nil {
			return nil, retry.Permanent(err, "create lock")
		}
		_, werr := fmt.Fprintf(f, "pid=%d acquired=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339Nano))
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			_ = os.Remove(path)
			return nil, retry.Permanent(err, "write lock")
		}
		return &fileLock{path: path}, nil
	})
	if res.Err == nil {
		return res.Value, nil
	}

	// The caller giving up is not a timeout.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
		return nil, graph.LockTimeout(name, timeout, res.Err)
	}
	return nil, fmt.Errorf("acquire lock %s: %w", path, res.Err)
}

// release removes the lock file. A missing file is not an error.
func (l *fileLock) release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}
