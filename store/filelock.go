package store

import (
	"fmt"
	"os"
	"time"
)

const (
	lockAttempts   = 50
	lockRetryDelay = 100 * time.Millisecond
	lockStaleAfter = 30 * time.Second
)

// fileLock is an exclusive lock held through a sibling ".lock" file so that
// several lde processes sharing one session file do not interleave writes.
type fileLock struct {
	file *os.File
	path string
}

func acquireFileLock(target string) (*fileLock, error) {
	path := target + ".lock"

	for range lockAttempts {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			// PID helps when inspecting a lock left behind by a crash
			fmt.Fprintf(f, "%d", os.Getpid())
			return &fileLock{file: f, path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire session lock: %w", err)
		}

		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			if remErr := os.Remove(path); remErr != nil && !os.IsNotExist(remErr) {
				return nil, fmt.Errorf("failed to remove stale lock %s: %w", path, remErr)
			}
			continue
		}

		time.Sleep(lockRetryDelay)
	}

	return nil, fmt.Errorf("timeout waiting for session lock after %v", lockAttempts*lockRetryDelay)
}

func (l *fileLock) release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	return os.Remove(l.path)
}
