package persist

import (
	"fmt"
	"os"
)

// Lock takes an exclusive advisory lock on a "<name>.lock" file next to
// the document. It blocks until the lock is free and serializes
// load-modify-save cycles between processes sharing the data directory.
// The returned func releases the lock.
func (f *File) Lock() (func(), error) {
	lockPath := f.path + ".lock"
	lf, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock %s: %w", lockPath, err)
	}
	if err := lockFile(lf); err != nil {
		_ = lf.Close()
		if f.log != nil {
			f.log.Warn("state lock failed", "err", err)
		}
		return nil, fmt.Errorf("lock %s: %w", lockPath, err)
	}
	return func() {
		if err := unlockFile(lf); err != nil && f.log != nil {
			f.log.Warn("state unlock failed", "err", err)
		}
		_ = lf.Close()
	}, nil
}
