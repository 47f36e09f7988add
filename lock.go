package reroll

import (
	"os"
	"path/filepath"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"github.com/rkt/rkt/pkg/lock"
)

// serviceLock is held for the duration of a restart so that two reroll
// processes sharing a lock directory never scale the same service at once.
// It is implemented with a unix lock on a file named after the service. The
// file carries no content.
type serviceLock struct {
	lock *lock.FileLock
	path string
	l    log15.Logger
}

func touchFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

func serviceLockPath(dir, service string) string {
	return filepath.Join(dir, service+".lock")
}

// lockService takes an exclusive lock for service in dir. Unlike the
// runtime's own commands it does not block: if the lock is held elsewhere it
// returns ErrRestartInProgress immediately.
func lockService(l log15.Logger, dir, service string) (*serviceLock, error) {
	path := serviceLockPath(dir, service)
	l = l.New("lock", path)
	if err := touchFile(path); err != nil {
		return nil, errors.Wrapf(err, "could not create lock file")
	}
	l.Debug("taking lock on service")
	fl, err := lock.TryExclusiveLock(path, lock.RegFile)
	if err == lock.ErrLocked {
		l.Error("service is locked by another process")
		return nil, ErrRestartInProgress
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not lock %q", path)
	}
	l.Debug("took lock on service")
	return &serviceLock{lock: fl, path: path, l: l}, nil
}

// Unlock releases the lock and closes the lock file.
func (s *serviceLock) Unlock() error {
	s.l.Debug("unlocking service")
	return s.lock.Close()
}
