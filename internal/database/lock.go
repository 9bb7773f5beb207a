package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// ErrLocked is returned by LockTemplate when another process holds the
// lock until ctx is done.
var ErrLocked = errors.New("template is locked by another process")

// lockRetryDelay is how often LockTemplate retries a held lock.
const lockRetryDelay = 100 * time.Millisecond

// LockPath returns the lock file used for identity inside dir.
// Identities are file paths, so the name is a name-based UUID of the
// identity rather than the identity itself.
func LockPath(dir, identity string) string {
	name := uuid.NewSHA1(uuid.NameSpaceURL, []byte(identity)).String()
	return filepath.Join(dir, "locks", name+".lock")
}

// LockTemplate takes an exclusive cross-process lock on identity so that
// two processes do not analyse and persist the same template at once.
// The caller must Unlock the returned lock.
func LockTemplate(ctx context.Context, dir, identity string) (*flock.Flock, error) {
	path := LockPath(dir, identity)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lock := flock.New(path)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrLocked, identity)
		}
		return nil, fmt.Errorf("failed to lock template: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, identity)
	}
	return lock, nil
}
