package ingest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gofrs/flock"
)

// ErrRunInProgress is returned when another run holds the guard, in this
// process or in another one sharing the input folder
var ErrRunInProgress = errors.New("an ingestion run is already in progress")

// LockFileName is the cross-process lock kept in the input folder
const LockFileName = ".ingest.lock"

// runGuard allows one run at a time
type runGuard struct {
	mu   sync.Mutex
	file *flock.Flock
}

func newRunGuard(path string) *runGuard {
	return &runGuard{file: flock.New(path)}
}

// acquire takes both locks without waiting. The returned func releases them.
func (g *runGuard) acquire() (func(), error) {
	if !g.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	locked, err := g.file.TryLock()
	if err != nil {
		g.mu.Unlock()
		return nil, fmt.Errorf("lock %s: %w", g.file.Path(), err)
	}
	if !locked {
		g.mu.Unlock()
		return nil, ErrRunInProgress
	}
	return func() {
		_ = g.file.Unlock()
		g.mu.Unlock()
	}, nil
}
