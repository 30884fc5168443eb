package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sdwkit/sdw/internal/types"
)

// FeatureLock is the on-disk lock record serializing mutations to a single
// feature. Advance, CreateRevision, and Approve for one feature must not
// interleave: two concurrent approvals could otherwise both succeed against
// a stale precondition check. Different features lock independently.
type FeatureLock struct {
	FeatureID  string    `json:"feature_id"`
	Session    string    `json:"session"`
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// LockManager acquires and releases per-feature locks under a data directory.
// Locks held longer than StaleAfter by a dead or silent holder are reclaimed,
// treating an abandoned session as released.
type LockManager struct {
	// Dir is the directory lock files are created in (one per feature).
	Dir string

	// StaleAfter is how long a held lock survives before it may be
	// reclaimed. Zero disables reclaim.
	StaleAfter time.Duration

	// Session identifies this process; reacquiring a lock already held by
	// the same session is a no-op.
	Session string
}

// NewLockManager creates a lock manager with a fresh session ID.
func NewLockManager(dir string, staleAfter time.Duration) *LockManager {
	return &LockManager{
		Dir:        dir,
		StaleAfter: staleAfter,
		Session:    uuid.NewString(),
	}
}

func (m *LockManager) lockPath(featureID string) string {
	return filepath.Join(m.Dir, featureID+".lock")
}

// Acquire takes the lock for a feature. Returns LockHeld if another live
// session holds it and the lock is not stale.
func (m *LockManager) Acquire(featureID string) error {
	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return types.StorageError(fmt.Errorf("failed to create lock directory: %w", err))
	}

	path := m.lockPath(featureID)

	if data, err := os.ReadFile(path); err == nil {
		var existing FeatureLock
		if json.Unmarshal(data, &existing) == nil {
			if existing.Session == m.Session {
				// Same session reacquiring: no-op.
				return nil
			}
			if !m.isStale(&existing) {
				return types.NewError(types.ErrLockHeld,
					"feature %s is locked by another session (PID %d on %s, acquired %s)",
					featureID, existing.PID, existing.Hostname,
					existing.AcquiredAt.Format(time.RFC3339)).
					WithHint("wait for the other session to finish, or remove the stale lock file %s", path)
			}
			// Stale lock - will overwrite
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to get hostname: %w", err))
	}

	lock := FeatureLock{
		FeatureID:  featureID,
		Session:    m.Session,
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: time.Now(),
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to marshal lock: %w", err))
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return types.StorageError(fmt.Errorf("failed to create feature lock: %w", err))
	}

	return nil
}

// Release removes the lock for a feature. Releasing a lock this session does
// not hold is an error; releasing an already-released lock is not.
func (m *LockManager) Release(featureID string) error {
	path := m.lockPath(featureID)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return types.StorageError(fmt.Errorf("failed to read feature lock: %w", err))
	}

	var existing FeatureLock
	if err := json.Unmarshal(data, &existing); err == nil && existing.Session != m.Session {
		return types.NewError(types.ErrLockHeld,
			"feature %s is locked by a different session", featureID)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return types.StorageError(fmt.Errorf("failed to remove feature lock: %w", err))
	}
	return nil
}

// isStale reports whether an existing lock can be reclaimed. A lock is stale
// when its holder process is gone, or when it has been held longer than
// StaleAfter (approvals are human-paced; an abandoned session must not block
// a feature forever).
func (m *LockManager) isStale(lock *FeatureLock) bool {
	if !isProcessAlive(lock.PID, lock.Hostname) {
		return true
	}
	if m.StaleAfter > 0 && time.Since(lock.AcquiredAt) > m.StaleAfter {
		return true
	}
	return false
}

// isProcessAlive checks if a process with the given PID exists on the given
// hostname. Returns true if the process is alive, false otherwise.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		// Can't check hostname, assume remote/alive
		return true
	}

	if !strings.EqualFold(hostname, currentHost) {
		// Remote host - can't check, assume alive
		return true
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Send signal 0 to check if process exists
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}

	// EPERM means the process exists but belongs to someone else.
	// Fail safe: if we can't verify, assume alive.
	if err == syscall.EPERM {
		return true
	}

	return false
}
