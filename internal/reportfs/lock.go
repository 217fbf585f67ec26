package reportfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	lockSuffix    = ".lock"
	lockOwnerFile = "owner.json"
)

// Lock is an exclusive advisory lock on a single file, held as a sibling
// "<file>.lock" directory.
type Lock struct {
	dir string
}

type lockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

func AcquireLock(path string) (Lock, error) {
	target := strings.TrimSpace(path)
	if target == "" {
		return Lock{}, fmt.Errorf("lock target is required")
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Lock{}, fmt.Errorf("create parent for %s: %w", target, err)
	}

	dir := target + lockSuffix
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			var owner lockOwner
			if readErr := ReadJSON(filepath.Join(dir, lockOwnerFile), &owner); readErr == nil && owner.PID > 0 {
				return Lock{}, fmt.Errorf(
					"%s is locked (pid=%d created_at=%s host=%s)",
					target, owner.PID, owner.CreatedAt, owner.Hostname,
				)
			}
			return Lock{}, fmt.Errorf("%s is locked", target)
		}
		return Lock{}, fmt.Errorf("acquire lock for %s: %w", target, err)
	}

	owner := lockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	if err := WriteJSON(filepath.Join(dir, lockOwnerFile), owner); err != nil {
		_ = os.RemoveAll(dir)
		return Lock{}, fmt.Errorf("write lock owner for %s: %w", target, err)
	}
	return Lock{dir: dir}, nil
}

func (l Lock) Release() error {
	if strings.TrimSpace(l.dir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.dir, lockOwnerFile))
	if err := os.Remove(l.dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock %s: %w", l.dir, err)
	}
	return nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
