// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package scanstate

import (
	"fmt"
	"os"
	"strconv"
)

// Lock is an exclusive-create lock file guarding the state against
// concurrent agent runs. The file carries the holder's pid for operator
// diagnosis of stale locks.
type Lock struct {
	path string
}

// Acquire takes the lock or fails if another run holds it. The caller must
// Release before exiting; a crashed run leaves a stale lock that the
// operator removes after checking the recorded pid.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			holder := "unknown"
			if data, readErr := os.ReadFile(path); readErr == nil && len(data) > 0 {
				holder = string(data)
			}
			return nil, fmt.Errorf("state is locked by pid %s (lock file %s)", holder, path)
		}
		return nil, fmt.Errorf("create lock %s: %w", path, err)
	}

	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("write lock %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("close lock %s: %w", path, err)
	}

	return &Lock{path: path}, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock %s: %w", l.path, err)
	}
	return nil
}
