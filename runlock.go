// Copyright 2013 Brady Catherman
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package with

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// RunLock is an exclusive, advisory whole-file lock that records the
// holding process's PID. It prevents two overlapping pipeline
// invocations from sharing the same lock path.
type RunLock struct {
	path string
	fd   *fileDescriptor
}

// OpenRunLock opens (creating if necessary) path, takes a non-blocking
// exclusive flock on it, and writes the current PID into it. If the file
// is already locked, it returns an *Error with Kind == AlreadyRunning.
func OpenRunLock(path string) (*RunLock, error) {
	raw, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0666)
	if err != nil {
		return nil, syscallErr("open "+path, err)
	}
	fd := newFileDescriptor(raw)

	if err := fd.setCloseOnExec(); err != nil {
		fd.close()
		return nil, err
	}

	if err := unix.Flock(fd.get(), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		fd.close()
		if err == unix.EWOULDBLOCK {
			return nil, alreadyRunning(path)
		}
		return nil, syscallErr("flock "+path, err)
	}

	if err := unix.Ftruncate(fd.get(), 0); err != nil {
		fd.close()
		return nil, syscallErr("ftruncate "+path, err)
	}

	payload := []byte(fmt.Sprintf("%d\n", os.Getpid()))
	if _, err := writeAll(fd.get(), payload); err != nil {
		fd.close()
		return nil, syscallErr("write "+path, err)
	}

	return &RunLock{path: path, fd: fd}, nil
}

// Release truncates the lock file back to empty and closes it. The file
// is never unlinked: it may have been renamed out from under the lock
// holder, and unlinking would delete whatever took its place.
func (l *RunLock) Release() error {
	if l == nil || l.fd == nil || !l.fd.valid() {
		return nil
	}
	err := unix.Ftruncate(l.fd.get(), 0)
	l.fd.close()
	if err != nil {
		return syscallErr("ftruncate "+l.path, err)
	}
	return nil
}
