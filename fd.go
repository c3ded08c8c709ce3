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
	"golang.org/x/sys/unix"
)

// fileDescriptor is a scoped handle to a kernel file descriptor. It
// guarantees close is attempted exactly once per owned descriptor, on
// every exit path, and never leaks across a fork+exec boundary unless
// explicitly told to.
//
// Descriptors cross fork boundaries; untracked leakage causes deadlocks
// where a reader never sees EOF because some other process still holds
// the write side open.
type fileDescriptor struct {
	fd int
}

const invalidFD = -1

// newFileDescriptor wraps an already-open raw descriptor.
func newFileDescriptor(fd int) *fileDescriptor {
	return &fileDescriptor{fd: fd}
}

// invalidFileDescriptor returns a handle holding no descriptor.
func invalidFileDescriptor() *fileDescriptor {
	return &fileDescriptor{fd: invalidFD}
}

func (f *fileDescriptor) valid() bool { return f.fd != invalidFD }

func (f *fileDescriptor) get() int { return f.fd }

// reset closes any descriptor currently held and replaces it with newFD.
// Unlike close(), a failure here is surfaced to the caller rather than
// swallowed, since reset is called on paths that can still report an
// error usefully.
func (f *fileDescriptor) reset(newFD int) error {
	if f.fd != invalidFD {
		if err := unix.Close(f.fd); err != nil {
			f.fd = newFD
			return syscallErr("fileDescriptor.reset", err)
		}
	}
	f.fd = newFD
	return nil
}

// close releases the descriptor, swallowing any error from the close(2)
// call itself: by the time we're tearing down, an error here cannot
// safely propagate without masking whatever error is already in flight.
func (f *fileDescriptor) close() {
	if f.fd != invalidFD {
		unix.Close(f.fd)
		f.fd = invalidFD
	}
}

// moveFrom destructively transfers ownership of src's descriptor to f,
// closing whatever f previously held.
func (f *fileDescriptor) moveFrom(src *fileDescriptor) {
	f.close()
	f.fd = src.fd
	src.fd = invalidFD
}

func (f *fileDescriptor) setCloseOnExec() error {
	flags, err := unix.FcntlInt(uintptr(f.fd), unix.F_GETFD, 0)
	if err != nil {
		return syscallErr("fcntl(F_GETFD)", err)
	}
	if _, err := unix.FcntlInt(uintptr(f.fd), unix.F_SETFD, flags|unix.FD_CLOEXEC); err != nil {
		return syscallErr("fcntl(F_SETFD)", err)
	}
	return nil
}

func (f *fileDescriptor) setNonBlock() error {
	flags, err := unix.FcntlInt(uintptr(f.fd), unix.F_GETFL, 0)
	if err != nil {
		return syscallErr("fcntl(F_GETFL)", err)
	}
	if _, err := unix.FcntlInt(uintptr(f.fd), unix.F_SETFL, flags|unix.O_NONBLOCK); err != nil {
		return syscallErr("fcntl(F_SETFL)", err)
	}
	return nil
}

// makePipe creates a pipe, optionally marking both ends close-on-exec.
func makePipe(closeOnExec bool) (read, write *fileDescriptor, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], 0); err != nil {
		return nil, nil, syscallErr("pipe", err)
	}
	read = newFileDescriptor(fds[0])
	write = newFileDescriptor(fds[1])
	if closeOnExec {
		if err := read.setCloseOnExec(); err != nil {
			read.close()
			write.close()
			return nil, nil, err
		}
		if err := write.setCloseOnExec(); err != nil {
			read.close()
			write.close()
			return nil, nil, err
		}
	}
	return read, write, nil
}

// writeAll loops until every byte of buf has been written to fd or a
// non-retryable error occurs. A partial write followed by such an error
// returns the number of bytes actually written alongside the error.
func writeAll(fd int, buf []byte) (int, error) {
	written := 0
	for written < len(buf) {
		n, err := unix.Write(fd, buf[written:])
		if n > 0 {
			written += n
		}
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return written, err
		}
		if n == 0 {
			break
		}
	}
	return written, nil
}
