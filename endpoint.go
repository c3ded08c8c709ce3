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
	"os"

	"golang.org/x/sys/unix"
)

type endpointKind int

const (
	endpointPipe endpointKind = iota
	endpointFile
	endpointCallerStdin
	endpointCallerStdout
	endpointCallerStderr
	endpointNull
)

// EndpointSpec declaratively describes an IO endpoint that a ProcessSpec
// can wire to its stdin, stdout, or stderr. Its identity is the pointer
// itself: two ProcessSpecs that share the same *EndpointSpec end up
// connected to the same kernel pipe (or the same open file descriptor),
// while two EndpointSpecs naming the same path remain distinct endpoints.
type EndpointSpec struct {
	kind   endpointKind
	path   string
	append bool
}

// NewPipeEndpoint returns an anonymous pipe endpoint.
func NewPipeEndpoint() *EndpointSpec {
	return &EndpointSpec{kind: endpointPipe}
}

// NewFileEndpoint returns an endpoint backed by the named path, opened
// with O_APPEND when append is true and the endpoint is used for
// writing.
func NewFileEndpoint(path string, append bool) *EndpointSpec {
	return &EndpointSpec{kind: endpointFile, path: path, append: append}
}

// NewCallerStdinEndpoint returns the "/dev/stdin" inherited endpoint; it
// may only be wired to a ProcessSpec's stdin.
func NewCallerStdinEndpoint() *EndpointSpec {
	return &EndpointSpec{kind: endpointCallerStdin, path: "/dev/stdin"}
}

// NewCallerStdoutEndpoint returns the "/dev/stdout" inherited endpoint;
// it may only be wired to a ProcessSpec's stdout or stderr.
func NewCallerStdoutEndpoint() *EndpointSpec {
	return &EndpointSpec{kind: endpointCallerStdout, path: "/dev/stdout"}
}

// NewCallerStderrEndpoint returns the "/dev/stderr" inherited endpoint;
// it may only be wired to a ProcessSpec's stdout or stderr.
func NewCallerStderrEndpoint() *EndpointSpec {
	return &EndpointSpec{kind: endpointCallerStderr, path: "/dev/stderr"}
}

// NewNullEndpoint returns the null-sink endpoint: reads return EOF,
// writes are discarded.
func NewNullEndpoint() *EndpointSpec {
	return &EndpointSpec{kind: endpointNull}
}

// endpoint is the opened, runtime form of an EndpointSpec. want_read and
// want_write accumulate across every ProcessSpec that references the
// spec, so the endpoint is opened once with the union of every use.
//
// Once opened, each side is held as an *os.File rather than a raw
// descriptor: *os.File is what os/exec.Cmd's Stdin/Stdout/Stderr fields
// want, and handing it a file we still separately unix.Close() behind
// its back would race its own finalizer. From open() onward, the
// *os.File is the sole owner of the descriptor.
type endpoint struct {
	spec      *EndpointSpec
	wantRead  bool
	wantWrite bool
	readSide  *os.File
	writeSide *os.File
}

func (e *endpoint) open() error {
	switch e.spec.kind {
	case endpointPipe:
		r, w, err := makePipe(true)
		if err != nil {
			return err
		}
		e.readSide = finalize(r)
		e.writeSide = finalize(w)
		return nil

	case endpointCallerStdin:
		if e.wantWrite {
			return badSpec("endpoint.open", "/dev/stdin cannot be used for writing")
		}
		fd, err := dupCloseOnExec(unix.Stdin)
		if err != nil {
			return err
		}
		e.readSide = finalize(fd)
		return nil

	case endpointCallerStdout:
		if e.wantRead {
			return badSpec("endpoint.open", "/dev/stdout cannot be used for reading")
		}
		fd, err := dupCloseOnExec(unix.Stdout)
		if err != nil {
			return err
		}
		e.writeSide = finalize(fd)
		return nil

	case endpointCallerStderr:
		if e.wantRead {
			return badSpec("endpoint.open", "/dev/stderr cannot be used for reading")
		}
		fd, err := dupCloseOnExec(unix.Stderr)
		if err != nil {
			return err
		}
		e.writeSide = finalize(fd)
		return nil

	case endpointNull:
		return e.openFile(unix.O_RDWR)

	case endpointFile:
		mode := 0
		switch {
		case e.wantRead && e.wantWrite:
			mode = unix.O_RDWR | unix.O_CREAT
			if e.spec.append {
				mode |= unix.O_APPEND
			}
		case e.wantWrite:
			mode = unix.O_CREAT | unix.O_WRONLY
			if e.spec.append {
				mode |= unix.O_APPEND
			}
		case e.wantRead:
			mode = unix.O_RDONLY
		}
		return e.openFile(mode)

	default:
		return badSpec("endpoint.open", "unknown endpoint kind")
	}
}

// openFile opens the endpoint's path (or /dev/null for the null sink)
// with the given flags, servicing both the read and write side from a
// single descriptor when both are requested.
func (e *endpoint) openFile(mode int) error {
	path := e.spec.path
	if e.spec.kind == endpointNull {
		path = "/dev/null"
	}
	fd, err := unix.Open(path, mode, 0666)
	if err != nil {
		return syscallErr("open "+path, err)
	}
	handle := newFileDescriptor(fd)
	if err := handle.setCloseOnExec(); err != nil {
		handle.close()
		return err
	}
	file := finalize(handle)
	if e.wantRead {
		e.readSide = file
	}
	if e.wantWrite {
		e.writeSide = file
	}
	if e.readSide == nil && e.writeSide == nil {
		// Neither side was requested (an unused null sink), but the
		// descriptor must still be tracked so it gets closed.
		e.readSide = file
	}
	return nil
}

func dupCloseOnExec(oldfd int) (*fileDescriptor, error) {
	newfd, err := unix.Dup(oldfd)
	if err != nil {
		return nil, syscallErr("dup", err)
	}
	handle := newFileDescriptor(newfd)
	if err := handle.setCloseOnExec(); err != nil {
		handle.close()
		return nil, err
	}
	return handle, nil
}

// finalize hands ownership of a descriptor to an *os.File and marks the
// fileDescriptor as relinquished so its own close() becomes a no-op.
func finalize(fd *fileDescriptor) *os.File {
	f := os.NewFile(uintptr(fd.fd), "")
	fd.fd = invalidFD
	return f
}

func (e *endpoint) close() {
	if e.readSide != nil {
		e.readSide.Close()
	}
	if e.writeSide != nil && e.writeSide != e.readSide {
		e.writeSide.Close()
	}
}

// EndpointTable is a deduplicating registry mapping EndpointSpecs (by
// pointer identity, not path) to their opened Endpoint. Opening happens
// in a single pass once every ProcessSpec has registered its wiring.
type EndpointTable struct {
	entries map[*EndpointSpec]*endpoint
	order   []*endpoint
}

func newEndpointTable() *EndpointTable {
	return &EndpointTable{entries: make(map[*EndpointSpec]*endpoint)}
}

// wire registers that spec is wanted for reading and/or writing, folding
// the request into any existing entry for the same EndpointSpec pointer.
func (t *EndpointTable) wire(spec *EndpointSpec, wantRead, wantWrite bool) *endpoint {
	e, ok := t.entries[spec]
	if !ok {
		e = &endpoint{spec: spec}
		t.entries[spec] = e
		t.order = append(t.order, e)
	}
	e.wantRead = e.wantRead || wantRead
	e.wantWrite = e.wantWrite || wantWrite
	return e
}

func (t *EndpointTable) openAll() error {
	for _, e := range t.order {
		if err := e.open(); err != nil {
			return err
		}
	}
	return nil
}

func (t *EndpointTable) closeAll() {
	for _, e := range t.order {
		e.close()
	}
}

// fileFor returns the *os.File a ProcessSpec should hand os/exec.Cmd for
// the given EndpointSpec reference and direction, falling back to dflt
// when spec is nil (the ProcessSpec never wired that stream to
// anything). wantRead must match how this particular ProcessSpec wired
// the endpoint: a pipe EndpointSpec shared between a writer and a
// reader has both sides open at once, so the direction can't be
// inferred from the endpoint alone.
func (t *EndpointTable) fileFor(spec *EndpointSpec, wantRead bool, dflt *os.File) *os.File {
	if spec == nil {
		return dflt
	}
	e, ok := t.entries[spec]
	if !ok {
		return dflt
	}
	if wantRead {
		return e.readSide
	}
	return e.writeSide
}
