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
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// TryErrorWrite hands input to a one-shot helper process's stdin — a
// log shipper, an alert webhook script, anything that can fail in its
// own interesting ways — and falls back to writing input straight to
// this process's stderr if launching the helper fails, the write to it
// fails, or the helper exits non-zero. It never returns an error: by
// construction, input always ends up somewhere.
//
// The write side of the pipe is non-blocking and written to with a
// single unix.Write rather than the retrying writeAll: a helper that
// isn't draining its stdin fast enough should be treated the same as a
// helper that's missing entirely, not blocked on indefinitely.
func TryErrorWrite(argv []string, input string) {
	if len(argv) == 0 {
		writeN(os.Stderr, input)
		return
	}

	gate, err := NewSignalGate()
	if err != nil {
		writeN(os.Stderr, input)
		return
	}
	defer gate.Close()

	if err := sideChannelAttempt(argv, input); err != nil {
		writeN(os.Stderr, input)
	}
}

// sideChannelAttempt runs the helper and reports why input was not
// fully handed off to it and confirmed successful, if it wasn't.
func sideChannelAttempt(argv []string, input string) error {
	r, w, err := makePipe(true)
	if err != nil {
		return syscallErr("pipe2", err)
	}

	readSide := finalize(r)
	writeSide := finalize(w)
	defer writeSide.Close()

	if err := unix.SetNonblock(int(writeSide.Fd()), true); err != nil {
		readSide.Close()
		return syscallErr("fcntl", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = readSide
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		readSide.Close()
		return syscallErr("start", err)
	}
	readSide.Close()

	if _, err := unix.Write(int(writeSide.Fd()), []byte(input)); err != nil {
		// Close the write side first so the helper sees EOF instead of
		// waiting on more input while we wait on it.
		writeSide.Close()
		unix.Wait4(cmd.Process.Pid, nil, 0, nil)
		return syscallErr("write", err)
	}
	writeSide.Close()

	var status unix.WaitStatus
	if _, err := unix.Wait4(cmd.Process.Pid, &status, 0, nil); err != nil {
		return syscallErr("wait4", err)
	}
	if !status.Exited() || status.ExitStatus() != 0 {
		return pipelineFailed("try_error_write", fmt.Sprintf("proc failed: %v", status))
	}
	return nil
}

func writeN(f *os.File, s string) {
	buf := []byte(s)
	written := 0
	for written < len(buf) {
		n, err := f.Write(buf[written:])
		if n > 0 {
			written += n
		}
		if err != nil {
			return
		}
		if n == 0 {
			return
		}
	}
}
