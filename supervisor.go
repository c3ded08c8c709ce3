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
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// ProcessSupervisor forks, wires, and reaps the processes of a
// PipelineSpec. A single ProcessSupervisor may run Execute more than
// once; each call is independent.
type ProcessSupervisor struct {
	Logger *slog.Logger
}

// NewProcessSupervisor returns a ProcessSupervisor. A nil logger falls
// back to slog.Default().
func NewProcessSupervisor(logger *slog.Logger) *ProcessSupervisor {
	return &ProcessSupervisor{Logger: logger}
}

func (s *ProcessSupervisor) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Execute runs spec's processes to completion. It acquires spec's
// RunLock (if any) before forking anything, forks every process into a
// single shared process group in Processes order, and blocks until all
// of them have exited. The first error encountered — a lock collision,
// an endpoint that failed to open, or a child that failed to exec — is
// returned; children that were already forked are still reaped before
// Execute returns.
func (s *ProcessSupervisor) Execute(spec *PipelineSpec) error {
	if len(spec.Processes) == 0 {
		return badSpec("Execute", "pipeline has no processes")
	}
	for i, p := range spec.Processes {
		if len(p.Argv) == 0 {
			return badSpec("Execute", "process %d has an empty argv", i)
		}
	}

	id := uuid.NewString()
	logger := s.logger().With("pipeline_id", id)

	gate, err := NewSignalGate()
	if err != nil {
		return err
	}
	defer gate.Close()

	var lock *RunLock
	if spec.LockFile != "" {
		lock, err = OpenRunLock(spec.LockFile)
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("failed to release run lock", "path", spec.LockFile, "error", err)
			}
		}()
	}

	table := newEndpointTable()
	for _, p := range spec.Processes {
		if p.Stdin != nil {
			table.wire(p.Stdin, true, false)
		}
		if p.Stdout != nil {
			table.wire(p.Stdout, false, true)
		}
		if p.Stderr != nil {
			table.wire(p.Stderr, false, true)
		}
	}
	if err := table.openAll(); err != nil {
		table.closeAll()
		return err
	}

	h := &harvester{processes: spec.Processes, gate: gate, logger: logger}

	pgid := 0
	for _, p := range spec.Processes {
		pid, err := safeForkExec(p, table, pgid)
		if err != nil {
			table.closeAll()
			h.teardown()
			return err
		}
		p.setStarted(pid)
		if pgid == 0 {
			pgid = pid
		}
		logger.Info("forked process", "argv", p.Argv, "pid", pid, "pgid", pgid)
	}

	// Every child now holds its own copy of any pipe endpoint it needs.
	// The supervisor's copies must close now, not at the end of
	// Execute, or a reader sitting on the other end of a pipe will never
	// see EOF once the real writer exits: the supervisor's lingering
	// write-side descriptor keeps the pipe open behind it.
	table.closeAll()

	if err := h.run(); err != nil {
		logger.Error("pipeline failed", "error", err)
		return err
	}
	return nil
}

// safeForkExec forks one child of spec and execs its argv, reusing
// os/exec.Cmd.Start rather than a hand-rolled fork(2)/exec(2) pair:
// Cmd.Start already runs the target through the same close-on-exec
// error pipe this supervisor would otherwise have to build by hand, and
// it reaps the child itself if the exec fails, so no zombie is ever
// left behind by a bad argv. pgid of 0 makes the child the leader of a
// new process group (pgid becomes its own pid); any other value joins
// the child to that existing group.
func safeForkExec(p *ProcessSpec, table *EndpointTable, pgid int) (int, error) {
	cmd := exec.Command(p.Argv[0], p.Argv[1:]...)
	cmd.Stdin = table.fileFor(p.Stdin, true, os.Stdin)
	cmd.Stdout = table.fileFor(p.Stdout, false, os.Stdout)
	cmd.Stderr = table.fileFor(p.Stderr, false, os.Stderr)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: pgid}

	if err := cmd.Start(); err != nil {
		return -1, childExecFailed("execvp", fmt.Sprintf("execvp %s: %v", p.Argv[0], err))
	}
	return cmd.Process.Pid, nil
}

// harvester is the reap loop shared by a successful Execute and by the
// teardown path of a failed one. It alternates a non-blocking waitpid
// scan over every still-running process with a single receive from the
// gated signal channel, the Go equivalent of the sigwait(2)-driven loop
// this supervisor is modeled on: SIGCHLD means "scan again", SIGTERM,
// SIGINT, and SIGQUIT are forwarded to every running process marked
// ForwardSignals, and SIGHUP/SIGPIPE/anything else are dropped.
type harvester struct {
	processes []*ProcessSpec
	gate      *SignalGate
	logger    *slog.Logger
}

func (h *harvester) run() error {
	for {
		anyRunning, err := h.reapOnce()
		if err != nil {
			return err
		}
		if !anyRunning {
			return nil
		}

		sig := <-h.gate.Signals()
		switch sig {
		case unix.SIGTERM, unix.SIGINT, unix.SIGQUIT:
			h.forward(sig)
		case unix.SIGCHLD:
			// loop around to reapOnce.
		default:
			// SIGHUP, SIGPIPE, and anything else gated but unhandled.
		}
	}
}

// reapOnce performs one non-blocking waitpid pass over every process
// that is still marked running. It reports whether any process remains
// running afterward.
func (h *harvester) reapOnce() (bool, error) {
	anyRunning := false
	for _, p := range h.processes {
		if !p.Running() {
			continue
		}
		var status unix.WaitStatus
		pid, err := unix.Wait4(p.Pid(), &status, unix.WNOHANG, nil)
		if err != nil && err != unix.EINTR {
			return false, syscallErr(fmt.Sprintf("wait4 %d", p.Pid()), err)
		}
		if pid == p.Pid() {
			p.setFinished(status)
			h.logger.Info("process exited", "argv", p.Argv, "pid", p.Pid(), "status", int(status))
		} else {
			anyRunning = true
		}
	}
	return anyRunning, nil
}

// forward sends sig to every running process that opted into it.
func (h *harvester) forward(sig os.Signal) {
	s, ok := sig.(unix.Signal)
	if !ok {
		return
	}
	for _, p := range h.processes {
		if p.Running() && p.ForwardSignals {
			if err := unix.Kill(p.Pid(), s); err != nil {
				h.logger.Warn("failed to forward signal", "pid", p.Pid(), "signal", s, "error", err)
			}
		}
	}
}

// teardown performs a best-effort blocking reap of every process still
// marked running. It is used on the error path out of Execute, after
// some processes in the pipeline forked successfully but a later one
// failed to exec: those survivors must not be left as zombies, but
// there is no longer a pipeline result worth returning for them, so
// every error here is logged and swallowed.
func (h *harvester) teardown() {
	h.forward(unix.SIGTERM)
	for _, p := range h.processes {
		if !p.Running() {
			continue
		}
		var status unix.WaitStatus
		_, err := unix.Wait4(p.Pid(), &status, 0, nil)
		if err != nil {
			h.logger.Warn("failed to reap process during teardown", "pid", p.Pid(), "error", err)
			continue
		}
		p.setFinished(status)
	}
}
