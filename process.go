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

import "golang.org/x/sys/unix"

// ProcessSpec is the contract for one child in a pipeline. It is created
// unstarted, mutated into started (pid assigned) during fork, and
// mutated into finished (exited=true, status captured) during harvest.
//
// Invariants: Started() implies Pid() >= 0; Finished() implies Started();
// Running() is true iff Started() and not Finished(). Fields are kept
// private so the invariants can't be broken from outside the package.
type ProcessSpec struct {
	// Argv is the command and its arguments; must be non-empty.
	Argv []string

	// Stdin, Stdout, Stderr optionally reference EndpointSpecs shared
	// with other ProcessSpecs in the same PipelineSpec.
	Stdin  *EndpointSpec
	Stdout *EndpointSpec
	Stderr *EndpointSpec

	// ForwardSignals marks this process as a recipient of SIGTERM,
	// SIGINT, and SIGQUIT forwarded by the harvest loop.
	ForwardSignals bool

	pid     int
	exited  bool
	status  unix.WaitStatus
}

// NewProcessSpec returns an unstarted ProcessSpec for the given argv.
func NewProcessSpec(argv ...string) *ProcessSpec {
	return &ProcessSpec{Argv: argv, pid: -1}
}

// Pid returns the child's pid, or -1 if it has not been started.
func (p *ProcessSpec) Pid() int { return p.pid }

// Started reports whether the supervisor has forked this process.
func (p *ProcessSpec) Started() bool { return p.pid >= 0 }

// Finished reports whether the process has been reaped.
func (p *ProcessSpec) Finished() bool { return p.Started() && p.exited }

// Running reports whether the process has started but not yet finished.
func (p *ProcessSpec) Running() bool { return p.Started() && !p.exited }

// Status returns the raw wait status captured at reap time. Only valid
// once Finished() is true.
func (p *ProcessSpec) Status() unix.WaitStatus { return p.status }

func (p *ProcessSpec) resetStatus() {
	p.pid = -1
	p.exited = false
	p.status = 0
}

func (p *ProcessSpec) setStarted(pid int) {
	p.pid = pid
}

func (p *ProcessSpec) setFinished(status unix.WaitStatus) {
	p.exited = true
	p.status = status
}
