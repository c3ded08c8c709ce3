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
	"os/signal"

	"golang.org/x/sys/unix"
)

// gatedSignals is the fixed set of signals a SignalGate reacts to.
var gatedSignals = []os.Signal{
	unix.SIGCHLD,
	unix.SIGHUP,
	unix.SIGTERM,
	unix.SIGINT,
	unix.SIGQUIT,
	unix.SIGPIPE,
}

// SignalGate gates the fixed terminal/child signal set for as long as it
// is held: SIGHUP is ignored outright, and the rest are captured into a
// channel instead of being left to run their default disposition (which
// would otherwise kill the supervisor on SIGPIPE, SIGTERM, SIGINT, or
// SIGQUIT).
//
// A real sigprocmask-based block followed by a blocking sigwait(2), as a
// C supervisor would use, cannot be expressed faithfully in Go: the
// runtime installs its own signal handler ahead of any goroutine and
// multiplexes caught signals out through os/signal channels regardless
// of any per-thread mask a goroutine might set. signal.Notify's channel
// is the idiomatic replacement — the harvest loop still treats a single
// receive from it as one atomic "wait for the next signal" step, which
// preserves the property that matters: no two gated signals are ever
// processed out of order or interleaved with the waitpid scan.
//
// SIGHUP's disposition is set via signal.Ignore rather than Notify,
// because SIG_IGN (unlike a caught-and-forwarded signal) survives
// exec(2) in any forked child, which is exactly the "SIGHUP remains
// ignored, inherited by children" behavior the supervisor needs without
// any child-side code running between fork and exec.
type SignalGate struct {
	ch chan os.Signal
}

// NewSignalGate installs the gate.
func NewSignalGate() (*SignalGate, error) {
	g := &SignalGate{ch: make(chan os.Signal, len(gatedSignals))}
	signal.Ignore(unix.SIGHUP)
	// Notify on SIGHUP would undo the Ignore above, so it is left out.
	for _, s := range gatedSignals {
		if s != unix.SIGHUP {
			signal.Notify(g.ch, s)
		}
	}
	return g, nil
}

// Signals returns the channel that delivers gated signals one at a time,
// in the order received. The harvest loop treats a single receive from
// this channel as the equivalent of one sigwait(2) call.
func (g *SignalGate) Signals() <-chan os.Signal { return g.ch }

// Close stops delivering gated signals to the channel and restores
// SIGHUP to its default disposition. Errors are never returned: signal.Stop
// and signal.Reset cannot fail, matching the spec's requirement that
// teardown never raises over an in-flight error.
func (g *SignalGate) Close() {
	signal.Stop(g.ch)
	signal.Reset(unix.SIGHUP)
}
