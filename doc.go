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

// Package with launches a pipeline of child processes sharing a set of
// stdio endpoints (pipes, files, or inherited descriptors), wires them
// into a single process group, and harvests every child deterministically.
//
// NAME SPACES
//
// The sibling nsexec package replaces the calling process with a command
// running inside a freshly built mount namespace populated with a
// caller-specified tree of symlinks. ProcessSupervisor does not use it:
// pipeline children are exec'd directly. The namespace itself is built by
// a separate setuid helper binary (cmd/with-nsexec) rather than by this
// package directly, since privilege separation keeps the attack surface
// of the setuid code to a minimum.
//
// SIGNAL HANDLING
//
// While a pipeline is running, SIGCHLD, SIGHUP, SIGTERM, SIGINT, SIGQUIT,
// and SIGPIPE are gated through a SignalGate so that the harvest loop can
// treat every signal as a discrete, serialized event rather than letting
// SIGPIPE kill the supervisor or SIGCHLD race the waitpid scan.
//
// RUN LOCKING
//
// Execute optionally takes an exclusive advisory lock on a caller-supplied
// path for the duration of the pipeline, so a second overlapping
// invocation fails fast instead of racing the first.
//
// PARTIAL FAILURE
//
// The lock and every endpoint are opened before any child is forked. If a
// child fails to exec after earlier children were already forked, Execute
// sends SIGTERM to those earlier children that set ForwardSignals, waits
// for every one of them to exit, and returns only the exec error.
package with
