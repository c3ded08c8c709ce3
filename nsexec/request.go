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

// Package nsexec builds the argv contract cmd/with-nsexec expects and
// execs into it. It is the non-privileged half of the namespace
// builder: everything here runs before privilege is ever touched, and
// none of it is trusted by the setuid helper on the other end.
package nsexec

import "fmt"

// SymlinkEntry is one target=src pair; Target is relative to the
// helper's mount point, Source is an absolute path on the host.
type SymlinkEntry struct {
	Target string
	Source string
}

// NamespaceRequest is everything the helper needs to build one private
// namespace: the tmpfs source label, the ordered symlink tree, and the
// environment to reinstall after it drops privileges.
type NamespaceRequest struct {
	MountName string
	Entries   []SymlinkEntry
	Env       []string
}

// NewNamespaceRequest returns a request for the given tmpfs source
// label (written verbatim into .ns as the first token).
func NewNamespaceRequest(mountName string) *NamespaceRequest {
	return &NamespaceRequest{MountName: mountName}
}

// AddSymlink appends a target=src entry, preserving call order — order
// is significant, since it is reproduced exactly in .ns and governs the
// order mkdir_p-style parent creation happens in.
func (r *NamespaceRequest) AddSymlink(target, source string) *NamespaceRequest {
	r.Entries = append(r.Entries, SymlinkEntry{Target: target, Source: source})
	return r
}

// WithEnv replaces Env with the given KEY=VALUE entries.
func (r *NamespaceRequest) WithEnv(env []string) *NamespaceRequest {
	r.Env = env
	return r
}

// nsArgs returns the middle, double-dash-delimited section of the
// helper's argv: the mount-name label followed by every target=src
// pair, in input order.
func (r *NamespaceRequest) nsArgs() ([]string, error) {
	if r.MountName == "" {
		return nil, fmt.Errorf("nsexec: mount name must not be empty")
	}
	args := make([]string, 0, len(r.Entries)+1)
	args = append(args, r.MountName)
	for _, e := range r.Entries {
		if e.Source == "" {
			return nil, fmt.Errorf("nsexec: target %q has an empty source", e.Target)
		}
		args = append(args, e.Target+"="+e.Source)
	}
	return args, nil
}
