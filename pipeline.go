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

// PipelineSpec is an ordered sequence of ProcessSpecs that will be forked
// together, share a process group, and are harvested together. Fork
// order and process group leadership follow the order of Processes.
type PipelineSpec struct {
	// Processes is the ordered list of children to launch. Must be
	// non-empty.
	Processes []*ProcessSpec

	// LockFile, if non-empty, names a path that Execute acquires an
	// exclusive RunLock on before forking any process.
	LockFile string
}

// NewPipelineSpec returns a PipelineSpec with the given processes.
func NewPipelineSpec(processes ...*ProcessSpec) *PipelineSpec {
	return &PipelineSpec{Processes: processes}
}
