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

package main

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestMkdirPCreatesMissingParents(t *testing.T) {
	dir, err := ioutil.TempDir("", "with-mkdirp-")
	if err != nil {
		t.Fatalf("TempDir: %s", err)
	}
	defer os.RemoveAll(dir)

	target := filepath.Join(dir, "a", "b", "c")
	if err := mkdirP(target, 0755); err != nil {
		t.Fatalf("mkdirP: %s", err)
	}
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		t.Fatalf("expected %s to be a directory", target)
	}
}

func TestMkdirPTwoChildrenSharingParentDoNotCollide(t *testing.T) {
	dir, err := ioutil.TempDir("", "with-mkdirp-")
	if err != nil {
		t.Fatalf("TempDir: %s", err)
	}
	defer os.RemoveAll(dir)

	// bin/a=... and bin/b=... both need mkdirP(dir/bin), so the second
	// call must tolerate EEXIST instead of failing the whole run.
	first := filepath.Join(dir, "bin")
	if err := mkdirP(first, 0755); err != nil {
		t.Fatalf("first mkdirP: %s", err)
	}
	if err := mkdirP(first, 0755); err != nil {
		t.Fatalf("second mkdirP on the same shared parent failed: %s", err)
	}
}

func TestMkdirPExistingDirIsNotAnError(t *testing.T) {
	dir, err := ioutil.TempDir("", "with-mkdirp-")
	if err != nil {
		t.Fatalf("TempDir: %s", err)
	}
	defer os.RemoveAll(dir)

	if err := mkdirP(dir, 0755); err != nil {
		t.Fatalf("mkdirP on a pre-existing directory should be a no-op, got: %s", err)
	}
}

func TestParseArgvSplitsThreeSections(t *testing.T) {
	envArgs, nsArgs, execArgs, err := parseArgv([]string{
		"with-nsexec",
		"/bin/foo", "arg1",
		"--",
		"mnt", "bin=/x",
		"--",
		"PATH=/bin", "X=1",
	})
	if err != nil {
		t.Fatalf("parseArgv: %s", err)
	}
	if want := []string{"/bin/foo", "arg1"}; !equalSlices(execArgs, want) {
		t.Errorf("execArgs = %v, want %v", execArgs, want)
	}
	if want := []string{"mnt", "bin=/x"}; !equalSlices(nsArgs, want) {
		t.Errorf("nsArgs = %v, want %v", nsArgs, want)
	}
	if want := []string{"PATH=/bin", "X=1"}; !equalSlices(envArgs, want) {
		t.Errorf("envArgs = %v, want %v", envArgs, want)
	}
}

func TestParseArgvMissingSeparatorsIsAnError(t *testing.T) {
	if _, _, _, err := parseArgv([]string{"with-nsexec", "/bin/foo"}); err == nil {
		t.Fatalf("expected an error when both -- separators are missing")
	}
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
