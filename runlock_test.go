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

// +build linux

package with

import (
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"testing"
)

func TestRunLockWritesPid(t *testing.T) {
	dir, err := ioutil.TempDir("", "with-runlock-")
	if err != nil {
		t.Fatalf("TempDir: %s", err)
	}
	defer os.RemoveAll(dir)
	path := dir + "/lock"

	lock, err := OpenRunLock(path)
	if err != nil {
		t.Fatalf("OpenRunLock: %s", err)
	}

	contents, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %s", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		t.Fatalf("lock file contents not a pid: %q", contents)
	}
	if pid != os.Getpid() {
		t.Errorf("expected pid %d, got %d", os.Getpid(), pid)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %s", err)
	}

	contents, err = ioutil.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile after Release: %s", err)
	}
	if len(contents) != 0 {
		t.Errorf("expected an empty lock file after Release, got %q", contents)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Release must not unlink the lock file: %s", err)
	}
}

func TestRunLockCollision(t *testing.T) {
	dir, err := ioutil.TempDir("", "with-runlock-")
	if err != nil {
		t.Fatalf("TempDir: %s", err)
	}
	defer os.RemoveAll(dir)
	path := dir + "/lock"

	first, err := OpenRunLock(path)
	if err != nil {
		t.Fatalf("OpenRunLock (first): %s", err)
	}
	defer first.Release()

	_, err = OpenRunLock(path)
	if err == nil {
		t.Fatalf("expected the second OpenRunLock to fail while the first is held")
	}
	werr, ok := err.(*Error)
	if !ok || werr.Kind != AlreadyRunning {
		t.Fatalf("expected AlreadyRunning, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %s", err)
	}

	second, err := OpenRunLock(path)
	if err != nil {
		t.Fatalf("OpenRunLock after Release should succeed: %s", err)
	}
	second.Release()
}
