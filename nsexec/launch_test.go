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

package nsexec

import (
	"testing"
)

func TestNsArgsOrdersMountNameFirst(t *testing.T) {
	req := NewNamespaceRequest("nsA").
		AddSymlink("bin", "/usr/local/bin").
		AddSymlink("etc/app", "/opt/etc")

	args, err := req.nsArgs()
	if err != nil {
		t.Fatalf("nsArgs: %s", err)
	}
	want := []string{"nsA", "bin=/usr/local/bin", "etc/app=/opt/etc"}
	if !equalStrings(args, want) {
		t.Fatalf("nsArgs = %v, want %v", args, want)
	}
}

func TestNsArgsRejectsEmptyMountName(t *testing.T) {
	req := NewNamespaceRequest("")
	if _, err := req.nsArgs(); err == nil {
		t.Fatalf("expected an error for an empty mount name")
	}
}

func TestNsArgsRejectsEmptySource(t *testing.T) {
	req := NewNamespaceRequest("nsA").AddSymlink("bin", "")
	if _, err := req.nsArgs(); err == nil {
		t.Fatalf("expected an error for an empty source")
	}
}

func TestBuildArgvAssemblesDoubleDashSections(t *testing.T) {
	req := NewNamespaceRequest("nsA").
		AddSymlink("bin", "/usr/local/bin").
		WithEnv([]string{"PATH=/bin", "X=1"})

	argv, err := req.buildArgv("/usr/libexec/with-nsexec", []string{"/bin/true", "-x"})
	if err != nil {
		t.Fatalf("buildArgv: %s", err)
	}
	want := []string{
		"/usr/libexec/with-nsexec",
		"/bin/true", "-x",
		"--",
		"nsA", "bin=/usr/local/bin",
		"--",
		"PATH=/bin", "X=1",
	}
	if !equalStrings(argv, want) {
		t.Fatalf("buildArgv = %v, want %v", argv, want)
	}
}

func TestBuildArgvRejectsEmptyCmdArgv(t *testing.T) {
	req := NewNamespaceRequest("nsA")
	if _, err := req.buildArgv("/usr/libexec/with-nsexec", nil); err == nil {
		t.Fatalf("expected an error for an empty cmdArgv")
	}
}

func TestBuildArgvPropagatesNsArgsValidation(t *testing.T) {
	req := NewNamespaceRequest("")
	if _, err := req.buildArgv("/usr/libexec/with-nsexec", []string{"/bin/true"}); err == nil {
		t.Fatalf("expected buildArgv to surface nsArgs' validation error")
	}
}

func equalStrings(a, b []string) bool {
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
