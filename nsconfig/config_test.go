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

package nsconfig

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("WITH_MOUNTPOINT")
	os.Unsetenv("WITH_NSEXEC_PATH")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if cfg.Mountpoint != "/with" {
		t.Errorf("Mountpoint = %q, want /with", cfg.Mountpoint)
	}
	if cfg.HelperPath != "/usr/libexec/with-nsexec" {
		t.Errorf("HelperPath = %q, want /usr/libexec/with-nsexec", cfg.HelperPath)
	}
}

func TestLoadHonorsEnvOverrides(t *testing.T) {
	os.Setenv("WITH_MOUNTPOINT", "/tmp/with-test")
	os.Setenv("WITH_NSEXEC_PATH", "/opt/bin/with-nsexec")
	defer os.Unsetenv("WITH_MOUNTPOINT")
	defer os.Unsetenv("WITH_NSEXEC_PATH")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if cfg.Mountpoint != "/tmp/with-test" {
		t.Errorf("Mountpoint = %q, want /tmp/with-test", cfg.Mountpoint)
	}
	if cfg.HelperPath != "/opt/bin/with-nsexec" {
		t.Errorf("HelperPath = %q, want /opt/bin/with-nsexec", cfg.HelperPath)
	}
}
