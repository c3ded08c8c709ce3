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

// Package nsconfig holds the handful of environment-driven settings a
// caller of nsexec.LaunchDefault needs: where the setuid helper is
// installed, and (for documentation/parity with that helper's own
// WITH_MOUNTPOINT lookup) where it will mount its tmpfs. cmd/with-nsexec
// itself deliberately does not import this package — see DESIGN.md —
// so Mountpoint here exists for callers that want to agree with the
// helper's default without hardcoding it twice, not because the helper
// reads it from here.
package nsconfig

import "github.com/caarlos0/env/v11"

// Config is parsed once by nsexec.LaunchDefault.
type Config struct {
	// Mountpoint is the well-known path the setuid helper remounts as a
	// private tmpfs before populating it with symlinks.
	Mountpoint string `env:"WITH_MOUNTPOINT" envDefault:"/with"`

	// HelperPath is the absolute path to the cmd/with-nsexec binary.
	HelperPath string `env:"WITH_NSEXEC_PATH" envDefault:"/usr/libexec/with-nsexec"`
}

// Load parses Config from the environment, applying the defaults above
// for anything unset.
func Load() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
