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
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/athenacr/with.namespace/nsconfig"
)

// WithCurrentEnv sets Env to the calling process's own environment —
// the common case for a caller that just wants its environment handed
// through the privilege boundary untouched. Use WithEnv instead to pass
// a curated list.
func (r *NamespaceRequest) WithCurrentEnv() *NamespaceRequest {
	r.Env = os.Environ()
	return r
}

// Launch execve's helperPath, replacing the calling process's image
// with cmdArgv run inside the namespace req describes. On success it
// never returns; on failure — req is malformed, or the exec itself
// failed — it returns the error and the caller's process image is
// unchanged.
//
// Launch passes an empty environment to execve: helperPath is expected to be a setuid
// binary, and setuid binaries should never be handed an environment
// they didn't ask for. req.Env is instead threaded through as trailing
// argv tokens, which the helper reinstalls once it has dropped
// privilege.
func Launch(ctx context.Context, req *NamespaceRequest, helperPath string, cmdArgv []string) error {
	argv, err := req.buildArgv(helperPath, cmdArgv)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return unix.Exec(helperPath, argv, []string{})
}

// LaunchDefault is Launch using nsconfig's HelperPath instead of
// requiring the caller to know where cmd/with-nsexec is installed —
// the entry point for a caller that just wants the environment's
// WITH_NSEXEC_PATH (or its compiled-in default) honored.
func LaunchDefault(ctx context.Context, req *NamespaceRequest, cmdArgv []string) error {
	cfg, err := nsconfig.Load()
	if err != nil {
		return err
	}
	return Launch(ctx, req, cfg.HelperPath, cmdArgv)
}

// buildArgv assembles the argv Launch hands to execve: helperPath,
// cmdArgv, "--", the mount-name/target=src section, "--", then req.Env.
func (r *NamespaceRequest) buildArgv(helperPath string, cmdArgv []string) ([]string, error) {
	if len(cmdArgv) == 0 {
		return nil, fmt.Errorf("nsexec: cmdArgv must not be empty")
	}
	nsArgs, err := r.nsArgs()
	if err != nil {
		return nil, err
	}

	argv := make([]string, 0, 1+len(cmdArgv)+1+len(nsArgs)+1+len(r.Env))
	argv = append(argv, helperPath)
	argv = append(argv, cmdArgv...)
	argv = append(argv, "--")
	argv = append(argv, nsArgs...)
	argv = append(argv, "--")
	argv = append(argv, r.Env...)
	return argv, nil
}
