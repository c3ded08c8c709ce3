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

// with-nsexec is a setuid helper: it builds a private mount namespace,
// populates a well-known mount point with caller-specified symlinks,
// drops privilege, and execs the real target command with a
// caller-supplied environment.
//
// It intentionally imports nothing beyond golang.org/x/sys/unix and the
// standard library. Everything upstream of this binary — the supervisor
// library, its config parsing, its logging — is untrusted input as far
// as this process is concerned; the smaller its own dependency graph,
// the smaller the audit surface of the only part of this repo that
// runs setuid.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

const defaultMountpoint = "/with"

func main() {
	progname := filepath.Base(os.Args[0])
	if len(os.Args) <= 1 {
		usage(progname)
		os.Exit(1)
	}

	mountpoint := os.Getenv("WITH_MOUNTPOINT")
	if mountpoint == "" {
		mountpoint = defaultMountpoint
	}

	if os.Args[1] == "--init.d" {
		if err := createSymlinksAndMetadata(progname, os.Args[1:], mountpoint); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	envArgs, nsArgs, execArgs, err := parseArgv(os.Args)
	if err != nil {
		usage(progname)
		os.Exit(1)
	}

	// Detach into a private mount namespace before touching the mount
	// point at all: every step below must apply only to this process's
	// view of the filesystem.
	if err := unix.Unshare(unix.CLONE_NEWNS); err != nil {
		fatalf(progname, "unshare failed: %v", err)
	}

	// MNT_DETACH tolerates a caller whose cwd sits inside the mount
	// point — a plain umount would fail as busy.
	if err := unix.Unmount(mountpoint, unix.MNT_DETACH); err != nil {
		fatalf(progname, "umount2 tmpfs %s failed: %v", mountpoint, err)
	}

	mountName := nsArgs[0]
	if err := unix.Mount(mountName, mountpoint, "tmpfs", 0, ""); err != nil {
		fatalf(progname, "mount tmpfs %s failed: %v", mountpoint, err)
	}

	if err := createSymlinksAndMetadata(progname, nsArgs, mountpoint); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := writeEnvMetadata(mountpoint, envArgs); err != nil {
		fatalf(progname, "unable to write env metadata: %v", err)
	}

	uid := unix.Getuid()
	gid := unix.Getgid()
	if err := unix.Setresgid(gid, gid, gid); err != nil {
		fatalf(progname, "setresuid/setresgid failed: %v", err)
	}
	if err := unix.Setresuid(uid, uid, uid); err != nil {
		fatalf(progname, "setresuid/setresgid failed: %v", err)
	}

	// execve takes an explicit envp, so unlike the clearenv+putenv dance
	// a caller of execvp would need, handing envArgs straight to Exec
	// is enough to install exactly the requested environment with
	// nothing of this process's own inherited environment leaking
	// through.
	if err := unix.Exec(execArgs[0], execArgs, envArgs); err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot exec %s: %v\n", progname, execArgs[0], err)
		os.Exit(1)
	}
}

func usage(progname string) {
	fmt.Fprintf(os.Stderr, "usage: %s cmd args... -- mount-name target1=src1 target2=src2 ... -- env\n"+
		"    This is a setuid helper for the with supervisor.\n"+
		"    For each target=src, makes a symlink mountpoint/target => src.\n",
		progname)
}

func fatalf(progname, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s: "+format+"\n", append([]interface{}{progname}, args...)...)
	os.Exit(1)
}

// parseArgv scans argv backwards for the two "--" separators: the tail
// becomes the environment, the middle section becomes the namespace
// list, and the head becomes the target command. Pushing to the front
// of each slice as it scans keeps every section in its original
// left-to-right order.
func parseArgv(argv []string) (envArgs, nsArgs, execArgs []string, err error) {
	i := len(argv) - 1
	for i > 0 && argv[i] != "--" {
		envArgs = append([]string{argv[i]}, envArgs...)
		i--
	}
	if i <= 0 {
		return nil, nil, nil, fmt.Errorf("missing namespace/environment -- separators")
	}
	i--

	for i > 0 && argv[i] != "--" {
		nsArgs = append([]string{argv[i]}, nsArgs...)
		i--
	}
	if len(nsArgs) == 0 {
		return nil, nil, nil, fmt.Errorf("missing mount-name argument")
	}
	if i <= 0 {
		return nil, nil, nil, fmt.Errorf("missing command/namespace -- separator")
	}
	i--

	for i > 0 {
		execArgs = append([]string{argv[i]}, execArgs...)
		i--
	}
	if len(execArgs) == 0 {
		return nil, nil, nil, fmt.Errorf("missing command")
	}
	return envArgs, nsArgs, execArgs, nil
}

// createSymlinksAndMetadata lays down a symlink at mountpoint/target for
// every target=src entry in nsArgs[1:], then writes nsArgs in its
// entirety (including the leading mount-name/--init.d token) to
// mountpoint/.ns, space-separated with a trailing space. It is shared
// between the --init.d path and the full privileged path, since both
// need exactly this behavior.
func createSymlinksAndMetadata(progname string, nsArgs []string, mountpoint string) error {
	for _, tok := range nsArgs[1:] {
		eq := strings.IndexByte(tok, '=')
		if eq < 0 || eq == len(tok)-1 {
			return fmt.Errorf("%s: argument %s must be of the form target=src", progname, tok)
		}
		target, source := tok[:eq], tok[eq+1:]

		mountPath := filepath.Join(mountpoint, target)
		if err := mkdirP(filepath.Dir(mountPath), 0755); err != nil {
			return fmt.Errorf("%s: create %s failed: %v", progname, filepath.Dir(mountPath), err)
		}
		if err := unix.Symlink(source, mountPath); err != nil {
			return fmt.Errorf("%s: symlink %s -> %s failed: %v", progname, mountPath, source, err)
		}
	}

	nsFile := filepath.Join(mountpoint, ".ns")
	var sb strings.Builder
	for _, tok := range nsArgs {
		sb.WriteString(tok)
		sb.WriteByte(' ')
	}
	if err := os.WriteFile(nsFile, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("%s: unable to write namespace metadata: %v (%s)", progname, err, nsFile)
	}
	return nil
}

func writeEnvMetadata(mountpoint string, envArgs []string) error {
	var sb strings.Builder
	for _, e := range envArgs {
		sb.WriteString(e)
		sb.WriteByte('\n')
	}
	return os.WriteFile(filepath.Join(mountpoint, ".env"), []byte(sb.String()), 0644)
}

// mkdirP creates dir and any missing parents, tolerating EEXIST at
// every level — two target=src entries sharing a parent directory must
// not fail the second one's mkdir.
func mkdirP(dir string, mode uint32) error {
	err := unix.Mkdir(dir, mode)
	if err == nil || err == unix.EEXIST {
		return nil
	}
	if err == unix.ENOENT {
		if parent := filepath.Dir(dir); parent != dir {
			if perr := mkdirP(parent, mode); perr != nil {
				return perr
			}
			return mkdirP(dir, mode)
		}
	}
	return err
}
