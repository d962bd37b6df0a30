// Copyright 2026 The Upvisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build unix

package upvisor

import (
	"os"
	"os/exec"
	"syscall"
)

// detach puts the child in its own session, so that it outlives us and
// does not receive signals aimed at our process group.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

func terminate(p *os.Process) error {
	// The child leads its own process group; take its children too.
	if e := syscall.Kill(-p.Pid, syscall.SIGTERM); e == nil {
		return nil
	}
	return p.Signal(syscall.SIGTERM)
}

func kill(p *os.Process) error {
	if e := syscall.Kill(-p.Pid, syscall.SIGKILL); e == nil {
		return nil
	}
	return p.Kill()
}

func alive(pid int) bool {
	e := syscall.Kill(pid, 0)
	return e == nil || e == syscall.EPERM
}

// adoptable reports whether pid looks like an application we spawned: it
// is running and leads its own process group, as detach arranges.
func adoptable(pid int) bool {
	pgid, e := syscall.Getpgid(pid)
	return e == nil && pgid == pid
}
