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

//go:build !unix

package upvisor

import (
	"os"
	"os/exec"
)

func detach(cmd *exec.Cmd) {}

func terminate(p *os.Process) error {
	return p.Kill()
}

func kill(p *os.Process) error {
	return p.Kill()
}

func alive(pid int) bool {
	p, e := os.FindProcess(pid)
	if e != nil {
		return false
	}
	p.Release()
	return true
}

func adoptable(pid int) bool {
	return alive(pid)
}
