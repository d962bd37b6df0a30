// Copyright 2015 The Govisor Authors
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

package upvisor

import (
	"errors"
)

var (
	ErrPull            = errors.New("Pull failed")
	ErrDiff            = errors.New("Diff failed")
	ErrReset           = errors.New("Reset failed")
	ErrRevision        = errors.New("Cannot determine revision")
	ErrRestart         = errors.New("Restart failed")
	ErrSpawn           = errors.New("Spawn failed")
	ErrHealthRead      = errors.New("Heartbeat unreadable")
	ErrUnhealthy       = errors.New("Heartbeat is stale")
	ErrVerdictPending  = errors.New("Health verdict already pending")
	ErrTimeout         = errors.New("Command timed out")
	ErrUnknownStrategy = errors.New("Unknown restart strategy")
	ErrNoCommand       = errors.New("No command configured")
)
