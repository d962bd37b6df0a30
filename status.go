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
	"time"
)

// State is where the update state machine currently is.  Only IDLE and
// AWAITING_VERDICT persist between polls; the others are transient and
// mostly of interest in log lines and status snapshots taken mid-cycle.
type State int

const (
	StateIdle State = iota
	StatePulling
	StateDiffing
	StateSkip
	StateRestarting
	StateAwaitingVerdict
	StateHealthy
	StateRollingBack
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StatePulling:         "pulling",
	StateDiffing:         "diffing",
	StateSkip:            "skip",
	StateRestarting:      "restarting",
	StateAwaitingVerdict: "awaiting-verdict",
	StateHealthy:         "healthy",
	StateRollingBack:     "rolling-back",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Status is a consistent snapshot of an Updater.  Serial changes every
// time anything in the snapshot does, so it can serve as an Etag.
type Status struct {
	Name        string     `json:"name"`
	Strategy    string     `json:"strategy"`
	Branch      string     `json:"branch"`
	State       string     `json:"state"`
	Current     Revision   `json:"current"`
	Backup      Revision   `json:"backup"`
	Candidate   Revision   `json:"candidate,omitempty"`
	VerdictAt   time.Time  `json:"verdictAt"`
	RollbackDue bool       `json:"rollbackDue"`
	LastCheck   time.Time  `json:"lastCheck"`
	LastError   string     `json:"lastError,omitempty"`
	Rejected    []Revision `json:"rejected,omitempty"`
	SelfPaths   []string   `json:"selfPaths,omitempty"`
	Started     time.Time  `json:"started"`
	Serial      int64      `json:"serial,string"`
}

// Pending reports whether a health verdict is outstanding.
func (s *Status) Pending() bool {
	return !s.VerdictAt.IsZero()
}
