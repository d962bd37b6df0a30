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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// Handoff is what an instance exiting under StrategySpawnExit leaves
// behind for its successor: the revisions it believed in, and when the
// health verdict on the new code is due.
type Handoff struct {
	Current   Revision   `json:"current"`
	Backup    Revision   `json:"backup"`
	VerdictAt time.Time  `json:"verdictAt,omitempty"`
	Rejected  []Revision `json:"rejected,omitempty"`
	Written   time.Time  `json:"written"`
}

// WriteHandoff stores h at path, atomically.
func WriteHandoff(path string, h *Handoff) error {
	b, e := json.MarshalIndent(h, "", "  ")
	if e != nil {
		return e
	}
	tmp, e := os.CreateTemp(filepath.Dir(path), ".handoff-*")
	if e != nil {
		return e
	}
	if _, e = tmp.Write(b); e == nil {
		e = tmp.Sync()
	}
	if ce := tmp.Close(); e == nil {
		e = ce
	}
	if e == nil {
		e = os.Rename(tmp.Name(), path)
	}
	if e != nil {
		os.Remove(tmp.Name())
	}
	return e
}

// TakeHandoff reads and removes the record at path.  A missing file
// returns nil and no error.
func TakeHandoff(path string) (*Handoff, error) {
	b, e := os.ReadFile(path)
	if os.IsNotExist(e) {
		return nil, nil
	}
	if e != nil {
		return nil, e
	}
	os.Remove(path)
	h := &Handoff{}
	if e := json.Unmarshal(b, h); e != nil {
		return nil, fmt.Errorf("bad handoff record %s: %v", path, e)
	}
	return h, nil
}
