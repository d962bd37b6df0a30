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
	"strconv"
	"strings"
	"time"
)

const (
	DefaultHealthTimeout = 20 * time.Second
)

// HealthChecker judges whether the application is alive.
type HealthChecker interface {
	// Check returns nil if the application is healthy, and otherwise an
	// error describing why not.
	Check() error
}

// LivenessMonitor reads the heartbeat file that the application rewrites
// periodically.  The file holds a decimal timestamp in milliseconds since
// the Unix epoch.  The application is healthy while that timestamp is less
// than Timeout old.
type LivenessMonitor struct {
	Path    string
	Timeout time.Duration

	now func() time.Time
}

func NewLivenessMonitor(path string, timeout time.Duration) *LivenessMonitor {
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	return &LivenessMonitor{Path: path, Timeout: timeout, now: time.Now}
}

// ParseHeartbeat parses heartbeat file content.
func ParseHeartbeat(b []byte) (time.Time, error) {
	ms, e := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if e != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrHealthRead, e)
	}
	return time.UnixMilli(ms), nil
}

// LastBeat returns the time recorded in the heartbeat file.
func (m *LivenessMonitor) LastBeat() (time.Time, error) {
	b, e := os.ReadFile(m.Path)
	if e != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrHealthRead, e)
	}
	return ParseHeartbeat(b)
}

func (m *LivenessMonitor) Check() error {
	beat, e := m.LastBeat()
	if e != nil {
		return e
	}
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	if age := now().Sub(beat); age >= m.Timeout {
		return fmt.Errorf("%w: last beat %v ago", ErrUnhealthy, age.Truncate(time.Millisecond))
	}
	return nil
}

// IsHealthy reports whether the heartbeat is present, readable and fresh.
func (m *LivenessMonitor) IsHealthy() bool {
	return m.Check() == nil
}
