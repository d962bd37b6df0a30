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

// Package util is used for internal implementation bits in the CLI/UI.
package util

import (
	"fmt"
	"time"

	"github.com/upvisor/upvisor/rest"
)

// Condition summarizes a status for coloring.
type Condition int

const (
	Normal Condition = iota
	Good
	Warn
	Bad
)

func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int((d % time.Minute) / time.Second)
	min := int((d % time.Hour) / time.Minute)
	hour := int(d / time.Hour)

	return fmt.Sprintf("%d:%02d:%02d", hour, min, sec)
}

// Since formats the time elapsed from t to now, or "never" for a zero t.
func Since(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return FormatDuration(now.Sub(t)) + " ago"
}

func Summary(s *rest.StatusInfo) (string, Condition) {
	switch {
	case s.RollbackDue:
		return "rollback pending, application may be down", Bad
	case s.Pending():
		return "checking " + s.Candidate.Short(), Warn
	case s.LastError != "":
		return s.LastError, Warn
	case s.Current == "":
		return "waiting for first revision", Normal
	}
	return "running " + s.Current.Short(), Good
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Describe renders a status as aligned lines.
func Describe(s *rest.StatusInfo, now time.Time) []string {
	summary, _ := Summary(s)
	lines := []string{
		fmt.Sprintf("Name:        %s", orNone(s.Name)),
		fmt.Sprintf("Branch:      %s", orNone(s.Branch)),
		fmt.Sprintf("Strategy:    %s", orNone(s.Strategy)),
		fmt.Sprintf("State:       %s", s.State),
		fmt.Sprintf("Summary:     %s", summary),
		fmt.Sprintf("Current:     %s", orNone(string(s.Current))),
		fmt.Sprintf("Backup:      %s", orNone(string(s.Backup))),
	}
	if s.Candidate != "" {
		lines = append(lines, fmt.Sprintf("Candidate:   %s", s.Candidate))
	}
	if s.Pending() {
		lines = append(lines, fmt.Sprintf("Verdict in:  %s",
			FormatDuration(s.VerdictAt.Sub(now))))
	}
	lines = append(lines,
		fmt.Sprintf("Last check:  %s", Since(s.LastCheck, now)),
		fmt.Sprintf("Up:          %s", FormatDuration(now.Sub(s.Started))),
	)
	if s.LastError != "" {
		lines = append(lines, fmt.Sprintf("Last error:  %s", s.LastError))
	}
	for i, r := range s.Rejected {
		if i == 0 {
			lines = append(lines, fmt.Sprintf("Rejected:    %s", r))
		} else {
			lines = append(lines, fmt.Sprintf("             %s", r))
		}
	}
	for i, p := range s.SelfPaths {
		if i == 0 {
			lines = append(lines, fmt.Sprintf("Self paths:  %s", p))
		} else {
			lines = append(lines, fmt.Sprintf("             %s", p))
		}
	}
	return lines
}
