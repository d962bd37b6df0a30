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
	"context"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Revision identifies a point in time of the source tree, typically a
// commit hash.  Revisions are only ever compared for equality.  The empty
// Revision means unknown.
type Revision string

// Short returns an abbreviated form suitable for log lines.
func (r Revision) Short() string {
	if r == "" {
		return "(none)"
	}
	if len(r) > 10 {
		return string(r[:10])
	}
	return string(r)
}

// RevisionSource is what the updater needs from version control.  Every
// method may block on a subprocess, and is expected to honor the context
// deadline.
type RevisionSource interface {
	// CurrentRevision reports the revision currently checked out.
	CurrentRevision(ctx context.Context) (Revision, error)

	// Pull brings the checkout up to date with the upstream branch.
	Pull(ctx context.Context, branch string) error

	// ChangedPaths lists the paths, relative to the top of the tree,
	// that differ between two revisions.
	ChangedPaths(ctx context.Context, from, to Revision) ([]string, error)

	// ResetHard forces the checkout to the given revision.
	ResetHard(ctx context.Context, rev Revision) error
}

// UpdateCycle records a single poll that found a new revision.  It only
// lives for the duration of that poll.
type UpdateCycle struct {
	ID           string
	Previous     Revision
	Candidate    Revision
	ChangedPaths []string
}

func newCycle(prev, cand Revision) *UpdateCycle {
	return &UpdateCycle{
		ID:        uuid.NewString(),
		Previous:  prev,
		Candidate: cand,
	}
}

// Decision is the outcome of classifying an update.
type Decision int

const (
	Apply Decision = iota
	Skip
)

func (d Decision) String() string {
	if d == Skip {
		return "skip"
	}
	return "apply"
}

// SelfPaths is the set of paths that belong to the updater itself, as
// opposed to the application.  Entries are slash separated and relative to
// the top of the tree.  An entry ending in a slash names a directory, and
// covers everything below it; any other entry must match a path exactly.
type SelfPaths struct {
	files map[string]bool
	dirs  []string
}

func cleanPath(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	return p
}

// NewSelfPaths builds a SelfPaths from a list of entries.
func NewSelfPaths(entries []string) *SelfPaths {
	sp := &SelfPaths{files: make(map[string]bool)}
	for _, e := range entries {
		if strings.TrimSpace(e) == "" {
			continue
		}
		isDir := strings.HasSuffix(e, "/")
		p := cleanPath(e)
		if isDir {
			if p == "" {
				// "/" would claim the whole tree
				continue
			}
			sp.dirs = append(sp.dirs, p+"/")
		} else if p != "" {
			sp.files[p] = true
		}
	}
	sort.Strings(sp.dirs)
	return sp
}

// Contains reports whether p belongs to the updater.
func (sp *SelfPaths) Contains(p string) bool {
	if sp == nil {
		return false
	}
	p = cleanPath(p)
	if sp.files[p] {
		return true
	}
	for _, d := range sp.dirs {
		if strings.HasPrefix(p, d) {
			return true
		}
	}
	return false
}

// Classify decides whether a set of changed paths warrants restarting the
// application.  It is a Skip only if every path belongs to the updater,
// which includes the case of no paths at all.
func (sp *SelfPaths) Classify(changed []string) Decision {
	for _, p := range changed {
		if !sp.Contains(p) {
			return Apply
		}
	}
	return Skip
}

// Entries returns the configured entries, for display.
func (sp *SelfPaths) Entries() []string {
	if sp == nil {
		return nil
	}
	rv := make([]string, 0, len(sp.files)+len(sp.dirs))
	for f := range sp.files {
		rv = append(rv, f)
	}
	rv = append(rv, sp.dirs...)
	sort.Strings(rv)
	return rv
}
