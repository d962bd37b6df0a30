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
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// GitSource is a RevisionSource backed by the git command line tool,
// operating on a working tree.
type GitSource struct {
	Remote string // remote to pull from, "origin" if empty
	Git    string // path of the git binary, "git" if empty

	r runner
}

// NewGitSource returns a GitSource operating on dir.  Each git invocation
// is limited to timeout.
func NewGitSource(dir string, timeout time.Duration, logger *log.Logger) *GitSource {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &GitSource{
		Remote: "origin",
		r:      runner{dir: dir, timeout: timeout, logger: logger},
	}
}

func (g *GitSource) git(ctx context.Context, args ...string) ([]byte, error) {
	bin := g.Git
	if bin == "" {
		bin = "git"
	}
	return g.r.run(ctx, append([]string{bin}, args...)...)
}

func (g *GitSource) CurrentRevision(ctx context.Context) (Revision, error) {
	out, e := g.git(ctx, "rev-parse", "HEAD")
	if e != nil {
		return "", fmt.Errorf("%w: %w", ErrRevision, e)
	}
	rev := strings.TrimSpace(string(out))
	if rev == "" {
		return "", ErrRevision
	}
	return Revision(rev), nil
}

func (g *GitSource) Pull(ctx context.Context, branch string) error {
	remote := g.Remote
	if remote == "" {
		remote = "origin"
	}
	out, e := g.git(ctx, "pull", "--no-rebase", "--no-edit", remote, branch)
	if e != nil {
		return fmt.Errorf("%w: %w", ErrPull, e)
	}
	if s := strings.TrimSpace(string(out)); s != "" && !strings.Contains(s, "Already up to date") {
		g.r.logger.Printf("Pulled %s/%s:\n%s", remote, branch, s)
	}
	return nil
}

func (g *GitSource) ChangedPaths(ctx context.Context, from, to Revision) ([]string, error) {
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: missing revision", ErrDiff)
	}
	out, e := g.git(ctx, "diff", "--name-only", "--no-renames", "-z", string(from), string(to))
	if e != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiff, e)
	}
	var paths []string
	for _, p := range bytes.Split(out, []byte{0}) {
		if len(p) != 0 {
			paths = append(paths, string(p))
		}
	}
	return paths, nil
}

func (g *GitSource) ResetHard(ctx context.Context, rev Revision) error {
	if rev == "" {
		return fmt.Errorf("%w: no revision to reset to", ErrReset)
	}
	if _, e := g.git(ctx, "reset", "--hard", string(rev)); e != nil {
		return fmt.Errorf("%w: %w", ErrReset, e)
	}
	g.r.logger.Printf("Reset checkout to %s", rev.Short())
	return nil
}
