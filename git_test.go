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
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func gitCmd(t *testing.T, dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, e := cmd.CombinedOutput()
	if e != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), e, out)
	}
	return strings.TrimSpace(string(out))
}

func commitFiles(t *testing.T, dir string, files map[string]string) Revision {
	for name, body := range files {
		p := filepath.Join(dir, name)
		if e := os.MkdirAll(filepath.Dir(p), 0755); e != nil {
			t.Fatal(e)
		}
		if e := os.WriteFile(p, []byte(body), 0644); e != nil {
			t.Fatal(e)
		}
	}
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "-q", "-m", "change")
	return Revision(gitCmd(t, dir, "rev-parse", "HEAD"))
}

func TestGitSource(t *testing.T) {
	if _, e := exec.LookPath("git"); e != nil {
		t.Skip("git not installed")
	}
	ctx := context.Background()

	Convey("Given a clone of an upstream repository", t, func() {
		home := t.TempDir()
		t.Setenv("HOME", home)
		t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
		t.Setenv("GIT_AUTHOR_NAME", "Test")
		t.Setenv("GIT_AUTHOR_EMAIL", "test@example.com")
		t.Setenv("GIT_COMMITTER_NAME", "Test")
		t.Setenv("GIT_COMMITTER_EMAIL", "test@example.com")

		root := t.TempDir()
		bare := filepath.Join(root, "upstream.git")
		dev := filepath.Join(root, "dev")
		app := filepath.Join(root, "app")

		gitCmd(t, root, "init", "-q", "--bare", bare)
		gitCmd(t, root, "init", "-q", dev)
		gitCmd(t, dev, "checkout", "-q", "-b", "main")
		a := commitFiles(t, dev, map[string]string{"app.js": "v1", "upvisor.yaml": "x: 1"})
		gitCmd(t, dev, "remote", "add", "origin", bare)
		gitCmd(t, dev, "push", "-q", "origin", "main")
		gitCmd(t, root, "clone", "-q", "-b", "main", bare, app)

		g := NewGitSource(app, 30*time.Second, testLogger(t))

		Convey("The current revision is reported", func() {
			rev, e := g.CurrentRevision(ctx)
			So(e, ShouldBeNil)
			So(rev, ShouldEqual, a)
		})

		Convey("After an upstream change", func() {
			b := commitFiles(t, dev, map[string]string{
				"app.js":         "v2",
				"lib/util.js":    "new",
				"upvisor.yaml":   "x: 2",
				"docs/notes.txt": "hi",
			})
			gitCmd(t, dev, "push", "-q", "origin", "main")

			So(g.Pull(ctx, "main"), ShouldBeNil)
			rev, e := g.CurrentRevision(ctx)
			So(e, ShouldBeNil)
			So(rev, ShouldEqual, b)

			paths, e := g.ChangedPaths(ctx, a, b)
			So(e, ShouldBeNil)
			So(paths, ShouldResemble, []string{
				"app.js", "docs/notes.txt", "lib/util.js", "upvisor.yaml",
			})

			Convey("Reset goes back", func() {
				So(g.ResetHard(ctx, a), ShouldBeNil)
				rev, _ := g.CurrentRevision(ctx)
				So(rev, ShouldEqual, a)
				body, _ := os.ReadFile(filepath.Join(app, "app.js"))
				So(string(body), ShouldEqual, "v1")
			})
		})

		Convey("Pulling an unknown branch fails", func() {
			e := g.Pull(ctx, "no-such-branch")
			So(errors.Is(e, ErrPull), ShouldBeTrue)
		})

		Convey("Diffing an unknown revision fails", func() {
			_, e := g.ChangedPaths(ctx, a, "0000000000000000000000000000000000000000")
			So(errors.Is(e, ErrDiff), ShouldBeTrue)
			_, e = g.ChangedPaths(ctx, "", a)
			So(errors.Is(e, ErrDiff), ShouldBeTrue)
		})

		Convey("Resetting to nothing fails", func() {
			So(errors.Is(g.ResetHard(ctx, ""), ErrReset), ShouldBeTrue)
		})
	})

	Convey("A directory that is not a repository has no revision", t, func() {
		dir := t.TempDir()
		t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))
		g := NewGitSource(dir, 10*time.Second, testLogger(t))
		_, e := g.CurrentRevision(ctx)
		So(errors.Is(e, ErrRevision), ShouldBeTrue)
	})
}
