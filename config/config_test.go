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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/upvisor/upvisor"
)

func writeFile(t *testing.T, dir, name, body string) string {
	p := filepath.Join(dir, name)
	if e := os.WriteFile(p, []byte(body), 0644); e != nil {
		t.Fatalf("write %s: %v", p, e)
	}
	return p
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, e := os.Getwd()
	if e != nil {
		t.Fatalf("getwd: %v", e)
	}
	if e := os.Chdir(dir); e != nil {
		t.Fatalf("chdir %s: %v", dir, e)
	}
	t.Setenv("PWD", dir)
	t.Cleanup(func() {
		if e := os.Chdir(old); e != nil {
			t.Fatalf("chdir %s: %v", old, e)
		}
	})
}

func TestDefaults(t *testing.T) {
	Convey("Without a manifest the defaults apply", t, func() {
		dir := t.TempDir()
		chdir(t, dir)
		c, e := Load("")
		So(e, ShouldBeNil)
		So(c.File, ShouldEqual, "")
		So(c.Updater.WatchBranch, ShouldEqual, "main")
		So(c.Updater.Interval(), ShouldEqual, 10*time.Second)
		So(c.Updater.Grace(), ShouldEqual, 20*time.Second)
		So(c.Updater.HealthTTL(), ShouldEqual, 20*time.Second)
		So(c.Updater.MainFile, ShouldEqual, "app.js")
		So(c.Updater.HealthFile, ShouldEqual, ".alive")
		So(c.Command(), ShouldResemble, []string{"node", "app.js"})
		So(c.Name, ShouldEqual, filepath.Base(c.Updater.Dir))
		So(c.SupervisorName(), ShouldEqual, c.Name)
		So(c.Updater.PidFile, ShouldEqual, upvisor.DefaultPidFile)
		So(c.Updater.StopAppOnExit, ShouldBeTrue)
		_, _, ok := c.Updater.Credentials()
		So(ok, ShouldBeFalse)
	})
}

func TestPackageJSON(t *testing.T) {
	Convey("Given a package.json with a selfUpdater section", t, func() {
		dir := t.TempDir()
		chdir(t, dir)
		writeFile(t, dir, "package.json", `{
  "name": "shop",
  "version": "1.2.3",
  "scripts": {"start": "node server.js"},
  "selfUpdater": {
    "type": "pm2",
    "watchBranch": "production",
    "checkInterval": 5000,
    "mainFile": "server.js",
    "healthFile": "run/.alive",
    "selfPaths": ["self-updater.js", "tools/updater/"]
  }
}`)
		c, e := Load("")
		So(e, ShouldBeNil)
		So(filepath.Base(c.File), ShouldEqual, "package.json")

		Convey("The section is applied over the defaults", func() {
			So(c.Name, ShouldEqual, "shop")
			So(c.SupervisorName(), ShouldEqual, "shop")
			So(c.Updater.WatchBranch, ShouldEqual, "production")
			So(c.Updater.Interval(), ShouldEqual, 5*time.Second)
			So(c.Updater.Remote, ShouldEqual, "origin")
			So(c.Path(c.Updater.HealthFile), ShouldEqual, filepath.Join(c.Updater.Dir, "run/.alive"))
			So(c.Updater.SelfPaths, ShouldResemble, []string{"self-updater.js", "tools/updater/"})
			So(c.Command(), ShouldResemble, []string{"node", "server.js"})
		})

		Convey("The strategy comes from the manifest", func() {
			s, e := c.Strategy(func(string) (string, bool) { return "", false })
			So(e, ShouldBeNil)
			So(s, ShouldEqual, upvisor.StrategySupervisor)
		})

		Convey("pm2Name overrides the package name", func() {
			c.Updater.PM2Name = "shop-web"
			So(c.SupervisorName(), ShouldEqual, "shop-web")
			c.Updater.SupervisorName = "shop-api"
			So(c.SupervisorName(), ShouldEqual, "shop-api")
		})
	})
}

func TestYAMLAndEnv(t *testing.T) {
	Convey("Given an upvisor.yaml", t, func() {
		dir := t.TempDir()
		p := writeFile(t, dir, "upvisor.yaml", `
name: worker
selfUpdater:
  type: spawn
  command: ["./bin/worker", "-v"]
  graceWindow: 30000
  healthTimeout: 15000
`)
		Convey("It loads", func() {
			c, e := Load(p)
			So(e, ShouldBeNil)
			So(c.Name, ShouldEqual, "worker")
			So(c.Updater.Dir, ShouldEqual, dir)
			So(c.Updater.Grace(), ShouldEqual, 30*time.Second)
			So(c.Updater.HealthTTL(), ShouldEqual, 15*time.Second)
			So(c.Command(), ShouldResemble, []string{"./bin/worker", "-v"})
			s, e := c.Strategy(nil)
			So(e, ShouldBeNil)
			So(s, ShouldEqual, upvisor.StrategySpawnObserve)
		})

		Convey("Environment variables win", func() {
			t.Setenv("UPVISOR_WATCH_BRANCH", "staging")
			t.Setenv("UPVISOR_CHECK_INTERVAL", "2500")
			t.Setenv("UPVISOR_SELF_PATHS", "upvisor.yaml, ops/")
			t.Setenv("UPVISOR_COMMAND", "./bin/worker -q")
			t.Setenv("UPVISOR_UNRELATED", "x")
			c, e := Load(p)
			So(e, ShouldBeNil)
			So(c.Updater.WatchBranch, ShouldEqual, "staging")
			So(c.Updater.Interval(), ShouldEqual, 2500*time.Millisecond)
			So(c.Updater.SelfPaths, ShouldResemble, []string{"upvisor.yaml", "ops/"})
			So(c.Command(), ShouldResemble, []string{"./bin/worker", "-q"})
		})

		Convey("Shutdown and auth settings come from the environment", func() {
			t.Setenv("UPVISOR_STOP_APP_ON_EXIT", "false")
			t.Setenv("UPVISOR_AUTH", "ops:s3cret:x")
			c, e := Load(p)
			So(e, ShouldBeNil)
			So(c.Updater.StopAppOnExit, ShouldBeFalse)
			user, pass, ok := c.Updater.Credentials()
			So(ok, ShouldBeTrue)
			So(user, ShouldEqual, "ops")
			So(pass, ShouldEqual, "s3cret:x")
		})

		Convey("UPVISOR_CONFIG selects the manifest", func() {
			t.Setenv(ManifestEnvVar, p)
			So(FindManifest(t.TempDir()), ShouldEqual, p)
		})
	})
}

func TestValidation(t *testing.T) {
	Convey("Bad values are rejected", t, func() {
		dir := t.TempDir()

		Convey("Unknown strategy", func() {
			p := writeFile(t, dir, "upvisor.yaml", "selfUpdater:\n  type: systemd\n")
			_, e := Load(p)
			So(e, ShouldNotBeNil)
		})

		Convey("Non-positive interval", func() {
			p := writeFile(t, dir, "upvisor.yaml", "selfUpdater:\n  checkInterval: 0\n")
			_, e := Load(p)
			So(e, ShouldNotBeNil)
		})

		Convey("Empty branch", func() {
			p := writeFile(t, dir, "upvisor.yaml", "selfUpdater:\n  watchBranch: \"\"\n")
			_, e := Load(p)
			So(e, ShouldNotBeNil)
		})

		Convey("Auth without a password separator", func() {
			p := writeFile(t, dir, "upvisor.yaml", "selfUpdater:\n  auth: admin\n")
			_, e := Load(p)
			So(e, ShouldNotBeNil)
		})

		Convey("Malformed manifest", func() {
			p := writeFile(t, dir, "package.json", "{not json")
			_, e := Load(p)
			So(e, ShouldNotBeNil)
		})
	})
}
