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

// Command upvisord keeps an application in step with its git branch.  It
// pulls on an interval, restarts the application when something other than
// upvisord's own files changed, and rolls back if the application stops
// writing its heartbeat.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/upvisor/upvisor"
	"github.com/upvisor/upvisor/config"
	"github.com/upvisor/upvisor/rest"
)

var manifest string
var addr string

func main() {
	flag.StringVar(&manifest, "c", "", "manifest file (upvisor.yaml or package.json)")
	flag.StringVar(&addr, "a", "", "listen address, overrides the manifest")
	flag.Parse()

	c, e := config.Load(manifest)
	if e != nil {
		log.Fatalf("Failed to load configuration: %v", e)
	}
	if addr != "" {
		c.Updater.Listen = addr
	}

	mlog := upvisor.NewMultiLogger("upvisor: ")
	mlog.AddWriter(os.Stderr, log.LstdFlags)
	ring := upvisor.NewLog(0)
	mlog.AddWriter(ring, 0)
	logger := mlog.Logger()

	if c.File != "" {
		logger.Printf("Loaded %s", c.File)
	}

	strategy, e := c.Strategy(os.LookupEnv)
	if e != nil {
		logger.Fatalf("Failed to select restart strategy: %v", e)
	}
	ctl, e := upvisor.NewController(upvisor.ControllerConfig{
		Strategy:       strategy,
		Dir:            c.Updater.Dir,
		Name:           c.SupervisorName(),
		RestartCommand: c.Updater.RestartCommand,
		MainFile:       c.Updater.MainFile,
		Command:        c.Command(),
		Successor:      successor(),
		PidFile:        c.Path(c.Updater.PidFile),
		Stdout:         c.Updater.StdoutLog,
		Stderr:         c.Updater.StderrLog,
		StopTimeout:    c.Updater.StopGrace(),
		CommandTimeout: c.Updater.CommandLimit(),
		Logger:         logger,
		Exit:           os.Exit,
	})
	if e != nil {
		logger.Fatalf("Failed to set up %s: %v", strategy, e)
	}

	src := upvisor.NewGitSource(c.Updater.Dir, c.Updater.CommandLimit(), logger)
	src.Remote = c.Updater.Remote
	health := upvisor.NewLivenessMonitor(c.Path(c.Updater.HealthFile), c.Updater.HealthTTL())

	u := upvisor.NewUpdater(src, ctl, health, upvisor.Config{
		Name:        c.Name,
		Branch:      c.Updater.WatchBranch,
		Interval:    c.Updater.Interval(),
		Grace:       c.Updater.Grace(),
		SelfPaths:   c.Updater.SelfPaths,
		HandoffFile: c.Path(c.Updater.HandoffFile),
		Logger:      logger,
	})

	root := newTree(logger)
	root.Add(u)
	if c.Updater.Listen != "" {
		h := rest.NewHandler(u, ring, checkEvery)
		if user, pass, ok := c.Updater.Credentials(); ok {
			h.RequireAuth(user, pass)
		}
		root.Add(newHTTPService(c.Updater.Listen, h, logger))
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	code := run(ctx, root, logger)
	cancel()
	if st, ok := ctl.(upvisor.Stopper); ok && c.Updater.StopAppOnExit {
		st.Stop()
	}
	logger.Printf("Shut down")
	os.Exit(code)
}

// successor is how spawn-exit starts the next upvisord: the same binary,
// with the same arguments.
func successor() []string {
	exe, e := os.Executable()
	if e != nil {
		exe = os.Args[0]
	}
	return append([]string{exe}, os.Args[1:]...)
}
