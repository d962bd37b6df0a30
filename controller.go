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
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// Strategy selects how the application gets restarted.  It is chosen once
// at startup.
type Strategy int

const (
	// StrategySupervisor asks an external supervisor such as pm2 to
	// restart the application by name.
	StrategySupervisor Strategy = iota + 1

	// StrategyTouch bumps the modification time of a file watched by an
	// auto-restarter such as nodemon.
	StrategyTouch

	// StrategySpawnExit launches a detached copy of the application and
	// then exits this process.  The new instance is expected to carry
	// the updater along, and performs the pending health check.
	StrategySpawnExit

	// StrategySpawnObserve launches the application as a detached child
	// and keeps running, stopping the old child on each restart.
	StrategySpawnObserve
)

var strategyNames = map[Strategy]string{
	StrategySupervisor:   "supervisor",
	StrategyTouch:        "touch",
	StrategySpawnExit:    "spawn-exit",
	StrategySpawnObserve: "spawn-observe",
}

func (s Strategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// HandsOff is true for strategies where a restart ends this process.
func (s Strategy) HandsOff() bool {
	return s == StrategySpawnExit
}

// ParseStrategy maps a configured name to a Strategy.  The names used by
// the node process managers ("pm2", "nodemon") are accepted as aliases.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "supervisor", "pm2":
		return StrategySupervisor, nil
	case "touch", "nodemon":
		return StrategyTouch, nil
	case "spawn-exit", "exit":
		return StrategySpawnExit, nil
	case "spawn-observe", "spawn", "observe":
		return StrategySpawnObserve, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// DetectStrategy picks the strategy.  An explicitly configured name always
// wins.  Otherwise the environment is sniffed for signs of a supervisor,
// falling back to spawning the application ourselves.
func DetectStrategy(configured string, lookupEnv func(string) (string, bool)) (Strategy, error) {
	if strings.TrimSpace(configured) != "" {
		return ParseStrategy(configured)
	}
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	for _, k := range []string{"pm_id", "PM2_HOME", "PM2_USAGE"} {
		if _, ok := lookupEnv(k); ok {
			return StrategySupervisor, nil
		}
	}
	if _, ok := lookupEnv("NODEMON"); ok {
		return StrategyTouch, nil
	}
	if v, ok := lookupEnv("npm_lifecycle_script"); ok && strings.Contains(v, "nodemon") {
		return StrategyTouch, nil
	}
	return StrategySpawnObserve, nil
}

// Controller brings the application (back) up under whatever code is
// currently checked out.
type Controller interface {
	Strategy() Strategy
	Restart(ctx context.Context) error
}

// Starter is implemented by controllers that must launch the application
// themselves when the updater starts.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by controllers that own the application process,
// so that it can be shut down with the updater.
type Stopper interface {
	Stop()
}

// ControllerConfig carries everything any of the strategies needs.
type ControllerConfig struct {
	Strategy       Strategy
	Dir            string        // working directory of the application
	Name           string        // name known to the external supervisor
	RestartCommand []string      // "{name}" is replaced by Name
	MainFile       string        // file to touch, relative to Dir
	Command        []string      // argv used to spawn the application
	Successor      []string      // argv of the updater taking over after spawn-exit
	PidFile        string        // where spawn-exit records the application pid
	Stdout         string        // "", "inherit", or a file path
	Stderr         string        // "", "inherit", or a file path
	StopTimeout    time.Duration // grace for a spawned child to exit
	CommandTimeout time.Duration // bound on the restart command or spawn restart
	Logger         *log.Logger
	Exit           func(int) // used by spawn-exit; os.Exit if nil
}

// NewController builds the Controller for c.Strategy.
func NewController(c ControllerConfig) (Controller, error) {
	if c.Logger == nil {
		c.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	switch c.Strategy {
	case StrategySupervisor:
		return NewSupervisorRestarter(c), nil
	case StrategyTouch:
		return NewTouchRestarter(c), nil
	case StrategySpawnExit, StrategySpawnObserve:
		return NewSpawner(c)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownStrategy, c.Strategy)
}
