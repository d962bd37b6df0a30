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

// Package config loads the updater manifest.  The manifest is either a
// dedicated upvisor.yaml, or the "selfUpdater" section of the
// application's package.json, in the manner of the node tooling this
// replaces.  Defaults are applied first, then the manifest, then any
// UPVISOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/upvisor/upvisor"
)

// Config is the whole manifest.  Only Name is read from outside the
// selfUpdater section, since package.json already carries it.
type Config struct {
	Name    string  `koanf:"name"`
	Updater Updater `koanf:"selfUpdater"`

	// File is the manifest that was loaded, empty if none was found.
	File string `koanf:"-"`
}

// Updater holds the selfUpdater section.  Times are in milliseconds.
type Updater struct {
	Type           string   `koanf:"type"`
	WatchBranch    string   `koanf:"watchBranch"`
	Remote         string   `koanf:"remote"`
	CheckInterval  int      `koanf:"checkInterval"`
	MainFile       string   `koanf:"mainFile"`
	SupervisorName string   `koanf:"supervisorName"`
	PM2Name        string   `koanf:"pm2Name"`
	HealthFile     string   `koanf:"healthFile"`
	HealthTimeout  int      `koanf:"healthTimeout"`
	GraceWindow    int      `koanf:"graceWindow"`
	CommandTimeout int      `koanf:"commandTimeout"`
	StopTimeout    int      `koanf:"stopTimeout"`
	SelfPaths      []string `koanf:"selfPaths"`
	Command        []string `koanf:"command"`
	RestartCommand []string `koanf:"restartCommand"`
	StdoutLog      string   `koanf:"stdoutLog"`
	StderrLog      string   `koanf:"stderrLog"`
	HandoffFile    string   `koanf:"handoffFile"`
	PidFile        string   `koanf:"pidFile"`
	StopAppOnExit  bool     `koanf:"stopAppOnExit"`
	Listen         string   `koanf:"listen"`
	Auth           string   `koanf:"auth"` // "user:pass" required by the HTTP API
	Dir            string   `koanf:"dir"`
}

func defaultConfig() *Config {
	return &Config{
		Updater: Updater{
			WatchBranch:    "main",
			Remote:         "origin",
			CheckInterval:  10000,
			MainFile:       "app.js",
			HealthFile:     ".alive",
			HealthTimeout:  20000,
			GraceWindow:    20000,
			CommandTimeout: 60000,
			StopTimeout:    10000,
			HandoffFile:    ".upvisor-handoff.json",
			PidFile:        upvisor.DefaultPidFile,
			StopAppOnExit:  true,
			Listen:         "127.0.0.1:8322",
		},
	}
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func (u *Updater) Interval() time.Duration     { return ms(u.CheckInterval) }
func (u *Updater) Grace() time.Duration        { return ms(u.GraceWindow) }
func (u *Updater) HealthTTL() time.Duration    { return ms(u.HealthTimeout) }
func (u *Updater) CommandLimit() time.Duration { return ms(u.CommandTimeout) }
func (u *Updater) StopGrace() time.Duration    { return ms(u.StopTimeout) }

// Path resolves p against the application directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Updater.Dir, p)
}

// SupervisorName is the name the external supervisor knows the
// application by.
func (c *Config) SupervisorName() string {
	if c.Updater.SupervisorName != "" {
		return c.Updater.SupervisorName
	}
	if c.Updater.PM2Name != "" {
		return c.Updater.PM2Name
	}
	return c.Name
}

// Command is the argv used to spawn the application.
func (c *Config) Command() []string {
	if len(c.Updater.Command) != 0 {
		return c.Updater.Command
	}
	return []string{"node", c.Updater.MainFile}
}

// Credentials splits the auth setting.  ok is false when the API is open.
func (u *Updater) Credentials() (user, pass string, ok bool) {
	if u.Auth == "" {
		return "", "", false
	}
	user, pass, _ = strings.Cut(u.Auth, ":")
	return user, pass, true
}

// Strategy resolves the restart strategy, sniffing the environment when
// the manifest does not name one.
func (c *Config) Strategy(lookupEnv func(string) (string, bool)) (upvisor.Strategy, error) {
	return upvisor.DetectStrategy(c.Updater.Type, lookupEnv)
}

// Validate checks the loaded configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error
	u := &c.Updater
	if strings.TrimSpace(u.Type) != "" {
		if _, e := upvisor.ParseStrategy(u.Type); e != nil {
			errs = append(errs, e)
		}
	}
	if strings.TrimSpace(u.WatchBranch) == "" {
		errs = append(errs, errors.New("watchBranch must not be empty"))
	}
	if strings.TrimSpace(u.HealthFile) == "" {
		errs = append(errs, errors.New("healthFile must not be empty"))
	}
	if u.Auth != "" && !strings.Contains(u.Auth, ":") {
		errs = append(errs, errors.New("auth must be of the form user:pass"))
	}
	for name, v := range map[string]int{
		"checkInterval":  u.CheckInterval,
		"healthTimeout":  u.HealthTimeout,
		"graceWindow":    u.GraceWindow,
		"commandTimeout": u.CommandTimeout,
		"stopTimeout":    u.StopTimeout,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	return errors.Join(errs...)
}
