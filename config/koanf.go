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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ManifestNames are searched, in order, in the working directory when no
// manifest is named explicitly.
var ManifestNames = []string{
	"upvisor.yaml",
	"upvisor.yml",
	"package.json",
}

// ManifestEnvVar names a manifest, overriding the search.
const ManifestEnvVar = "UPVISOR_CONFIG"

const envPrefix = "UPVISOR_"

// envKeys maps UPVISOR_<KEY> environment variables onto manifest keys.
var envKeys = map[string]string{
	"NAME":             "name",
	"TYPE":             "selfUpdater.type",
	"WATCH_BRANCH":     "selfUpdater.watchBranch",
	"REMOTE":           "selfUpdater.remote",
	"CHECK_INTERVAL":   "selfUpdater.checkInterval",
	"MAIN_FILE":        "selfUpdater.mainFile",
	"SUPERVISOR_NAME":  "selfUpdater.supervisorName",
	"PM2_NAME":         "selfUpdater.pm2Name",
	"HEALTH_FILE":      "selfUpdater.healthFile",
	"HEALTH_TIMEOUT":   "selfUpdater.healthTimeout",
	"GRACE_WINDOW":     "selfUpdater.graceWindow",
	"COMMAND_TIMEOUT":  "selfUpdater.commandTimeout",
	"STOP_TIMEOUT":     "selfUpdater.stopTimeout",
	"SELF_PATHS":       "selfUpdater.selfPaths",
	"COMMAND":          "selfUpdater.command",
	"RESTART_COMMAND":  "selfUpdater.restartCommand",
	"STDOUT_LOG":       "selfUpdater.stdoutLog",
	"STDERR_LOG":       "selfUpdater.stderrLog",
	"HANDOFF_FILE":     "selfUpdater.handoffFile",
	"PID_FILE":         "selfUpdater.pidFile",
	"STOP_APP_ON_EXIT": "selfUpdater.stopAppOnExit",
	"LISTEN":           "selfUpdater.listen",
	"AUTH":             "selfUpdater.auth",
	"DIR":              "selfUpdater.dir",
}

// list valued keys, which arrive from the environment as comma separated
// strings (or, for argv, space separated).
var sliceKeys = map[string]string{
	"selfUpdater.selfPaths":      ",",
	"selfUpdater.command":        " ",
	"selfUpdater.restartCommand": " ",
}

func envKey(s string) string {
	return envKeys[strings.TrimPrefix(s, envPrefix)]
}

// FindManifest returns the manifest to load from dir, or "" if there is
// none.
func FindManifest(dir string) string {
	if p := os.Getenv(ManifestEnvVar); p != "" {
		return p
	}
	for _, n := range ManifestNames {
		p := filepath.Join(dir, n)
		if _, e := os.Stat(p); e == nil {
			return p
		}
	}
	return ""
}

func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Parser()
	}
	return yaml.Parser()
}

// Load reads the configuration.  If path is empty the manifest is searched
// for in the current directory; finding none is not an error, the defaults
// then apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = FindManifest(".")
	}
	k := koanf.New(".")

	if e := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); e != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", e)
	}
	if path != "" {
		if e := k.Load(file.Provider(path), parserFor(path)); e != nil {
			return nil, fmt.Errorf("failed to load manifest %s: %w", path, e)
		}
	}
	if e := k.Load(env.Provider(envPrefix, ".", envKey), nil); e != nil {
		return nil, fmt.Errorf("failed to load environment: %w", e)
	}
	for key, sep := range sliceKeys {
		if s, ok := k.Get(key).(string); ok {
			if e := k.Set(key, splitList(s, sep)); e != nil {
				return nil, e
			}
		}
	}

	cfg := &Config{}
	if e := k.Unmarshal("", cfg); e != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", e)
	}
	cfg.File = path
	if e := cfg.resolve(); e != nil {
		return nil, e
	}
	if e := cfg.Validate(); e != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", e)
	}
	return cfg, nil
}

func splitList(s, sep string) []string {
	var rv []string
	var parts []string
	if sep == " " {
		parts = strings.Fields(s)
	} else {
		parts = strings.Split(s, sep)
	}
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			rv = append(rv, p)
		}
	}
	return rv
}

// resolve fills in the values that derive from others.
func (c *Config) resolve() error {
	u := &c.Updater
	if u.Dir == "" {
		if c.File != "" {
			u.Dir = filepath.Dir(c.File)
		} else {
			u.Dir = "."
		}
	}
	dir, e := filepath.Abs(u.Dir)
	if e != nil {
		return e
	}
	u.Dir = dir
	if c.Name == "" {
		c.Name = filepath.Base(dir)
	}
	return nil
}
