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
	"path/filepath"
	"strings"
	"time"
)

// SupervisorRestarter restarts the application by running a command
// against an external supervisor, "pm2 restart <name>" by default.
type SupervisorRestarter struct {
	name string
	argv []string
	r    runner
}

func NewSupervisorRestarter(c ControllerConfig) *SupervisorRestarter {
	tmpl := c.RestartCommand
	if len(tmpl) == 0 {
		tmpl = []string{"pm2", "restart", "{name}"}
	}
	argv := make([]string, 0, len(tmpl))
	for _, a := range tmpl {
		argv = append(argv, strings.ReplaceAll(a, "{name}", c.Name))
	}
	return &SupervisorRestarter{
		name: c.Name,
		argv: argv,
		r:    runner{dir: c.Dir, timeout: c.CommandTimeout, logger: c.Logger},
	}
}

func (s *SupervisorRestarter) Strategy() Strategy {
	return StrategySupervisor
}

func (s *SupervisorRestarter) Restart(ctx context.Context) error {
	if _, e := s.r.run(ctx, s.argv...); e != nil {
		return fmt.Errorf("%w: %w", ErrRestart, e)
	}
	s.r.logger.Printf("Supervisor restarted %s", s.name)
	return nil
}

// TouchRestarter restarts the application by updating the modification
// time of a file that an auto-restarter watches.
type TouchRestarter struct {
	path   string
	logger *log.Logger
	nowFn  func() time.Time
}

func NewTouchRestarter(c ControllerConfig) *TouchRestarter {
	p := c.MainFile
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.Dir, p)
	}
	return &TouchRestarter{
		path:   p,
		logger: c.Logger,
		nowFn:  time.Now,
	}
}

func (t *TouchRestarter) Strategy() Strategy {
	return StrategyTouch
}

func (t *TouchRestarter) Restart(ctx context.Context) error {
	if e := ctx.Err(); e != nil {
		return fmt.Errorf("%w: %v", ErrRestart, e)
	}
	now := t.nowFn()
	if e := os.Chtimes(t.path, now, now); e != nil {
		if !os.IsNotExist(e) {
			return fmt.Errorf("%w: %v", ErrRestart, e)
		}
		f, e := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY, 0644)
		if e != nil {
			return fmt.Errorf("%w: %v", ErrRestart, e)
		}
		f.Close()
	}
	t.logger.Printf("Touched %s to trigger restart", t.path)
	return nil
}
