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

package upvisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultStopTimeout = 10 * time.Second
	DefaultPidFile     = ".upvisor-app.pid"

	// killGrace is how long a killed child gets to be reaped.
	killGrace = 2 * time.Second
	// pipeDrain bounds how long Wait keeps reading output after the child
	// exited, in case a grandchild holds the pipes open.
	pipeDrain = time.Second
)

// ExitInfo describes how a spawned child ended.
type ExitInfo struct {
	Pid  int
	Code int // -1 if killed by a signal
	Err  error
	Time time.Time
}

// Spawner runs the application directly as a detached child process.  In
// StrategySpawnObserve it stays around, reaping the child and reporting its
// exit status, and stops the old child before each restart.  In
// StrategySpawnExit it stops the old application, launches the new one,
// records its pid, starts a successor updater and exits this process.  The
// successor adopts the recorded pid, so that it can stop it in turn.  If
// anything before the exit fails we stay alive rather than leave nothing in
// charge.
type Spawner struct {
	strategy  Strategy
	argv      []string
	successor []string
	dir       string
	stdout    string
	stderr    string
	pidFile   string
	stopTime  time.Duration
	cmdTime   time.Duration
	logger    *log.Logger
	exit      func(int)

	cmd      *exec.Cmd
	done     chan struct{} // closed once cmd has been reaped
	stopping bool
	adopted  int // pid of an application left to us by a predecessor
	last     *ExitInfo
	lock     sync.Mutex
}

func NewSpawner(c ControllerConfig) (*Spawner, error) {
	if len(c.Command) == 0 {
		return nil, ErrNoCommand
	}
	if c.Strategy != StrategySpawnExit && c.Strategy != StrategySpawnObserve {
		return nil, fmt.Errorf("%w: %v is not a spawn strategy", ErrUnknownStrategy, c.Strategy)
	}
	s := &Spawner{
		strategy: c.Strategy,
		argv:     append([]string{}, c.Command...),
		dir:      c.Dir,
		stdout:   c.Stdout,
		stderr:   c.Stderr,
		pidFile:  c.PidFile,
		stopTime: c.StopTimeout,
		cmdTime:  c.CommandTimeout,
		logger:   c.Logger,
		exit:     c.Exit,
	}
	if s.logger == nil {
		s.logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	if s.stopTime <= 0 {
		s.stopTime = DefaultStopTimeout
	}
	if s.cmdTime <= 0 {
		s.cmdTime = DefaultCommandTimeout
	}
	if s.exit == nil {
		s.exit = os.Exit
	}
	if s.strategy == StrategySpawnExit {
		// Nobody will be left to read pipes once we exit.
		base := strings.TrimSuffix(filepath.Base(c.MainFile), filepath.Ext(c.MainFile))
		if base == "" || base == "." {
			base = "app"
		}
		if s.stdout == "" {
			s.stdout = base + ".out.log"
		}
		if s.stderr == "" {
			s.stderr = base + ".err.log"
		}
		if s.pidFile == "" {
			s.pidFile = filepath.Join(s.dir, DefaultPidFile)
		}
		s.successor = append([]string{}, c.Successor...)
		if len(s.successor) == 0 {
			exe, e := os.Executable()
			if e != nil {
				exe = os.Args[0]
			}
			s.successor = append([]string{exe}, os.Args[1:]...)
		}
	}
	return s, nil
}

func (s *Spawner) Strategy() Strategy {
	return s.strategy
}

// stream resolves an output destination.  The returned closer, if any,
// must be called once the child has been started.
func (s *Spawner) stream(dest string, std *os.File, pfx string) (io.Writer, io.Closer, error) {
	switch dest {
	case "":
		return &lineLogger{logger: s.logger, prefix: pfx}, nil, nil
	case "inherit", "-":
		return std, nil, nil
	}
	p := dest
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.dir, p)
	}
	f, e := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if e != nil {
		return nil, nil, e
	}
	return f, f, nil
}

func (s *Spawner) spawn() (*exec.Cmd, error) {
	cmd := exec.Command(s.argv[0], s.argv[1:]...)
	cmd.Dir = s.dir
	cmd.Stdin = nil
	cmd.WaitDelay = pipeDrain
	detach(cmd)

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	out, c, e := s.stream(s.stdout, os.Stdout, "stdout> ")
	if e != nil {
		return nil, fmt.Errorf("%w: stdout: %v", ErrSpawn, e)
	}
	if c != nil {
		closers = append(closers, c)
	}
	errw, c, e := s.stream(s.stderr, os.Stderr, "stderr> ")
	if e != nil {
		return nil, fmt.Errorf("%w: stderr: %v", ErrSpawn, e)
	}
	if c != nil {
		closers = append(closers, c)
	}
	cmd.Stdout = out
	cmd.Stderr = errw

	if e := cmd.Start(); e != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, e)
	}
	s.logger.Printf("Spawned %s (pid %d)", strings.Join(s.argv, " "), cmd.Process.Pid)
	return cmd, nil
}

func (s *Spawner) doWait(cmd *exec.Cmd, done chan struct{}) {
	e := cmd.Wait()
	info := &ExitInfo{Pid: cmd.Process.Pid, Code: -1, Time: time.Now()}
	if ps := cmd.ProcessState; ps != nil {
		info.Code = ps.ExitCode()
	}
	var ee *exec.ExitError
	if e != nil && !errors.As(e, &ee) && !errors.Is(e, exec.ErrWaitDelay) {
		info.Err = e
	}
	s.lock.Lock()
	stopping := s.stopping && s.cmd == cmd
	s.last = info
	if s.cmd == cmd {
		s.cmd = nil
		s.stopping = false
	}
	s.lock.Unlock()
	close(done)

	switch {
	case stopping:
		s.logger.Printf("Application (pid %d) stopped, exit code %d", info.Pid, info.Code)
	case info.Code == 0:
		s.logger.Printf("Application (pid %d) exited", info.Pid)
	case info.Err != nil:
		s.logger.Printf("Application (pid %d) failed: %v", info.Pid, info.Err)
	default:
		s.logger.Printf("Application (pid %d) exited with code %d", info.Pid, info.Code)
	}
}

// stopChild terminates the current child, escalating to a kill if it has
// not exited within the stop time.  It gives up once ctx is done, or the
// kill has had killGrace to take effect, leaving the kill timer armed.
// Call with lock held; it is dropped while waiting.
func (s *Spawner) stopChild(ctx context.Context) error {
	cmd, done := s.cmd, s.done
	if cmd == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.stopTime+killGrace+pipeDrain)
	defer cancel()

	pid := cmd.Process.Pid
	s.stopping = true
	if e := terminate(cmd.Process); e != nil {
		s.logger.Printf("Failed sending SIGTERM: %v", e)
	}
	timer := time.AfterFunc(s.stopTime, func() {
		s.logger.Printf("Graceful shutdown timed out")
		if e := kill(cmd.Process); e != nil {
			s.logger.Printf("Failed killing: %v", e)
		}
	})
	s.lock.Unlock()
	defer s.lock.Lock()
	select {
	case <-done:
		timer.Stop()
		return nil
	case <-ctx.Done():
		s.logger.Printf("ERROR: application (pid %d) did not stop", pid)
		return fmt.Errorf("pid %d still running: %w", pid, ErrTimeout)
	}
}

// stopAdopted stops an application we did not spawn ourselves.  We cannot
// wait for it, so we watch for the pid to go away instead.  Call with lock
// held.
func (s *Spawner) stopAdopted(ctx context.Context) error {
	pid := s.adopted
	if pid == 0 {
		return nil
	}
	p, e := os.FindProcess(pid)
	if e != nil || !alive(pid) {
		s.adopted = 0
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.stopTime+killGrace)
	defer cancel()

	if e := terminate(p); e != nil {
		s.logger.Printf("Failed sending SIGTERM: %v", e)
	}
	killAt := time.Now().Add(s.stopTime)
	killed := false
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for alive(pid) {
		if !killed && time.Now().After(killAt) {
			s.logger.Printf("Graceful shutdown timed out")
			if e := kill(p); e != nil {
				s.logger.Printf("Failed killing: %v", e)
			}
			killed = true
		}
		select {
		case <-ctx.Done():
			s.logger.Printf("ERROR: application (pid %d) did not stop", pid)
			return fmt.Errorf("pid %d still running: %w", pid, ErrTimeout)
		case <-tick.C:
		}
	}
	s.logger.Printf("Application (pid %d) stopped", pid)
	s.adopted = 0
	return nil
}

func (s *Spawner) stopLocked(ctx context.Context) error {
	if e := s.stopChild(ctx); e != nil {
		return e
	}
	return s.stopAdopted(ctx)
}

// Start launches the application if nothing is running.  With spawn-exit,
// an application recorded by a predecessor is adopted instead.
func (s *Spawner) Start(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.cmd != nil || s.adopted != 0 {
		return nil
	}
	if pid := s.readPid(); pid != 0 && adoptable(pid) {
		s.adopted = pid
		s.logger.Printf("Adopted application (pid %d)", pid)
		return nil
	}
	return s.startLocked()
}

func (s *Spawner) startLocked() error {
	cmd, e := s.spawn()
	if e != nil {
		return e
	}
	s.cmd = cmd
	s.done = make(chan struct{})
	go s.doWait(cmd, s.done)
	s.writePid(cmd.Process.Pid)
	return nil
}

func (s *Spawner) readPid() int {
	if s.pidFile == "" {
		return 0
	}
	b, e := os.ReadFile(s.pidFile)
	if e != nil {
		return 0
	}
	pid, e := strconv.Atoi(strings.TrimSpace(string(b)))
	if e != nil || pid <= 0 {
		return 0
	}
	return pid
}

func (s *Spawner) writePid(pid int) {
	if s.pidFile == "" {
		return
	}
	tmp := s.pidFile + ".tmp"
	e := os.WriteFile(tmp, []byte(strconv.Itoa(pid)+"\n"), 0644)
	if e == nil {
		e = os.Rename(tmp, s.pidFile)
	}
	if e != nil {
		s.logger.Printf("Failed recording application pid: %v", e)
	}
}

// Restart replaces the running application.  The whole operation is bounded
// by the command timeout.
func (s *Spawner) Restart(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cmdTime)
	defer cancel()

	s.lock.Lock()
	defer s.lock.Unlock()
	if e := s.stopLocked(ctx); e != nil {
		return fmt.Errorf("%w: %w", ErrRestart, e)
	}
	if e := s.startLocked(); e != nil {
		return e
	}
	if s.strategy == StrategySpawnExit {
		s.handOff()
	}
	return nil
}

// handOff starts the successor updater and exits.  Call with lock held,
// after the new application has been started.
func (s *Spawner) handOff() {
	cmd := exec.Command(s.successor[0], s.successor[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if e := cmd.Start(); e != nil {
		// The new application is running as our child, so keep watching it.
		s.logger.Printf("ERROR: not exiting, successor did not start: %v", e)
		return
	}
	go cmd.Wait()
	s.logger.Printf("Handing off to pid %d, exiting", cmd.Process.Pid)
	s.exit(0)
}

// Stop shuts down the application, if we own it.
func (s *Spawner) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if e := s.stopLocked(context.Background()); e != nil {
		s.logger.Printf("Failed stopping application: %v", e)
	}
}

// Pid returns the pid of the running application, or 0.
func (s *Spawner) Pid() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.cmd != nil && s.cmd.Process != nil {
		return s.cmd.Process.Pid
	}
	return s.adopted
}

// LastExit describes how the most recent child ended, or nil.
func (s *Spawner) LastExit() *ExitInfo {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.last == nil {
		return nil
	}
	info := *s.last
	return &info
}
