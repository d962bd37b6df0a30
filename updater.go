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
	"log"
	"os"
	"sort"
	"sync"
	"time"
)

const (
	DefaultInterval    = 10 * time.Second
	DefaultGraceWindow = 20 * time.Second
)

// Config is the static configuration of an Updater.
type Config struct {
	Name        string        // application name, for display
	Branch      string        // upstream branch to follow
	Interval    time.Duration // time between polls
	Grace       time.Duration // time from restart to health verdict
	SelfPaths   []string      // paths belonging to the updater itself
	HandoffFile string        // only used by hands off strategies
	Logger      *log.Logger
}

// Updater is the update state machine.  All of the fields below the
// marker are owned by the goroutine running Serve, and are never touched
// by anything else.  Other goroutines see the state only through Status
// snapshots, and influence it only through CheckNow.
type Updater struct {
	src     RevisionSource
	ctl     Controller
	health  HealthChecker
	self    *SelfPaths
	name    string
	branch  string
	every   time.Duration
	grace   time.Duration
	handoff string
	logger  *log.Logger
	trigger chan struct{}
	started time.Time

	// owned by the loop goroutine
	current     Revision
	backup      Revision
	candidate   Revision
	pending     *time.Timer
	verdictAt   time.Time
	rollbackDue bool
	rejected    map[Revision]bool
	state       State
	lastCheck   time.Time
	lastErr     error
	ready       bool

	// published snapshot
	status Status
	serial int64
	mx     sync.Mutex
	cv     *sync.Cond
}

// NewUpdater wires an Updater together.  Nothing happens until Serve is
// called.
func NewUpdater(src RevisionSource, ctl Controller, health HealthChecker, c Config) *Updater {
	if c.Branch == "" {
		c.Branch = "main"
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Grace <= 0 {
		c.Grace = DefaultGraceWindow
	}
	if c.Logger == nil {
		c.Logger = log.New(os.Stderr, "upvisor: ", log.LstdFlags)
	}
	u := &Updater{
		src:      src,
		ctl:      ctl,
		health:   health,
		self:     NewSelfPaths(c.SelfPaths),
		name:     c.Name,
		branch:   c.Branch,
		every:    c.Interval,
		grace:    c.Grace,
		handoff:  c.HandoffFile,
		logger:   c.Logger,
		trigger:  make(chan struct{}, 1),
		started:  time.Now(),
		rejected: make(map[Revision]bool),
		serial:   time.Now().UnixNano(),
	}
	u.cv = sync.NewCond(&u.mx)
	u.publish()
	return u
}

func (u *Updater) logf(format string, v ...interface{}) {
	u.logger.Printf(format, v...)
}

// Serve runs the state machine until ctx is done.  It implements
// suture.Service.
func (u *Updater) Serve(ctx context.Context) error {
	if !u.ready {
		u.init(ctx)
		u.ready = true
	}
	ticker := time.NewTicker(u.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			u.tick(ctx)
		case <-u.trigger:
			u.tick(ctx)
		case <-u.verdictC():
			u.verdict(ctx)
		}
	}
}

func (u *Updater) String() string {
	return "updater"
}

// CheckNow asks the loop to poll right away.  It returns false if a
// request is already queued.
func (u *Updater) CheckNow() bool {
	select {
	case u.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (u *Updater) init(ctx context.Context) {
	rev, e := u.src.CurrentRevision(ctx)
	if e != nil {
		u.logf("Cannot determine running revision, will adopt the first one seen: %v", e)
		u.lastErr = e
	}
	u.current = rev
	u.backup = rev

	if u.handoff != "" {
		if h, e := TakeHandoff(u.handoff); e != nil {
			u.logf("Ignoring handoff record: %v", e)
		} else if h != nil {
			u.resume(h)
		}
	}

	if st, ok := u.ctl.(Starter); ok {
		if e := st.Start(ctx); e != nil {
			u.logf("ERROR: failed to start application: %v", e)
			u.lastErr = e
		}
	}
	u.logf("Watching '%s' for changes every %v [strategy=%s] at %s",
		u.branch, u.every, u.ctl.Strategy(), u.current.Short())
	u.settle()
}

// resume picks up where a predecessor that handed off to us left off.
func (u *Updater) resume(h *Handoff) {
	for _, r := range h.Rejected {
		u.rejected[r] = true
	}
	if u.current != "" && h.Current != u.current {
		u.logf("Handoff record is for %s but %s is checked out, ignoring it",
			h.Current.Short(), u.current.Short())
		return
	}
	u.current = h.Current
	u.backup = h.Backup
	if h.VerdictAt.IsZero() {
		return
	}
	d := time.Until(h.VerdictAt)
	if d < 0 {
		d = 0
	}
	u.candidate = h.Current
	u.logf("Resuming health check of %s, due in %v", h.Current.Short(), d.Truncate(time.Millisecond))
	u.scheduleVerdict(d)
}

func (u *Updater) verdictC() <-chan time.Time {
	if u.pending == nil {
		return nil
	}
	return u.pending.C
}

// tick is one poll.  It always pulls, but a restart is only ever started
// when no verdict is pending, so that at most one rollout is in flight.
func (u *Updater) tick(ctx context.Context) {
	u.lastCheck = time.Now()
	u.lastErr = nil
	defer u.settle()

	if u.rollbackDue {
		u.logf("Retrying rollback to %s", u.backup.Short())
		u.rollback(ctx)
		return
	}

	u.setState(StatePulling)
	if !u.pull(ctx) {
		pollsTotal.WithLabelValues("failed").Inc()
		return
	}
	cand, ok := u.detectChange(ctx, u.current)
	if !ok {
		pollsTotal.WithLabelValues("unchanged").Inc()
		return
	}

	switch {
	case u.current == "":
		u.logf("Adopting %s as the running revision", cand.Short())
		u.current = cand
		u.backup = cand
		pollsTotal.WithLabelValues("unchanged").Inc()
		return

	case u.rejected[cand]:
		// Pulling again brought back a revision that already failed.
		u.logf("Ignoring %s, it failed its health check; staying on %s",
			cand.Short(), u.current.Short())
		pollsTotal.WithLabelValues("rejected").Inc()
		if e := u.src.ResetHard(ctx, u.current); e != nil {
			u.logf("Failed to reset to %s: %v", u.current.Short(), e)
			u.lastErr = e
		}
		return

	case u.pending != nil:
		u.logf("Update to %s deferred until %s has been checked",
			cand.Short(), u.candidate.Short())
		pollsTotal.WithLabelValues("deferred").Inc()
		return
	}

	pollsTotal.WithLabelValues("changed").Inc()
	cycle := newCycle(u.current, cand)
	d, e := u.classifyChange(ctx, cycle)
	if e != nil {
		return
	}
	if d == Skip {
		u.setState(StateSkip)
		u.logf("[%s] Only updater files changed, absorbing %s without restart",
			cycle.ID, cand.Short())
		u.current = cand
		return
	}
	u.applyUpdate(ctx, cycle)
}

func (u *Updater) pull(ctx context.Context) bool {
	if e := u.src.Pull(ctx, u.branch); e != nil {
		u.logf("Git pull failed: %v", e)
		u.lastErr = e
		return false
	}
	return true
}

// detectChange returns the checked out revision if it differs from prev.
func (u *Updater) detectChange(ctx context.Context, prev Revision) (Revision, bool) {
	head, e := u.src.CurrentRevision(ctx)
	if e != nil {
		u.logf("Cannot read revision: %v", e)
		u.lastErr = e
		return "", false
	}
	if head == prev {
		return "", false
	}
	return head, true
}

func (u *Updater) classifyChange(ctx context.Context, cycle *UpdateCycle) (Decision, error) {
	u.setState(StateDiffing)
	paths, e := u.src.ChangedPaths(ctx, cycle.Previous, cycle.Candidate)
	if e != nil {
		u.logf("[%s] Cannot diff %s..%s: %v", cycle.ID,
			cycle.Previous.Short(), cycle.Candidate.Short(), e)
		u.lastErr = e
		return Apply, e
	}
	cycle.ChangedPaths = paths
	d := u.self.Classify(paths)
	updatesTotal.WithLabelValues(d.String()).Inc()
	return d, nil
}

func (u *Updater) applyUpdate(ctx context.Context, cycle *UpdateCycle) {
	u.setState(StateRestarting)
	u.logf("[%s] Update detected: %s -> %s (%d paths)", cycle.ID,
		cycle.Previous.Short(), cycle.Candidate.Short(), len(cycle.ChangedPaths))
	u.backup = u.current
	u.current = cycle.Candidate
	u.candidate = cycle.Candidate

	handsOff := u.ctl.Strategy().HandsOff()
	if handsOff {
		u.writeHandoff(time.Now().Add(u.grace))
	}
	e := u.ctl.Restart(ctx)
	restartsTotal.WithLabelValues("update", result(e)).Inc()
	if e != nil {
		u.logf("[%s] Restart failed: %v", cycle.ID, e)
		u.lastErr = e
		if handsOff {
			u.dropHandoff()
		}
	}
	// Even a failed restart gets a verdict; a dead application will
	// be rolled back.
	u.logf("[%s] Waiting %v for health check", cycle.ID, u.grace)
	u.scheduleVerdict(u.grace)
}

// scheduleVerdict arms the one shot health check timer.  Only one may be
// outstanding at a time.
func (u *Updater) scheduleVerdict(d time.Duration) error {
	if u.pending != nil {
		u.logf("ERROR: %v (due %v), not scheduling another",
			ErrVerdictPending, u.verdictAt.Format(time.RFC3339))
		return ErrVerdictPending
	}
	u.pending = time.NewTimer(d)
	u.verdictAt = time.Now().Add(d)
	verdictPending.Set(1)
	u.setState(StateAwaitingVerdict)
	return nil
}

func (u *Updater) clearVerdict() {
	if u.pending != nil {
		u.pending.Stop()
	}
	u.pending = nil
	u.verdictAt = time.Time{}
	verdictPending.Set(0)
}

// verdict runs once the grace window after a restart has elapsed.
func (u *Updater) verdict(ctx context.Context) {
	defer u.settle()
	u.clearVerdict()
	cand := u.candidate
	u.candidate = ""

	e := u.health.Check()
	if e == nil {
		u.setState(StateHealthy)
		verdictsTotal.WithLabelValues("healthy").Inc()
		u.logf("App is healthy, running %s", u.current.Short())
		return
	}
	verdictsTotal.WithLabelValues("unhealthy").Inc()
	u.logf("App failed health check (%v), rolling back to %s", e, u.backup.Short())
	u.lastErr = e
	if cand != "" && cand != u.backup {
		u.rejected[cand] = true
	}
	u.rollback(ctx)
}

// rollback returns to the backup revision.  The backup is left alone, so
// that a failed rollback can be retried against the same revision on the
// next tick.  The result is not health checked.
func (u *Updater) rollback(ctx context.Context) {
	u.setState(StateRollingBack)
	u.rollbackDue = true
	target := u.backup
	if e := u.src.ResetHard(ctx, target); e != nil {
		u.logf("ERROR: rollback to %s failed: %v", target.Short(), e)
		u.lastErr = e
		rollbacksTotal.WithLabelValues("failed").Inc()
		return
	}
	u.logf("Rolled back to %s", target.Short())
	// From here on the reverted tree is what we consider running, so
	// the next poll does not see it as news.
	u.current = target

	handsOff := u.ctl.Strategy().HandsOff()
	if handsOff {
		u.writeHandoff(time.Time{})
	}
	e := u.ctl.Restart(ctx)
	restartsTotal.WithLabelValues("rollback", result(e)).Inc()
	if e != nil {
		u.logf("ERROR: restart after rollback failed, application may not be running: %v", e)
		u.lastErr = e
		rollbacksTotal.WithLabelValues("failed").Inc()
		if handsOff {
			u.dropHandoff()
		}
		return
	}
	u.rollbackDue = false
	rollbacksTotal.WithLabelValues("ok").Inc()
}

func (u *Updater) writeHandoff(verdictAt time.Time) {
	if u.handoff == "" {
		return
	}
	h := &Handoff{
		Current:   u.current,
		Backup:    u.backup,
		VerdictAt: verdictAt,
		Rejected:  u.rejectedList(),
		Written:   time.Now(),
	}
	if e := WriteHandoff(u.handoff, h); e != nil {
		u.logf("Failed to write handoff record: %v", e)
	}
}

func (u *Updater) dropHandoff() {
	if u.handoff != "" {
		os.Remove(u.handoff)
	}
}

func (u *Updater) rejectedList() []Revision {
	if len(u.rejected) == 0 {
		return nil
	}
	rv := make([]Revision, 0, len(u.rejected))
	for r := range u.rejected {
		rv = append(rv, r)
	}
	sort.Slice(rv, func(i, j int) bool { return rv[i] < rv[j] })
	return rv
}

func (u *Updater) setState(s State) {
	u.state = s
	u.publish()
}

// settle returns to a resting state at the end of a cycle.
func (u *Updater) settle() {
	if u.pending != nil {
		u.setState(StateAwaitingVerdict)
	} else {
		u.setState(StateIdle)
	}
}

// publish copies the loop state into the shared snapshot and wakes up
// watchers.
func (u *Updater) publish() {
	s := Status{
		Name:        u.name,
		Branch:      u.branch,
		State:       u.state.String(),
		Current:     u.current,
		Backup:      u.backup,
		Candidate:   u.candidate,
		VerdictAt:   u.verdictAt,
		RollbackDue: u.rollbackDue,
		LastCheck:   u.lastCheck,
		Rejected:    u.rejectedList(),
		SelfPaths:   u.self.Entries(),
		Started:     u.started,
	}
	if u.ctl != nil {
		s.Strategy = u.ctl.Strategy().String()
	}
	if u.lastErr != nil {
		s.LastError = u.lastErr.Error()
	}
	u.mx.Lock()
	u.serial++
	s.Serial = u.serial
	u.status = s
	u.cv.Broadcast()
	u.mx.Unlock()
}

// Status returns the latest snapshot.
func (u *Updater) Status() Status {
	u.mx.Lock()
	defer u.mx.Unlock()
	return u.status
}

// WatchStatus waits until the snapshot serial differs from last, expire
// elapses or ctx is done, and returns the serial at that point.
func (u *Updater) WatchStatus(ctx context.Context, last int64, expire time.Duration) int64 {
	u.mx.Lock()
	defer u.mx.Unlock()
	waitCond(ctx, u.cv, expire, func() bool { return u.serial != last })
	return u.serial
}
