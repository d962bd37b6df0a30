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

package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/upvisor/upvisor"
)

type fakeUpdater struct {
	st      upvisor.Status
	checks  int
	bumpOn  bool // WatchStatus advances the serial, as if an event arrived
	watched int
	sync.Mutex
}

func (f *fakeUpdater) Status() upvisor.Status {
	f.Lock()
	defer f.Unlock()
	return f.st
}

func (f *fakeUpdater) WatchStatus(ctx context.Context, last int64, expire time.Duration) int64 {
	f.Lock()
	defer f.Unlock()
	f.watched++
	if f.bumpOn && f.st.Serial == last {
		f.st.Serial++
		f.st.State = upvisor.StateRestarting.String()
	}
	return f.st.Serial
}

func (f *fakeUpdater) CheckNow() bool {
	f.Lock()
	defer f.Unlock()
	f.checks++
	return f.checks == 1
}

func TestHandler(t *testing.T) {
	Convey("Given a handler in front of an updater", t, func() {
		fu := &fakeUpdater{st: upvisor.Status{
			Name:    "shop",
			Branch:  "main",
			State:   upvisor.StateIdle.String(),
			Current: "abc123",
			Serial:  7,
		}}
		lg := upvisor.NewLog(10)
		srv := httptest.NewServer(NewHandler(fu, lg, time.Hour))
		defer srv.Close()
		c := NewClient(nil, srv.URL+"/")
		ctx := context.Background()

		Convey("Status returns the snapshot", func() {
			st, e := c.Status(ctx)
			So(e, ShouldBeNil)
			So(st.Name, ShouldEqual, "shop")
			So(st.Current, ShouldEqual, upvisor.Revision("abc123"))
			So(st.Serial, ShouldEqual, 7)
			So(st.State, ShouldEqual, "idle")

			Convey("An unchanged status is not resent", func() {
				again, e := c.pollStatus(ctx, 0, st)
				So(e, ShouldBeNil)
				So(again, ShouldEqual, st)
				So(fu.watched, ShouldEqual, 0)
			})

			Convey("A watch returns the newer status", func() {
				fu.bumpOn = true
				nst, e := c.WatchStatus(ctx, st)
				So(e, ShouldBeNil)
				So(nst.Serial, ShouldEqual, 8)
				So(nst.State, ShouldEqual, "restarting")
				So(fu.watched, ShouldEqual, 1)
			})
		})

		Convey("The log is served and watched", func() {
			lg.Write([]byte("first\nsecond\n"))
			li, e := c.GetLog(ctx)
			So(e, ShouldBeNil)
			So(len(li.Records), ShouldEqual, 2)
			So(li.Records[1].Text, ShouldEqual, "second")

			done := make(chan *LogInfo, 1)
			go func() {
				nli, _ := c.WatchLog(ctx, li)
				done <- nli
			}()
			time.Sleep(100 * time.Millisecond)
			lg.Write([]byte("third"))
			var nli *LogInfo
			select {
			case nli = <-done:
			case <-time.After(5 * time.Second):
			}
			So(nli, ShouldNotBeNil)
			So(len(nli.Records), ShouldEqual, 3)
			So(nli.Records[2].Text, ShouldEqual, "third")
		})

		Convey("Manual checks are rate limited", func() {
			queued, e := c.Check(ctx)
			So(e, ShouldBeNil)
			So(queued, ShouldBeTrue)

			_, e = c.Check(ctx)
			So(e, ShouldNotBeNil)
			re, ok := e.(*Error)
			So(ok, ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusTooManyRequests)
			So(fu.checks, ShouldEqual, 1)
		})

		Convey("Metrics are exposed", func() {
			res, e := http.Get(srv.URL + "/metrics")
			So(e, ShouldBeNil)
			res.Body.Close()
			So(res.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("Unknown methods are refused", func() {
			res, e := http.Post(srv.URL+"/status", "text/plain", nil)
			So(e, ShouldBeNil)
			res.Body.Close()
			So(res.StatusCode, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestHandlerAuth(t *testing.T) {
	Convey("Given a handler that requires credentials", t, func() {
		fu := &fakeUpdater{st: upvisor.Status{Name: "shop", State: upvisor.StateIdle.String(), Serial: 1}}
		h := NewHandler(fu, upvisor.NewLog(10), time.Hour)
		h.RequireAuth("ops", "s3cret")
		srv := httptest.NewServer(h)
		defer srv.Close()
		ctx := context.Background()

		Convey("Anonymous requests are refused", func() {
			_, e := NewClient(nil, srv.URL+"/").Status(ctx)
			So(e, ShouldNotBeNil)
			re, ok := e.(*Error)
			So(ok, ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusUnauthorized)

			res, e := http.Get(srv.URL + "/metrics")
			So(e, ShouldBeNil)
			res.Body.Close()
			So(res.StatusCode, ShouldEqual, http.StatusUnauthorized)
			So(res.Header.Get("WWW-Authenticate"), ShouldContainSubstring, "Basic")
		})

		Convey("Wrong passwords are refused", func() {
			c := NewClient(nil, srv.URL+"/")
			c.SetAuth("ops", "guess")
			_, e := c.Check(ctx)
			So(e, ShouldNotBeNil)
			So(fu.checks, ShouldEqual, 0)
		})

		Convey("The right credentials are accepted", func() {
			c := NewClient(nil, srv.URL+"/")
			c.SetAuth("ops", "s3cret")
			st, e := c.Status(ctx)
			So(e, ShouldBeNil)
			So(st.Name, ShouldEqual, "shop")
			queued, e := c.Check(ctx)
			So(e, ShouldBeNil)
			So(queued, ShouldBeTrue)
		})
	})
}
