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
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func writeBeat(t *testing.T, path string, at time.Time) {
	b := []byte(strconv.FormatInt(at.UnixMilli(), 10) + "\n")
	if e := os.WriteFile(path, b, 0644); e != nil {
		t.Fatalf("write heartbeat: %v", e)
	}
}

func TestLivenessMonitor(t *testing.T) {
	Convey("Given a liveness monitor with a 20s timeout", t, func() {
		path := filepath.Join(t.TempDir(), ".alive")
		now := time.Now()
		m := NewLivenessMonitor(path, 20*time.Second)
		m.now = func() time.Time { return now }

		Convey("A beat 25s old is unhealthy", func() {
			writeBeat(t, path, now.Add(-25*time.Second))
			So(m.IsHealthy(), ShouldBeFalse)
			So(errors.Is(m.Check(), ErrUnhealthy), ShouldBeTrue)
		})
		Convey("A beat 5s old is healthy", func() {
			writeBeat(t, path, now.Add(-5*time.Second))
			So(m.IsHealthy(), ShouldBeTrue)
		})
		Convey("A beat exactly at the timeout is unhealthy", func() {
			writeBeat(t, path, now.Add(-20*time.Second))
			So(m.IsHealthy(), ShouldBeFalse)
		})
		Convey("A missing file is unhealthy", func() {
			So(m.IsHealthy(), ShouldBeFalse)
			So(errors.Is(m.Check(), ErrHealthRead), ShouldBeTrue)
		})
		Convey("Garbage is unhealthy", func() {
			So(os.WriteFile(path, []byte("not a number"), 0644), ShouldBeNil)
			So(m.IsHealthy(), ShouldBeFalse)
			So(errors.Is(m.Check(), ErrHealthRead), ShouldBeTrue)
		})
		Convey("An empty file is unhealthy", func() {
			So(os.WriteFile(path, nil, 0644), ShouldBeNil)
			So(m.IsHealthy(), ShouldBeFalse)
		})
	})

	Convey("ParseHeartbeat accepts surrounding whitespace", t, func() {
		at, e := ParseHeartbeat([]byte("  1700000000123\r\n"))
		So(e, ShouldBeNil)
		So(at.UnixMilli(), ShouldEqual, 1700000000123)
	})

	Convey("A zero timeout takes the default", t, func() {
		So(NewLivenessMonitor("x", 0).Timeout, ShouldEqual, DefaultHealthTimeout)
	})
}
