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
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestHandoff(t *testing.T) {
	Convey("Given a handoff path", t, func() {
		path := filepath.Join(t.TempDir(), "handoff.json")

		Convey("Nothing there is not an error", func() {
			h, e := TakeHandoff(path)
			So(e, ShouldBeNil)
			So(h, ShouldBeNil)
		})

		Convey("A record can be taken exactly once", func() {
			due := time.Now().Add(time.Minute).Round(time.Millisecond)
			So(WriteHandoff(path, &Handoff{
				Current:   "B",
				Backup:    "A",
				VerdictAt: due,
				Rejected:  []Revision{"X", "Y"},
				Written:   time.Now(),
			}), ShouldBeNil)

			h, e := TakeHandoff(path)
			So(e, ShouldBeNil)
			So(h, ShouldNotBeNil)
			So(h.Current, ShouldEqual, Revision("B"))
			So(h.Backup, ShouldEqual, Revision("A"))
			So(h.VerdictAt.Equal(due), ShouldBeTrue)
			So(h.Rejected, ShouldResemble, []Revision{"X", "Y"})

			h, e = TakeHandoff(path)
			So(e, ShouldBeNil)
			So(h, ShouldBeNil)
		})

		Convey("A corrupt record is an error and is discarded", func() {
			So(os.WriteFile(path, []byte("{not json"), 0644), ShouldBeNil)
			h, e := TakeHandoff(path)
			So(e, ShouldNotBeNil)
			So(h, ShouldBeNil)
			_, e = os.Stat(path)
			So(os.IsNotExist(e), ShouldBeTrue)
		})
	})
}
