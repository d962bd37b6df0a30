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
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSelfPaths(t *testing.T) {
	Convey("Given self paths with files and a directory", t, func() {
		sp := NewSelfPaths([]string{
			"upvisor.yaml",
			"./scripts/deploy.sh",
			"tools/upvisor/",
			"",
			"/",
		})

		Convey("Exact files match", func() {
			So(sp.Contains("upvisor.yaml"), ShouldBeTrue)
			So(sp.Contains("scripts/deploy.sh"), ShouldBeTrue)
		})
		Convey("Substrings do not match", func() {
			So(sp.Contains("src/upvisor.yaml"), ShouldBeFalse)
			So(sp.Contains("upvisor.yaml.orig"), ShouldBeFalse)
			So(sp.Contains("tools/upvisor"), ShouldBeFalse)
			So(sp.Contains("tools/upvisorx/a"), ShouldBeFalse)
		})
		Convey("Directory entries cover everything below", func() {
			So(sp.Contains("tools/upvisor/a.sh"), ShouldBeTrue)
			So(sp.Contains("tools/upvisor/lib/b.sh"), ShouldBeTrue)
		})
		Convey("A root entry is ignored", func() {
			So(sp.Contains("app.js"), ShouldBeFalse)
		})
		Convey("Entries are listed in normal form", func() {
			So(sp.Entries(), ShouldResemble, []string{
				"scripts/deploy.sh", "tools/upvisor/", "upvisor.yaml",
			})
		})

		Convey("Classify", func() {
			So(sp.Classify([]string{"upvisor.yaml"}), ShouldEqual, Skip)
			So(sp.Classify([]string{"upvisor.yaml", "tools/upvisor/x"}), ShouldEqual, Skip)
			So(sp.Classify([]string{"upvisor.yaml", "app.js"}), ShouldEqual, Apply)
			So(sp.Classify(nil), ShouldEqual, Skip)
		})
	})

	Convey("A nil set contains nothing", t, func() {
		var sp *SelfPaths
		So(sp.Contains("a"), ShouldBeFalse)
		So(sp.Classify([]string{"a"}), ShouldEqual, Apply)
	})

	Convey("Short revisions", t, func() {
		So(Revision("").Short(), ShouldEqual, "(none)")
		So(Revision("abc").Short(), ShouldEqual, "abc")
		So(Revision("0123456789abcdef").Short(), ShouldEqual, "0123456789")
	})

	Convey("Decisions have names", t, func() {
		So(Apply.String(), ShouldEqual, "apply")
		So(Skip.String(), ShouldEqual, "skip")
	})
}
