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

package ui

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/upvisor/upvisor/upvisor/util"
)

func TestTitleBar(t *testing.T) {
	Convey("Given a title bar", t, func() {
		tb := NewTitleBar()

		Convey("Without a state only the name shows", func() {
			tb.SetState("Upvisor", "", util.Normal)
			So(tb.right(), ShouldEqual, "Upvisor")
		})
		Convey("The state is colored by its condition", func() {
			tb.SetState("shop", "idle", util.Good)
			So(tb.right(), ShouldEqual, "shop [%Gidle%N]")
			tb.SetState("shop", "awaiting-verdict", util.Warn)
			So(tb.right(), ShouldEqual, "shop [%Wawaiting-verdict%N]")
			tb.SetState("shop", "unreachable", util.Bad)
			So(tb.right(), ShouldEqual, "shop [%Bunreachable%N]")
		})
		Convey("Names cannot inject markup", func() {
			tb.SetState("100%", "idle", util.Normal)
			So(tb.right(), ShouldEqual, "100%% [%Nidle%N]")
		})
		Convey("The server is remembered", func() {
			tb.SetServer("http://127.0.0.1:8322")
			So(tb.server, ShouldEqual, "http://127.0.0.1:8322")
		})
	})
}
