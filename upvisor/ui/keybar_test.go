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
)

func TestKeyMarkup(t *testing.T) {
	Convey("Bracketed keys are highlighted", t, func() {
		So(keyMarkup([]string{"[Q] Quit", "[L] Log"}), ShouldEqual,
			"[%AQ%N] Quit [%AL%N] Log")
	})
	Convey("Percent signs are escaped", t, func() {
		So(keyMarkup([]string{"100%"}), ShouldEqual, "100%%")
	})
	Convey("Empty words add no space", t, func() {
		So(keyMarkup([]string{"[Q] Quit", ""}), ShouldEqual, "[%AQ%N] Quit")
	})
}
