// Copyright 2024 The Govisor Authors
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
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/upvisor/upvisor/upvisor/util"
)

// TitleBar shows which daemon we are talking to on the left, the panel
// title in the middle, and the application with its updater state on the
// right, the state colored by its condition.
type TitleBar struct {
	server string
	name   string
	state  string
	cond   util.Condition
	once   sync.Once
	views.SimpleStyledTextBar
}

func (tb *TitleBar) Init() {
	tb.once.Do(func() {
		bg := tcell.ColorSilver
		normal := tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(bg)

		tb.SimpleStyledTextBar.Init()
		tb.SimpleStyledTextBar.SetStyle(normal)
		tb.RegisterLeftStyle('N', normal)
		tb.RegisterLeftStyle('A', normal.Foreground(tcell.ColorBlue))
		tb.RegisterCenterStyle('N', normal.Bold(true))
		tb.RegisterRightStyle('N', normal)
		tb.RegisterRightStyle('G', normal.Foreground(tcell.ColorGreen))
		tb.RegisterRightStyle('W', normal.Foreground(tcell.ColorOlive))
		tb.RegisterRightStyle('B', normal.Foreground(tcell.ColorMaroon))
	})
}

// escape protects text from being read as style markup.
func escape(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}

func (tb *TitleBar) SetServer(url string) {
	tb.server = url
	tb.SetLeft("%A" + escape(url))
}

func (tb *TitleBar) SetTitle(title string) {
	if title == "" {
		title = " "
	}
	tb.SetCenter(escape(title))
}

// SetState records the application name and updater state.  An empty
// state shows just the name.
func (tb *TitleBar) SetState(name, state string, c util.Condition) {
	tb.name, tb.state, tb.cond = name, state, c
	tb.SetRight(tb.right())
}

func (tb *TitleBar) right() string {
	text := escape(tb.name)
	if tb.state == "" {
		return text
	}
	style := "%N"
	switch tb.cond {
	case util.Good:
		style = "%G"
	case util.Warn:
		style = "%W"
	case util.Bad:
		style = "%B"
	}
	return text + " [" + style + escape(tb.state) + "%N]"
}

func NewTitleBar() *TitleBar {
	tb := &TitleBar{}
	tb.Init()
	return tb
}
