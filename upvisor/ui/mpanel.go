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
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/upvisor/upvisor/upvisor/util"
)

var StyleNormal = tcell.StyleDefault.
	Foreground(tcell.ColorSilver).
	Background(tcell.ColorBlack)

// MainPanel shows the updater status.
type MainPanel struct {
	text *views.TextArea

	Panel
}

func NewMainPanel(app *App) *MainPanel {
	m := &MainPanel{}

	m.Panel.Init(app)
	m.text = views.NewTextArea()
	m.text.EnableCursor(false)
	m.text.SetStyle(StyleNormal)
	m.SetContent(m.text)
	m.SetTitle("Status")
	m.SetKeys([]string{"[Q] Quit", "[L] Log", "[C] Check", "[H] Help"})

	return m
}

func (m *MainPanel) Draw() {
	m.update()
	m.Panel.Draw()
}

func (m *MainPanel) HandleEvent(ev tcell.Event) bool {
	app := m.App()
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyF1:
			app.ShowHelp()
			return true
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'Q', 'q':
				app.Quit()
				return true
			case 'H', 'h':
				app.ShowHelp()
				return true
			case 'L', 'l':
				app.ShowLog()
				return true
			case 'C', 'c':
				app.Check()
				return true
			}
		}
	}
	return m.Panel.HandleEvent(ev)
}

// update must be called from the application goroutine.
func (m *MainPanel) update() {
	st, e := m.App().GetStatus()
	if st == nil {
		if e != nil {
			m.SetStatus(fmt.Sprintf("No data: %v", e), util.Bad)
		} else {
			m.SetStatus("Loading ...", util.Normal)
		}
		m.text.SetLines([]string{""})
		return
	}
	msg, c := util.Summary(st)
	if e != nil {
		msg, c = fmt.Sprintf("Connection lost: %v", e), util.Bad
	} else if note := m.App().Note(); note != "" {
		msg = msg + "  (" + note + ")"
	}
	m.SetTitle("Status of " + st.Name)
	m.SetStatus(msg, c)
	m.text.SetLines(util.Describe(st, time.Now()))
}
