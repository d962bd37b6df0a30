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

// LogPanel shows the daemon log, following the tail.
type LogPanel struct {
	text *views.TextArea
	seen int

	Panel
}

func NewLogPanel(app *App) *LogPanel {
	p := &LogPanel{}

	p.Panel.Init(app)

	// We don't change the keybar, so set it once
	p.SetKeys([]string{"[ESC] Main", "[C] Check", "[H] Help"})
	p.SetTitle("Log")

	p.text = views.NewTextArea()
	p.text.EnableCursor(false)
	p.text.SetStyle(StyleNormal)
	p.SetContent(p.text)

	return p
}

func (p *LogPanel) Draw() {
	p.update()
	p.Panel.Draw()
}

func (p *LogPanel) HandleEvent(ev tcell.Event) bool {
	app := p.app
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEsc:
			app.ShowMain()
			return true
		case tcell.KeyF1:
			app.ShowHelp()
			return true
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'Q', 'q':
				app.ShowMain()
				return true
			case 'H', 'h':
				app.ShowHelp()
				return true
			case 'C', 'c':
				app.Check()
				return true
			}
		}
	}
	return p.Panel.HandleEvent(ev)
}

// update must be called from the application goroutine.
func (p *LogPanel) update() {
	info, e := p.app.GetLog()
	if info == nil {
		if e != nil {
			p.SetStatus(fmt.Sprintf("No data: %v", e), util.Bad)
		} else {
			p.SetStatus("Loading ...", util.Normal)
		}
		p.text.SetLines([]string{""})
		return
	}
	if e != nil {
		p.SetStatus(fmt.Sprintf("Connection lost: %v", e), util.Bad)
	} else {
		p.SetStatus(fmt.Sprintf("%d lines", len(info.Records)), util.Normal)
	}

	lines := make([]string, 0, len(info.Records))
	for _, r := range info.Records {
		line := fmt.Sprintf("%s %s",
			r.Time.Format(time.StampMilli), r.Text)
		lines = append(lines, line)
	}
	p.text.SetLines(lines)
	if len(lines) != p.seen {
		// New lines arrived; follow them.
		p.seen = len(lines)
		p.text.MakeVisible(0, len(lines)-1)
	}
}
