// Copyright 2016 The Govisor Authors
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
	"sync"

	"github.com/gdamore/tcell/v2/views"

	"github.com/upvisor/upvisor/upvisor/util"
)

// Panel is just a wrapper around the views.Panel, but it changes
// the names of elements to match our usage, making it easier (hopefully)
// to grok what is going on.
type Panel struct {
	tb   *TitleBar
	sb   *StatusBar
	kb   *KeyBar
	once sync.Once
	app  *App

	views.Panel
}

func (p *Panel) SetTitle(title string) {
	p.tb.SetTitle(title)
}

func (p *Panel) SetState(name, state string, c util.Condition) {
	p.tb.SetState(name, state, c)
}

func (p *Panel) SetKeys(words []string) {
	p.kb.SetKeys(words)
}

func (p *Panel) SetStatus(status string, c util.Condition) {
	p.sb.SetText(status)
	p.sb.SetCondition(c)
}

func (p *Panel) Init(app *App) {
	p.once.Do(func() {
		p.app = app

		p.tb = NewTitleBar()
		p.tb.SetServer(app.URL())
		p.tb.SetState(app.GetAppName(), "", util.Normal)
		p.tb.SetTitle("")

		p.kb = NewKeyBar()

		p.sb = NewStatusBar()

		p.Panel.SetTitle(p.tb)
		p.Panel.SetMenu(p.sb)
		p.Panel.SetStatus(p.kb)
	})
}

func (p *Panel) App() *App {
	return p.app
}
