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

// Package ui is the terminal interface of the upvisor client.  It shows
// the updater status on one screen and the daemon log on another, both
// kept current by long polling the daemon.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/upvisor/upvisor/rest"
	"github.com/upvisor/upvisor/upvisor/util"
)

type App struct {
	app     *views.Application
	view    views.View
	panel   views.Widget
	main    *MainPanel
	log     *LogPanel
	help    *HelpPanel
	client  *rest.Client
	url     string
	status  *rest.StatusInfo
	err     error
	logInfo *rest.LogInfo
	logErr  error
	note    string // outcome of the last operator action
	ctx     context.Context
	cancel  context.CancelFunc

	views.WidgetWatchers
}

func (a *App) show(w views.Widget) {
	if w != a.panel {
		a.panel.SetView(nil)
		a.panel = w
	}
	a.panel.SetView(a.view)
	a.panel.Resize()
	a.app.Refresh()
}

func (a *App) ShowHelp() {
	a.show(a.help)
}

func (a *App) ShowLog() {
	a.show(a.log)
}

func (a *App) ShowMain() {
	a.show(a.main)
}

// Check asks the daemon for an immediate poll.  The outcome shows up in
// the status bar.
func (a *App) Check() {
	a.note = "Requesting check ..."
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		queued, e := a.client.Check(ctx)
		cancel()
		a.app.PostFunc(func() {
			switch {
			case e != nil:
				a.note = fmt.Sprintf("Check failed: %v", e)
			case queued:
				a.note = "Check queued"
			default:
				a.note = "Check already pending"
			}
			a.app.Update()
		})
	}()
}

func (a *App) Quit() {
	a.cancel()
	a.app.Quit()
}

func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		// Intercept a few control keys up front, for global handling.
		case tcell.KeyCtrlC:
			a.Quit()
			return true
		case tcell.KeyCtrlL:
			a.app.Refresh()
			return true
		}
	}

	if a.panel != nil {
		return a.panel.HandleEvent(ev)
	}
	return false
}

func (a *App) Draw() {
	if a.panel != nil {
		a.panel.Draw()
	}
}

func (a *App) Resize() {
	if a.panel != nil {
		a.panel.Resize()
	}
}

func (a *App) SetView(view views.View) {
	a.view = view
	if a.panel != nil {
		a.panel.SetView(view)
	}
}

func (a *App) Size() (int, int) {
	if a.panel != nil {
		return a.panel.Size()
	}
	return 0, 0
}

func (a *App) URL() string {
	return a.url
}

func (a *App) GetAppName() string {
	return "Upvisor"
}

func (a *App) GetStatus() (*rest.StatusInfo, error) {
	return a.status, a.err
}

func (a *App) GetLog() (*rest.LogInfo, error) {
	return a.logInfo, a.logErr
}

// updateTitles shows the updater state in every panel's title bar.
func (a *App) updateTitles() {
	name, state, c := a.GetAppName(), "", util.Normal
	if a.status != nil {
		name, state = a.status.Name, a.status.State
		_, c = util.Summary(a.status)
	}
	if a.err != nil {
		state, c = "unreachable", util.Bad
	}
	for _, p := range []*Panel{&a.main.Panel, &a.log.Panel, &a.help.Panel} {
		p.SetState(name, state, c)
	}
}

func (a *App) Note() string {
	return a.note
}

func NewApp(client *rest.Client, url string) *App {
	app := &App{}
	app.app = &views.Application{}
	app.client = client
	app.url = url
	app.ctx, app.cancel = context.WithCancel(context.Background())
	app.help = NewHelpPanel(app)
	app.log = NewLogPanel(app)
	app.main = NewMainPanel(app)
	app.panel = app.main
	return app
}

// refresh keeps the status current.
func (a *App) refresh() {
	var st *rest.StatusInfo
	var e error
	for a.ctx.Err() == nil {
		if st == nil {
			st, e = a.client.Status(a.ctx)
		} else {
			st, e = a.client.WatchStatus(a.ctx, st)
		}
		cur, err := st, e
		a.app.PostFunc(func() {
			if cur != nil {
				a.status = cur
			}
			a.err = err
			a.updateTitles()
			a.app.Update()
		})
		if e != nil {
			st = nil
			time.Sleep(2 * time.Second)
		}
	}
}

func (a *App) refreshLog() {
	var info *rest.LogInfo
	var e error
	for a.ctx.Err() == nil {
		if info == nil {
			info, e = a.client.GetLog(a.ctx)
		} else {
			info, e = a.client.WatchLog(a.ctx, info)
		}
		cur, err := info, e
		a.app.PostFunc(func() {
			if cur != nil {
				a.logInfo = cur
			}
			a.logErr = err
			a.app.Update()
		})
		if e != nil {
			info = nil
			time.Sleep(2 * time.Second)
		}
	}
}

func (a *App) Run() error {
	a.app.SetRootWidget(a)
	a.ShowMain()
	go a.refresh()
	go a.refreshLog()
	go func() {
		// The verdict countdown needs periodic redraws.
		for a.ctx.Err() == nil {
			a.app.Update()
			time.Sleep(time.Second)
		}
	}()
	return a.app.Run()
}
