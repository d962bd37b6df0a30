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

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"
)

// KeyBar shows the available keys.  Text in brackets is highlighted.
type KeyBar struct {
	once sync.Once
	views.SimpleStyledTextBar
}

func (k *KeyBar) Init() {
	k.once.Do(func() {
		normal := tcell.StyleDefault.
			Foreground(tcell.ColorBlack).
			Background(tcell.ColorSilver)
		alternate := tcell.StyleDefault.
			Foreground(tcell.ColorBlue).
			Background(tcell.ColorSilver).Bold(true)

		k.SimpleStyledTextBar.Init()
		k.SimpleStyledTextBar.SetStyle(normal)
		k.RegisterLeftStyle('N', normal)
		k.RegisterLeftStyle('A', alternate)
	})
}

// keyMarkup converts "[Q] Quit" style words into styled bar markup.
func keyMarkup(words []string) string {
	b := make([]rune, 0, 80)
	for i, w := range words {
		esc := false
		if i != 0 && len(w) != 0 {
			b = append(b, ' ')
		}
		for _, r := range w {
			switch {
			case r == '%':
				b = append(b, '%', '%')
			case esc && r == ']':
				b = append(b, '%', 'N', r)
				esc = false
			case !esc && r == '[':
				b = append(b, r, '%', 'A')
				esc = true
			default:
				b = append(b, r)
			}
		}
	}
	return string(b)
}

func (k *KeyBar) SetKeys(words []string) {
	k.SetLeft(keyMarkup(words))
}

func NewKeyBar() *KeyBar {
	kb := &KeyBar{}
	kb.Init()
	return kb
}
