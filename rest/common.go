// Copyright 2015 The Govisor Authors
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

package rest

import (
	"github.com/upvisor/upvisor"
)

const (
	mimeJson = "application/json; charset=UTF-8"

	// PollTimeHeader asks the server to hold a request whose
	// If-None-Match Etag is still current for up to this many seconds,
	// answering as soon as something changes.
	PollTimeHeader = "X-Upvisor-Poll-Time"

	// MaxPollTime bounds PollTimeHeader.
	MaxPollTime = 300
)

// StatusInfo is the body of GET /status.
type StatusInfo = upvisor.Status

// LogRecord is one line of GET /log.
type LogRecord = upvisor.LogRecord

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}
