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

// Package upvisor keeps a single application running from a git checkout
// and follows its upstream branch.  On every poll it pulls the branch, and
// if the head moved it restarts the application under one of a handful of
// process management strategies.  A fixed grace window later it reads the
// heartbeat file the application maintains, and if the application is not
// alive it resets the checkout to the last revision that was accepted and
// brings that back up instead.
//
// Changes that only touch the updater's own files are absorbed without a
// restart, so that the updater updating itself does not bounce the
// application (or itself) in a loop.
//
// The Updater type owns all of the mutable state, and only ever touches it
// from the goroutine running Serve.  Everything else, such as the REST
// handlers in the rest package, works from Status snapshots.
package upvisor
