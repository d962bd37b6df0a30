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

// Command upvisor talks to a running upvisord.
//
// The flags are
//
//	-a <address>	- daemon URL, default is http://127.0.0.1:8322
//	-u <user:pass>	- user name & password for basic auth
//
// Subcommands are
//
//	status  - show the updater status
//	log     - print the daemon log
//	check   - ask the daemon to poll the remote now
//	ui      - full screen status and log view (the default)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/upvisor/upvisor/rest"
	"github.com/upvisor/upvisor/upvisor/ui"
	"github.com/upvisor/upvisor/upvisor/util"
)

var addr string = "http://127.0.0.1:8322"
var auth string = ""

func usage() {
	log.Fatalf("Usage: %s [-a <address>] [-u <user:pass>] [status|log|check|ui]",
		os.Args[0])
}

func main() {
	flag.StringVar(&addr, "a", addr, "upvisord address")
	flag.StringVar(&auth, "u", auth, "user:pass authentication")
	flag.Parse()

	client := rest.NewClient(nil, addr)
	if auth != "" {
		a := strings.SplitN(auth, ":", 2)
		if len(a) != 2 {
			log.Fatalf("Bad user:pass supplied")
		}
		client.SetAuth(a[0], a[1])
	}

	args := flag.Args()
	if len(args) == 0 {
		args = []string{"ui"}
	}
	if len(args) != 1 {
		usage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		s, e := client.Status(ctx)
		if e != nil {
			log.Fatalf("Failed: %v", e)
		}
		for _, line := range util.Describe(s, time.Now()) {
			fmt.Println(line)
		}
	case "log":
		l, e := client.GetLog(ctx)
		if e != nil {
			log.Fatalf("Failed: %v", e)
		}
		for _, r := range l.Records {
			fmt.Printf("%s %s\n", r.Time.Format(time.StampMilli), r.Text)
		}
	case "check":
		queued, e := client.Check(ctx)
		if e != nil {
			log.Fatalf("Failed: %v", e)
		}
		if queued {
			fmt.Println("Check queued")
		} else {
			fmt.Println("Check already pending")
		}
	case "ui":
		if e := ui.NewApp(client, addr).Run(); e != nil {
			log.Fatalf("Failed: %v", e)
		}
	default:
		usage()
	}
}
