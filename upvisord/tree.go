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

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"
	"golang.org/x/net/netutil"

	"github.com/upvisor/upvisor/rest"
)

const (
	maxConns        = 64
	shutdownTimeout = 5 * time.Second
	checkEvery      = 5 * time.Second
)

// run serves the tree until ctx ends or the tree gives up.  Serve only
// returns once every service has stopped, or failed to.  The result is the
// exit status: 0 for a requested stop, 1 for a failure.
func run(ctx context.Context, root *suture.Supervisor, logger *log.Logger) int {
	if e := root.Serve(ctx); e != nil && ctx.Err() == nil {
		logger.Printf("ERROR: supervisor tree stopped: %v", e)
		return 1
	}
	return 0
}

// newTree returns the root supervisor.  Events are logged through logger,
// so they also show up in the REST log.
func newTree(logger *log.Logger) *suture.Supervisor {
	return suture.New("upvisord", suture.Spec{
		EventHook: func(ev suture.Event) {
			switch ev := ev.(type) {
			case suture.EventServicePanic:
				logger.Printf("ERROR: %s panicked: %s", ev.ServiceName, ev.PanicMsg)
			case suture.EventServiceTerminate:
				logger.Printf("Service %s terminated: %v", ev.ServiceName, ev.Err)
			case suture.EventBackoff:
				logger.Printf("Supervisor %s backing off", ev.SupervisorName)
			case suture.EventResume:
				logger.Printf("Supervisor %s resuming", ev.SupervisorName)
			case suture.EventStopTimeout:
				logger.Printf("ERROR: %s did not stop in time", ev.ServiceName)
			}
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
}

// httpService runs the REST surface as a supervised service.  The listener
// is bounded so a stuck client cannot pile up long polls.
type httpService struct {
	addr   string
	server *http.Server
	logger *log.Logger
}

func newHTTPService(addr string, h *rest.Handler, logger *log.Logger) *httpService {
	return &httpService{
		addr: addr,
		server: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          logger,
		},
		logger: logger,
	}
}

func (h *httpService) Serve(ctx context.Context) error {
	l, e := net.Listen("tcp", h.addr)
	if e != nil {
		return fmt.Errorf("http listen on %s: %w", h.addr, e)
	}
	h.logger.Printf("Serving status on http://%s", l.Addr())

	errCh := make(chan error, 1)
	go func() {
		e := h.server.Serve(netutil.LimitListener(l, maxConns))
		if e != nil && !errors.Is(e, http.ErrServerClosed) {
			errCh <- e
		}
		close(errCh)
	}()

	select {
	case e := <-errCh:
		if e != nil {
			return fmt.Errorf("http server failed: %w", e)
		}
		return nil
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Long polls watch the request context, which Shutdown does
		// not cancel; Close does.
		if e := h.server.Shutdown(sctx); e != nil {
			h.server.Close()
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *httpService) String() string {
	return "http"
}
