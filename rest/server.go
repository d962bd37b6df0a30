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
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/upvisor/upvisor"
)

// Updater is the part of *upvisor.Updater the handler uses.
type Updater interface {
	Status() upvisor.Status
	WatchStatus(ctx context.Context, last int64, expire time.Duration) int64
	CheckNow() bool
}

// Handler serves the status, log, and metrics of an updater over HTTP.
type Handler struct {
	u     Updater
	log   *upvisor.Log
	r     *mux.Router
	check *rate.Limiter
}

func (h *Handler) internalError(w http.ResponseWriter, e error) {
	http.Error(w, e.Error(), http.StatusInternalServerError)
}

func (h *Handler) writeJson(w http.ResponseWriter, code int, v interface{}) {
	if b, e := json.Marshal(v); e != nil {
		h.internalError(w, e)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.WriteHeader(code)
		w.Write(b)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, e *Error) {
	h.writeJson(w, e.Code, e)
}

func etag(n int64) string {
	return `"` + strconv.FormatInt(n, 10) + `"`
}

// pollArgs extracts the Etag the client already has, if any, and how long
// it is willing to wait for a newer one.
func pollArgs(r *http.Request) (int64, time.Duration, bool) {
	tag := strings.Trim(r.Header.Get("If-None-Match"), `" `)
	if tag == "" {
		return 0, 0, false
	}
	last, e := strconv.ParseInt(tag, 10, 64)
	if e != nil {
		return 0, 0, false
	}
	secs, _ := strconv.Atoi(r.Header.Get(PollTimeHeader))
	if secs > MaxPollTime {
		secs = MaxPollTime
	}
	if secs < 0 {
		secs = 0
	}
	return last, time.Duration(secs) * time.Second, true
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	last, wait, have := pollArgs(r)
	if have && wait > 0 {
		h.u.WatchStatus(r.Context(), last, wait)
	}
	st := h.u.Status()
	if have && st.Serial == last {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Etag", etag(st.Serial))
	h.writeJson(w, http.StatusOK, st)
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	last, wait, have := pollArgs(r)
	if !have {
		last = 0
	} else if wait > 0 {
		h.log.Watch(r.Context(), last, wait)
	}
	recs, id := h.log.Records(last)
	if have && recs == nil && id == last {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if recs == nil {
		recs = []upvisor.LogRecord{}
	}
	w.Header().Set("Etag", etag(id))
	h.writeJson(w, http.StatusOK, recs)
}

func (h *Handler) postCheck(w http.ResponseWriter, r *http.Request) {
	if !h.check.Allow() {
		h.writeError(w, &Error{http.StatusTooManyRequests, "Checking too often"})
		return
	}
	queued := h.u.CheckNow()
	h.writeJson(w, http.StatusAccepted, map[string]bool{"queued": queued})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.r.ServeHTTP(w, req)
}

// NewHandler returns the HTTP surface for u.  Manual checks are limited to
// one every checkEvery, so a busy client cannot hammer the git remote.
// RequireAuth makes every route demand HTTP basic credentials.
func (h *Handler) RequireAuth(user, pass string) {
	h.r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
				subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="upvisor"`)
				h.writeError(w, &Error{Code: http.StatusUnauthorized, Message: "Authentication required"})
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func NewHandler(u Updater, log *upvisor.Log, checkEvery time.Duration) *Handler {
	if checkEvery <= 0 {
		checkEvery = 5 * time.Second
	}
	r := mux.NewRouter()
	h := &Handler{
		u:     u,
		log:   log,
		r:     r,
		check: rate.NewLimiter(rate.Every(checkEvery), 1),
	}
	r.HandleFunc("/status", h.getStatus).Methods("GET")
	r.HandleFunc("/log", h.getLog).Methods("GET")
	r.HandleFunc("/check", h.postCheck).Methods("POST")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return h
}
