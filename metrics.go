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

package upvisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upvisor_polls_total",
		Help: "Poll cycles by result (unchanged, changed, deferred, rejected, failed).",
	}, []string{"result"})

	updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upvisor_updates_total",
		Help: "Detected updates by decision (apply, skip).",
	}, []string{"decision"})

	restartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upvisor_restarts_total",
		Help: "Restarts issued, by reason (update, rollback) and result.",
	}, []string{"reason", "result"})

	verdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upvisor_verdicts_total",
		Help: "Health verdicts by outcome (healthy, unhealthy).",
	}, []string{"outcome"})

	rollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upvisor_rollbacks_total",
		Help: "Rollback attempts by result (ok, failed).",
	}, []string{"result"})

	verdictPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "upvisor_verdict_pending",
		Help: "1 while a health verdict is outstanding.",
	})
)

func result(e error) string {
	if e != nil {
		return "failed"
	}
	return "ok"
}
