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

package upvisor

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	MaxLogRecords = 1000
)

type LogRecord struct {
	Id   int64     `json:"id,string"`
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Log is a bounded in-memory ring of log lines.  It implements io.Writer,
// so that it can sit behind a log.Logger, and it lets readers wait for new
// lines.  The id of the newest record doubles as an Etag.
type Log struct {
	records []LogRecord
	count   int // records ever written; count%len(records) is next slot
	id      int64
	cv      *sync.Cond
	mx      sync.Mutex
}

// Write implements io.Writer.  Each newline separated line becomes its
// own record.
func (l *Log) Write(b []byte) (int, error) {
	str := strings.Trim(string(b), "\n")
	now := time.Now()
	l.mx.Lock()
	for _, line := range strings.Split(str, "\n") {
		rec := &l.records[l.count%len(l.records)]
		l.id++
		rec.Id = l.id
		rec.Time = now
		rec.Text = line
		l.count++
	}
	l.cv.Broadcast()
	l.mx.Unlock()
	return len(b), nil
}

// Records returns the stored records, oldest first, along with the Etag
// for them.  If last matches the current Etag, nil is returned since
// nothing changed.
func (l *Log) Records(last int64) ([]LogRecord, int64) {
	l.mx.Lock()
	defer l.mx.Unlock()
	if l.id == last {
		return nil, last
	}
	n := l.count
	if n > len(l.records) {
		n = len(l.records)
	}
	recs := make([]LogRecord, 0, n)
	for i := l.count - n; i < l.count; i++ {
		recs = append(recs, l.records[i%len(l.records)])
	}
	return recs, l.id
}

// Watch waits until the Etag differs from last, expire elapses, or ctx
// is done, and returns the Etag in effect at that point.  An expire of
// zero polls.
func (l *Log) Watch(ctx context.Context, last int64, expire time.Duration) int64 {
	l.mx.Lock()
	defer l.mx.Unlock()
	waitCond(ctx, l.cv, expire, func() bool { return l.id != last })
	return l.id
}

// waitCond waits on cv, whose lock the caller holds, until done reports
// true, expire has elapsed, or ctx is done.
func waitCond(ctx context.Context, cv *sync.Cond, expire time.Duration, done func() bool) {
	if expire <= 0 || done() {
		return
	}
	expired := false
	wake := func() {
		cv.L.Lock()
		expired = true
		cv.Broadcast()
		cv.L.Unlock()
	}
	timer := time.AfterFunc(expire, wake)
	stop := context.AfterFunc(ctx, wake)
	for !expired && !done() {
		cv.Wait()
	}
	stop()
	timer.Stop()
}

// NewLog returns a Log holding at most max records.  Ids start from the
// current time, so that a client holding an Etag from an earlier process
// will not mistake a new log for an unchanged one.
func NewLog(max int) *Log {
	if max <= 0 {
		max = MaxLogRecords
	}
	l := &Log{
		records: make([]LogRecord, max),
		id:      time.Now().UnixNano(),
	}
	l.cv = sync.NewCond(&l.mx)
	return l
}
