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
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	DefaultCommandTimeout = time.Minute
)

// lineLogger is an io.Writer that logs each complete line it is given with
// a prefix, in the manner of the stdout> and stderr> lines of a process.
type lineLogger struct {
	logger *log.Logger
	prefix string
	buf    []byte
	lock   sync.Mutex
}

func (w *lineLogger) Write(b []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.buf = append(w.buf, b...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logger.Print(w.prefix, strings.TrimRight(string(w.buf[:i]), "\r"))
		w.buf = w.buf[i+1:]
	}
	return len(b), nil
}

// Flush logs any trailing partial line.
func (w *lineLogger) Flush() {
	w.lock.Lock()
	if len(w.buf) != 0 {
		w.logger.Print(w.prefix, string(w.buf))
		w.buf = nil
	}
	w.lock.Unlock()
}

// runner executes short lived external commands, each bounded by a
// timeout.  Standard error is logged; standard output is returned.
type runner struct {
	dir     string
	timeout time.Duration
	logger  *log.Logger
}

func (r *runner) run(ctx context.Context, argv ...string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, ErrNoCommand
	}
	d := r.timeout
	if d <= 0 {
		d = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	stdout := &bytes.Buffer{}
	stderr := &lineLogger{logger: r.logger, prefix: argv[0] + " stderr> "}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Do not wait forever on grandchildren (ssh) holding our pipes.
	cmd.WaitDelay = 5 * time.Second

	e := cmd.Run()
	stderr.Flush()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%s after %v: %w", strings.Join(argv, " "), d, ErrTimeout)
	}
	if e != nil {
		return nil, fmt.Errorf("%s: %v", strings.Join(argv, " "), e)
	}
	return stdout.Bytes(), nil
}
