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
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// LogInfo is a snapshot of the daemon log along with its Etag.
type LogInfo struct {
	etag    string
	Records []LogRecord
}

// Client talks to an upvisord over HTTP.  It caches the most recent status
// and log it has seen, so that watchers can long poll against them.
type Client struct {
	user   string // HTTP Basic-Auth
	pass   string
	base   string // URI to root of tree on server
	auth   bool
	client *http.Client

	status *StatusInfo
	setag  string
	log    *LogInfo
	lock   sync.Mutex
}

func (c *Client) SetAuth(user string, pass string) {
	c.user = user
	c.pass = pass
	c.auth = true
}

func (c *Client) pollStatus(ctx context.Context, secs int, last *StatusInfo) (*StatusInfo, error) {
	c.lock.Lock()
	cached, otag := c.status, c.setag
	c.lock.Unlock()

	if last == nil {
		secs = 0
		otag = ""
	} else if cached != nil && cached.Serial != last.Serial {
		// Caller is behind our cache; no need to ask.
		return cached, nil
	} else {
		otag = etag(last.Serial)
	}

	v := &StatusInfo{}
	tag, e := c.poll(ctx, c.base+"/status", otag, secs, v)
	if e != nil {
		return nil, e
	}
	if tag == "" {
		return last, nil
	}
	c.lock.Lock()
	c.status = v
	c.setag = tag
	c.lock.Unlock()
	return v, nil
}

// Status returns the current status without waiting.
func (c *Client) Status(ctx context.Context) (*StatusInfo, error) {
	return c.pollStatus(ctx, 0, nil)
}

// WatchStatus waits for the status to move past last.  If nothing changes
// before the server gives up, last is returned.
func (c *Client) WatchStatus(ctx context.Context, last *StatusInfo) (*StatusInfo, error) {
	return c.pollStatus(ctx, MaxPollTime, last)
}

func (c *Client) pollLog(ctx context.Context, secs int, last *LogInfo) (*LogInfo, error) {
	otag := ""
	if last == nil {
		secs = 0
	} else {
		otag = last.etag
	}

	v := &LogInfo{}
	tag, e := c.poll(ctx, c.base+"/log", otag, secs, &v.Records)
	if e != nil {
		return nil, e
	}
	if tag == "" {
		return last, nil
	}
	v.etag = tag
	c.lock.Lock()
	c.log = v
	c.lock.Unlock()
	return v, nil
}

// GetLog returns the daemon log without waiting.
func (c *Client) GetLog(ctx context.Context) (*LogInfo, error) {
	return c.pollLog(ctx, 0, nil)
}

// WatchLog waits for lines newer than last.
func (c *Client) WatchLog(ctx context.Context, last *LogInfo) (*LogInfo, error) {
	return c.pollLog(ctx, MaxPollTime, last)
}

// Check asks the daemon to poll the remote now.  The result reports
// whether a new check was queued, as opposed to one already pending.
func (c *Client) Check(ctx context.Context) (bool, error) {
	var v struct {
		Queued bool `json:"queued"`
	}
	if e := c.post(ctx, c.base+"/check", &v); e != nil {
		return false, e
	}
	return v.Queued, nil
}

func (c *Client) decodeError(res *http.Response) error {
	body, _ := io.ReadAll(res.Body)
	e := &Error{}
	if json.Unmarshal(body, e) != nil || e.Message == "" {
		e.Code = res.StatusCode
		e.Message = res.Status
	}
	return e
}

// poll issues an HTTP GET against the URL, optionally checking for a cache,
// including optionally issuing a long poll that tries to wait until the
// value changes.  The return values are the new Etag and any error.  If the
// value did not change, then the returned etag will be "", but the error will
// be nil.
func (c *Client) poll(ctx context.Context, url string, etag string, wait int, v interface{}) (string, error) {
	req, e := http.NewRequestWithContext(ctx, "GET", url, nil)
	if e != nil {
		return "", e
	}
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
		if wait > 0 {
			req.Header.Set(PollTimeHeader, strconv.Itoa(wait))
		}
	}
	res, e := c.client.Do(req)
	if e != nil {
		return "", e
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotModified {
		return "", nil
	}
	if res.StatusCode != http.StatusOK {
		return "", c.decodeError(res)
	}
	body, e := io.ReadAll(res.Body)
	if e != nil {
		return "", e
	}
	if e := json.Unmarshal(body, v); e != nil {
		return "", e
	}
	return res.Header.Get("Etag"), nil
}

func (c *Client) post(ctx context.Context, url string, v interface{}) error {
	req, e := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(""))
	if e != nil {
		return e
	}
	req.Header.Set("Content-Type", "text/plain") // we don't really care
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	res, e := c.client.Do(req)
	if e != nil {
		return e
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusAccepted {
		return c.decodeError(res)
	}
	body, e := io.ReadAll(res.Body)
	if e != nil {
		return e
	}
	return json.Unmarshal(body, v)
}

// NewClient returns a Client handle.  The transport maybe nil to use
// a default transport, but it may also be adjusted to support additional
// options such as TLS.  baseURI is the base URL to use.
func NewClient(t *http.Transport, baseURI string) *Client {
	if t == nil {
		t = &http.Transport{}
	}
	return &Client{
		base: strings.TrimSuffix(baseURI, "/"),
		// Long polls run up to MaxPollTime; leave headroom.
		client: &http.Client{
			Transport: t,
			Timeout:   (MaxPollTime + 30) * time.Second,
		},
	}
}
