package httpclienttest

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/simonswine/jsonnet-exporter/pkg/httpclient"
)

type reply struct {
	resp *http.Response
	err  error
}

// FakeDoer implements httpclient.HTTPDoer so callers can run tests without
// making outbound HTTP requests.
type FakeDoer struct {
	t        testing.TB
	mu       sync.Mutex
	replies  []reply
	requests []*http.Request
}

// NewFakeDoer returns a FakeDoer seeded with the responses that should be
// returned for each Do call.
func NewFakeDoer(t testing.TB, responses ...*http.Response) *FakeDoer {
	f := &FakeDoer{t: t}
	for _, r := range responses {
		f.replies = append(f.replies, reply{resp: r})
	}
	return f
}

// FailNext queues a transport error.
func (f *FakeDoer) FailNext(err error) *FakeDoer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply{err: err})
	return f
}

// Do records the request and returns the next queued reply.
func (f *FakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.replies) == 0 {
		f.t.Fatalf("fake http client has no responses left for request %s %s", req.Method, req.URL.String())
		return nil, io.EOF
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	if r.resp != nil && r.resp.Request == nil {
		r.resp.Request = req
	}
	return r.resp, r.err
}

// Requests returns the HTTP requests captured so far.
func (f *FakeDoer) Requests() []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*http.Request(nil), f.requests...)
}

// NewStringResponse builds a minimal http.Response with the provided status
// code and body string.
func NewStringResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

// NewJSONResponse is NewStringResponse with an application/json content type.
func NewJSONResponse(status int, body string) *http.Response {
	resp := NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "application/json; charset=utf-8")
	return resp
}

var _ httpclient.HTTPDoer = (*FakeDoer)(nil)
