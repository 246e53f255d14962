package httpclient

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// HTTPDoer captures the subset of *http.Client the prober relies on.
// Tests inject httpclienttest.FakeDoer to run without outbound requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	Timeout time.Duration
	// ProxyURL is used for http and https targets. When empty the
	// HTTP_PROXY, HTTPS_PROXY and NO_PROXY environment variables apply.
	ProxyURL string
	NoProxy  string
}

// New builds the client used to fetch probe targets.
func New(opts Options) (*http.Client, error) {
	proxy, err := proxyFunc(opts)
	if err != nil {
		return nil, err
	}
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, errors.New("httpclient: unexpected default transport")
	}
	tr := base.Clone()
	tr.Proxy = func(req *http.Request) (*url.URL, error) {
		return proxy(req.URL)
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: tr,
	}, nil
}

func proxyFunc(opts Options) (func(*url.URL) (*url.URL, error), error) {
	p := strings.TrimSpace(opts.ProxyURL)
	if p == "" {
		return httpproxy.FromEnvironment().ProxyFunc(), nil
	}
	u, err := url.Parse(p)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("httpclient: proxy url must include scheme and host")
	}
	cfg := &httpproxy.Config{
		HTTPProxy:  p,
		HTTPSProxy: p,
		NoProxy:    strings.TrimSpace(opts.NoProxy),
	}
	return cfg.ProxyFunc(), nil
}
