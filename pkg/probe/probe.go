package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/simonswine/jsonnet-exporter/pkg/httpclient"
	"github.com/simonswine/jsonnet-exporter/pkg/modules"
)

const (
	ParamModule = "module"
	ParamTarget = "target"

	// ScrapeTimeoutHeader is set by Prometheus to the scrape timeout in seconds.
	ScrapeTimeoutHeader = "X-Prometheus-Scrape-Timeout-Seconds"
)

type Params struct {
	Module string
	Target string
}

// ParseParams requires the module and target query parameters.
func ParseParams(q url.Values) (Params, error) {
	p := Params{
		Module: strings.TrimSpace(q.Get(ParamModule)),
		Target: strings.TrimSpace(q.Get(ParamTarget)),
	}
	if p.Module == "" {
		return Params{}, newError(KindMissingParameter, ParamModule, nil)
	}
	if p.Target == "" {
		return Params{}, newError(KindMissingParameter, ParamTarget, nil)
	}
	return p, nil
}

// ModuleSource resolves a module by name. *modules.Registry implements it.
type ModuleSource interface {
	Module(name string) (*modules.Module, error)
}

type Prober struct {
	Registry ModuleSource
	Client   httpclient.HTTPDoer
	// Timeout bounds the target fetch. Zero leaves only the context deadline.
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
}

// Probe fetches target and evaluates the named module against its body.
// The module is resolved before any network I/O.
func (p *Prober) Probe(ctx context.Context, moduleName, target string) ([]byte, error) {
	if p == nil || p.Registry == nil || p.Client == nil {
		return nil, newError(KindEvaluationFailed, "prober not configured", nil)
	}
	mod, err := p.Registry.Module(moduleName)
	if err != nil {
		if errors.Is(err, modules.ErrModuleNotFound) {
			return nil, newError(KindModuleNotFound, strconv.Quote(moduleName), nil)
		}
		return nil, newError(KindEvaluationFailed, "", err)
	}

	u, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	contentType, body, err := p.fetch(ctx, u)
	if err != nil {
		return nil, err
	}

	input, err := BuildInput(contentType, body)
	if err != nil {
		return nil, err
	}
	out, err := mod.EvaluateValue(ctx, input)
	if err != nil {
		return nil, newError(KindEvaluationFailed, "", err)
	}
	return out, nil
}

// ParseTarget accepts absolute http and https URLs with a host.
func ParseTarget(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, newError(KindInvalidTargetURL, "", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, newError(KindInvalidTargetURL, fmt.Sprintf("unsupported scheme %q", u.Scheme), nil)
	}
	if u.Host == "" {
		return nil, newError(KindInvalidTargetURL, "missing host", nil)
	}
	return u, nil
}

func (p *Prober) fetch(ctx context.Context, u *url.URL) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", nil, newError(KindInvalidTargetURL, "", err)
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return "", nil, newError(KindTargetFetchFailed, u.Redacted(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	r := io.Reader(resp.Body)
	if p.MaxBodyBytes > 0 {
		r = io.LimitReader(resp.Body, p.MaxBodyBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", nil, newError(KindTargetFetchFailed, "read body", err)
	}
	if p.MaxBodyBytes > 0 && int64(len(body)) > p.MaxBodyBytes {
		return "", nil, newError(KindTargetFetchFailed, fmt.Sprintf("body exceeds %d bytes", p.MaxBodyBytes), nil)
	}
	return resp.Header.Get("Content-Type"), body, nil
}

// BuildInput wraps body as the runtime input {"body": value}. JSON bodies
// are parsed, any other body becomes a single string.
func BuildInput(contentType string, body []byte) (map[string]any, error) {
	if !isJSON(contentType) {
		return map[string]any{"body": string(body)}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, newError(KindTargetJSONParseFailed, "", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, newError(KindTargetJSONParseFailed, "trailing data after JSON value", nil)
	}
	return map[string]any{"body": v}, nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json"
}

// ScrapeTimeout reads the scraper's timeout header minus offset.
func ScrapeTimeout(h http.Header, offset time.Duration) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get(ScrapeTimeoutHeader))
	if v == "" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0, false
	}
	d := time.Duration(secs*float64(time.Second)) - offset
	if d <= 0 {
		return 0, false
	}
	return d, true
}
