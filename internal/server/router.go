package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simonswine/jsonnet-exporter/internal/logx"
	"github.com/simonswine/jsonnet-exporter/internal/requestid"
	"github.com/simonswine/jsonnet-exporter/pkg/exposition"
	"github.com/simonswine/jsonnet-exporter/pkg/modules"
	"github.com/simonswine/jsonnet-exporter/pkg/probe"
)

// scrapeTimeoutOffset leaves room to write the response before the scraper
// gives up.
const scrapeTimeoutOffset = 500 * time.Millisecond

type RouterOptions struct {
	AccessLog       bool
	AccessLogger    *log.Logger
	AccessColor     bool
	AccessFormatter *logx.AccessLogFormatter
	// RequestIDHeaderKey defaults to X-Request-Id.
	RequestIDHeaderKey string
}

func NewRouter(st *state, opts RouterOptions) *gin.Engine {
	headerKey := requestid.ResolveHeaderKey(opts.RequestIDHeaderKey)
	r := gin.New()
	r.Use(requestIDMiddleware(headerKey))
	if st.metrics != nil {
		r.Use(st.metrics.Middleware())
	}
	if opts.AccessLog {
		r.Use(requestLoggerWithColor(opts.AccessLogger, opts.AccessColor, headerKey, opts.AccessFormatter))
	}
	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, indexText(st.current().registry))
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/hello/:name", func(c *gin.Context) {
		c.String(http.StatusOK, "Hello %s!", c.Param("name"))
	})
	if st.metrics != nil {
		r.GET("/metrics", gin.WrapH(st.metrics.Handler()))
	}
	r.GET("/probe", probeHandler(st, headerKey))
	r.POST("/-/reload", func(c *gin.Context) {
		snap, err := st.Reload(c.Request.Context())
		if err != nil {
			logx.Errorf("reload failed (http): %v", err)
			c.String(http.StatusInternalServerError, "reload failed: %v\n", err)
			return
		}
		logx.Infof("reload ok (http): config=%q modules=%s", st.opts.ConfigFile, moduleNamesForLog(snap.registry.Names()))
		c.String(http.StatusOK, "reloaded %d modules\n", snap.registry.Len())
	})
	return r
}

func probeHandler(st *state, headerKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		params, err := probe.ParseParams(c.Request.URL.Query())
		if err != nil {
			respondProbeError(c, headerKey, err)
			return
		}
		c.Set(ctxKeyModule, params.Module)
		c.Set(ctxKeyTarget, params.Target)

		ctx := c.Request.Context()
		if d, ok := probe.ScrapeTimeout(c.Request.Header, scrapeTimeoutOffset); ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		snap := st.current()
		start := time.Now()
		out, err := snap.prober.Probe(ctx, params.Module, params.Target)
		if st.metrics != nil {
			st.metrics.ObserveProbe(moduleLabel(snap.registry, params.Module), probeResult(err), time.Since(start))
		}
		if err != nil {
			respondProbeError(c, headerKey, err)
			return
		}
		c.Data(http.StatusOK, exposition.ContentType, out)
	}
}

func respondProbeError(c *gin.Context, headerKey string, err error) {
	kind := probe.KindOf(err)
	c.Set(ctxKeyProbeError, string(kind))
	logx.Warnf("probe failed: request_id=%s module=%q target=%q err=%v",
		c.GetString(headerKey), c.GetString(ctxKeyModule), c.GetString(ctxKeyTarget), err)
	c.String(kind.StatusCode(), "%v\n", err)
}

func probeResult(err error) string {
	if err == nil {
		return "success"
	}
	return string(probe.KindOf(err))
}

// moduleLabel keeps unknown module names out of the metric label space.
func moduleLabel(reg *modules.Registry, name string) string {
	if _, err := reg.Lookup(name); err != nil {
		return "unknown"
	}
	return name
}

func indexText(reg *modules.Registry) string {
	var b strings.Builder
	b.WriteString("jsonnet-exporter\n\n")
	b.WriteString("Modules:\n")
	names := reg.Names()
	if len(names) == 0 {
		b.WriteString("  <none>\n")
	}
	for _, name := range names {
		fmt.Fprintf(&b, "  - %s\n", name)
	}
	b.WriteString("\nEndpoints:\n")
	b.WriteString("  /probe?module=<name>&target=<url>\n")
	b.WriteString("  /metrics\n")
	b.WriteString("  /healthz\n")
	return b.String()
}

func moduleNamesForLog(names []string) string {
	if len(names) == 0 {
		return "<none>"
	}
	return strings.Join(names, ",")
}
