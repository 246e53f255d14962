package server

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simonswine/jsonnet-exporter/internal/logx"
	"github.com/simonswine/jsonnet-exporter/internal/requestid"
)

const (
	ctxKeyModule     = "exporter.module"
	ctxKeyTarget     = "exporter.target"
	ctxKeyProbeError = "exporter.probe_error"
)

type contextFieldSpec struct {
	ctxKey string
	logKey string
}

var accessLogContextFieldSpecs = []contextFieldSpec{
	{ctxKey: ctxKeyModule, logKey: "module"},
	{ctxKey: ctxKeyTarget, logKey: "target"},
	{ctxKey: ctxKeyProbeError, logKey: "probe_error"},
}

func requestIDMiddleware(headerKey string) gin.HandlerFunc {
	headerKey = requestid.ResolveHeaderKey(headerKey)
	return func(c *gin.Context) {
		id := requestid.FromInbound(c.GetHeader(headerKey))
		c.Header(headerKey, id)
		c.Set(headerKey, id)
		c.Next()
	}
}

func requestLoggerWithColor(l *log.Logger, color bool, headerKey string, formatter *logx.AccessLogFormatter) gin.HandlerFunc {
	headerKey = requestid.ResolveHeaderKey(headerKey)
	if l == nil {
		l = log.New(os.Stdout, "", log.LstdFlags)
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		fields := accessLogFields(c, headerKey)

		ts := time.Now()
		if formatter != nil {
			l.Println(formatter.Format(ts, status, latency, c.ClientIP(), c.Request.Method, c.Request.URL.Path, fields, color))
			return
		}
		l.Println(logx.FormatRequestLineWithColor(ts, status, latency, c.ClientIP(), c.Request.Method, c.Request.URL.Path, fields, color))
	}
}

func accessLogFields(c *gin.Context, headerKey string) map[string]any {
	out := map[string]any{
		"request_id": c.GetString(headerKey),
		"handler":    c.FullPath(),
		"query":      c.Request.URL.RawQuery,
		"user_agent": c.Request.UserAgent(),
	}
	if n := c.Writer.Size(); n >= 0 {
		out["response_bytes"] = n
	}
	for _, s := range accessLogContextFieldSpecs {
		if v, ok := c.Get(s.ctxKey); ok {
			out[s.logKey] = v
		}
	}
	return out
}
