package logx

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// ColorEnabled reports whether stderr is a terminal and NO_COLOR is unset.
func ColorEnabled() bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// StdoutColorEnabled is ColorEnabled for stdout, where access logs go.
func StdoutColorEnabled() bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func ColorizeStatusWith(status int, color bool) string {
	s := fmt.Sprintf("%d", status)
	if !color {
		return s
	}
	switch {
	case status >= 500:
		return "\x1b[41;97m " + s + " \x1b[0m"
	case status >= 400:
		return "\x1b[43;90m " + s + " \x1b[0m"
	case status >= 300:
		return "\x1b[47;90m " + s + " \x1b[0m"
	default:
		return "\x1b[42;97m " + s + " \x1b[0m"
	}
}

// FormatRequestLineWithColor renders the default access log line used when
// no access_log_format is configured.
func FormatRequestLineWithColor(
	ts time.Time,
	status int,
	latency time.Duration,
	clientIP string,
	method string,
	path string,
	fields map[string]any,
	color bool,
) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s | %s | %13v | %15s | %-7s %s",
		ts.Format("2006/01/02 - 15:04:05"),
		ColorizeStatusWith(status, color),
		latency,
		clientIP,
		method,
		path,
	)
	for _, k := range defaultLineFields {
		v, ok := fields[k]
		if !ok {
			continue
		}
		s := strings.TrimSpace(fmt.Sprintf("%v", v))
		if s == "" || s == "<nil>" {
			continue
		}
		fmt.Fprintf(&b, " %s=%s", k, s)
	}
	return b.String()
}

var defaultLineFields = []string{"request_id", "module", "target", "probe_error"}
