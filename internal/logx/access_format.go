package logx

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

type formatPart struct {
	literal string
	varName string
}

type AccessLogFormatter struct {
	parts []formatPart
}

var accessLogFormatPresets = map[string]string{
	"exporter_combined": "$time_local | $status | $latency | $client_ip | $method $path | request_id=$request_id handler=$handler module=$module target=$target probe_error=$probe_error bytes=$response_bytes user_agent=$user_agent",
	"exporter_minimal":  "$time_local | $status | $latency | $method $path | module=$module target=$target",
}

var allowedAccessLogVars = map[string]struct{}{
	"time_local":     {},
	"status":         {},
	"latency":        {},
	"latency_ms":     {},
	"client_ip":      {},
	"method":         {},
	"path":           {},
	"query":          {},
	"request_id":     {},
	"handler":        {},
	"module":         {},
	"target":         {},
	"probe_error":    {},
	"response_bytes": {},
	"user_agent":     {},
}

func ResolveAccessLogFormat(format string, preset string) (string, error) {
	if strings.TrimSpace(format) != "" {
		return format, nil
	}
	p := strings.ToLower(strings.TrimSpace(preset))
	if p == "" {
		return "", nil
	}
	out, ok := accessLogFormatPresets[p]
	if !ok {
		return "", fmt.Errorf("invalid access_log_format_preset: %q", preset)
	}
	return out, nil
}

// CompileAccessLogFormat parses a format made of literals and $variables.
// "$$" is a literal dollar sign. An empty format yields a nil formatter.
func CompileAccessLogFormat(format string) (*AccessLogFormatter, error) {
	if strings.TrimSpace(format) == "" {
		return nil, nil
	}
	f := &AccessLogFormatter{}
	var lit strings.Builder
	rest := format
	for {
		idx := strings.IndexByte(rest, '$')
		if idx < 0 {
			lit.WriteString(rest)
			break
		}
		lit.WriteString(rest[:idx])
		pos := len(format) - len(rest) + idx
		rest = rest[idx+1:]
		if strings.HasPrefix(rest, "$") {
			lit.WriteByte('$')
			rest = rest[1:]
			continue
		}
		name := rest[:varNameLen(rest)]
		if name == "" {
			return nil, fmt.Errorf("invalid access_log_format: missing variable name after '$' at pos %d", pos)
		}
		if _, ok := allowedAccessLogVars[name]; !ok {
			return nil, fmt.Errorf("invalid access_log_format: unknown variable $%s", name)
		}
		if lit.Len() > 0 {
			f.parts = append(f.parts, formatPart{literal: lit.String()})
			lit.Reset()
		}
		f.parts = append(f.parts, formatPart{varName: name})
		rest = rest[len(name):]
	}
	if lit.Len() > 0 {
		f.parts = append(f.parts, formatPart{literal: lit.String()})
	}
	return f, nil
}

func varNameLen(s string) int {
	for i, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return i
		}
	}
	return len(s)
}

// Format renders one line. Variables without a value render as "-".
func (f *AccessLogFormatter) Format(
	ts time.Time,
	status int,
	latency time.Duration,
	clientIP string,
	method string,
	path string,
	fields map[string]any,
	color bool,
) string {
	if f == nil || len(f.parts) == 0 {
		return ""
	}
	lookup := func(name string) string {
		switch name {
		case "time_local":
			return ts.Format("2006/01/02 - 15:04:05")
		case "status":
			return ColorizeStatusWith(status, color)
		case "latency":
			return latency.String()
		case "latency_ms":
			return strconv.FormatInt(latency.Milliseconds(), 10)
		case "client_ip":
			return clientIP
		case "method":
			return method
		case "path":
			return path
		}
		v, ok := fields[name]
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	}

	var b strings.Builder
	for _, p := range f.parts {
		if p.varName == "" {
			b.WriteString(p.literal)
			continue
		}
		if v := strings.TrimSpace(lookup(p.varName)); v != "" {
			b.WriteString(v)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

func AccessLogAllowedVars() []string {
	keys := make([]string, 0, len(allowedAccessLogVars))
	for k := range allowedAccessLogVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
