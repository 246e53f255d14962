package requestid

import (
	"regexp"
	"strings"
	"testing"
)

func TestGenFormat(t *testing.T) {
	id := Gen()
	if ok, _ := regexp.MatchString(`^[0-9]{14}[0-9a-f]{12}$`, id); !ok {
		t.Fatalf("unexpected id format: %q", id)
	}
	if Gen() == id {
		t.Fatalf("ids should differ")
	}
}

func TestFromInbound(t *testing.T) {
	if got := FromInbound(" abc-123 "); got != "abc-123" {
		t.Fatalf("FromInbound kept=%q", got)
	}
	for _, in := range []string{"", "has space", "tab\there", strings.Repeat("a", 129)} {
		if got := FromInbound(in); got == strings.TrimSpace(in) {
			t.Fatalf("FromInbound(%q) should regenerate", in)
		}
	}
}

func TestResolveHeaderKey(t *testing.T) {
	if got := ResolveHeaderKey(" "); got != HeaderKey {
		t.Fatalf("default header=%q", got)
	}
	if got := ResolveHeaderKey("X-Trace"); got != "X-Trace" {
		t.Fatalf("header=%q", got)
	}
}
