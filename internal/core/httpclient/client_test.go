package httpclient

import (
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestNewOutbound_Options(t *testing.T) {
	proxy, _ := url.Parse("http://proxy.local:3128")
	c := NewOutbound(WithProxy(proxy), WithoutKeepAlives(), WithTimeout(0))

	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("unexpected transport %T", c.Transport)
	}
	if !tr.DisableKeepAlives {
		t.Fatal("keep-alives should be disabled")
	}
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	got, err := tr.Proxy(req)
	if err != nil || got.String() != proxy.String() {
		t.Fatalf("proxy got %v, %v", got, err)
	}
	if c.Timeout != 0 {
		t.Fatalf("timeout %v", c.Timeout)
	}
}

func TestNewOutbound_Defaults(t *testing.T) {
	c := NewOutbound(WithProxy(nil))
	if c.Timeout != 30*time.Second {
		t.Fatalf("timeout %v", c.Timeout)
	}
	if c.Transport.(*http.Transport).DisableKeepAlives {
		t.Fatal("keep-alives enabled by default")
	}
}
